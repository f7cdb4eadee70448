package types

import "time"

// Issue is a bug report fetched from an issue tracker. Issues are cached on
// disk after the first fetch and never mutated; a re-fetch overwrites the
// cache file.
type Issue struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Comments    []string  `json:"comments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
}
