package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/clintrovert/bugminer/pkg/types"
)

const (
	maxDescriptionChars = 2000
	maxCommentChars     = 600

	// Long comment threads keep the opening context and the closing
	// resolution; the middle is usually back-and-forth noise.
	headComments = 2
	tailComments = 2

	snipMarker = "... [middle discussion snipped] ..."
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// ParsedBug is one normalized line of parsed-bugs.jsonl. Text is the single
// flattened field handed to the classifier.
type ParsedBug struct {
	ProjectID   string   `json:"project_id"`
	BugID       int      `json:"bug_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Comments    []string `json:"comments,omitempty"`
	Text        string   `json:"text"`
}

// Normalize flattens an issue report into a ParsedBug. Description and
// comments are truncated so the text stays within a sane prompt budget.
func Normalize(projectID string, bugID int, issue *types.Issue) ParsedBug {
	description := clip(clean(issue.Description), maxDescriptionChars)
	comments := selectComments(issue.Comments)

	var b strings.Builder
	fmt.Fprintf(&b, "[Title]: %s\n", strings.TrimSpace(issue.Title))
	fmt.Fprintf(&b, "[Symptom]:\n%s\n", description)
	if len(comments) > 0 {
		b.WriteString("\n[Context/Logs]:\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	return ParsedBug{
		ProjectID:   projectID,
		BugID:       bugID,
		Title:       issue.Title,
		Description: description,
		Comments:    comments,
		Text:        strings.TrimRight(b.String(), "\n"),
	}
}

// selectComments keeps the head and tail of the thread with a snip marker in
// between. Short threads pass through whole.
func selectComments(comments []string) []string {
	cleaned := make([]string, 0, len(comments))
	for _, c := range comments {
		c = clip(clean(c), maxCommentChars)
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) <= headComments+tailComments {
		return cleaned
	}
	kept := make([]string, 0, headComments+tailComments+1)
	kept = append(kept, cleaned[:headComments]...)
	kept = append(kept, snipMarker)
	kept = append(kept, cleaned[len(cleaned)-tailComments:]...)
	return kept
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + " ...[truncated]"
}

// WriteJSONL writes one JSON object per line to path.
func WriteJSONL(path string, bugs []ParsedBug) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, bug := range bugs {
		if err := enc.Encode(bug); err != nil {
			return fmt.Errorf("failed to encode bug %s/%d: %w", bug.ProjectID, bug.BugID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// ReadJSONL reads a file written by WriteJSONL.
func ReadJSONL(path string) ([]ParsedBug, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var bugs []ParsedBug
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var bug ParsedBug
		if err := json.Unmarshal([]byte(line), &bug); err != nil {
			return nil, fmt.Errorf("failed to parse line of %s: %w", path, err)
		}
		bugs = append(bugs, bug)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return bugs, nil
}
