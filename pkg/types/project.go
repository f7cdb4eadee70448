package types

import (
	"fmt"
	"regexp"
)

// TrackerKind identifies the issue tracker hosting a project's bug reports.
type TrackerKind string

const (
	TrackerJira     TrackerKind = "jira"
	TrackerGitHub   TrackerKind = "github"
	TrackerBugzilla TrackerKind = "bugzilla"
)

// ParseTrackerKind validates a tracker name from the project list file.
func ParseTrackerKind(name string) (TrackerKind, error) {
	switch TrackerKind(name) {
	case TrackerJira, TrackerGitHub, TrackerBugzilla:
		return TrackerKind(name), nil
	default:
		return "", fmt.Errorf("unknown tracker name %q (expected jira, github or bugzilla)", name)
	}
}

// Project describes one unit of mining work, loaded from the project list file.
type Project struct {
	ID               string
	Name             string
	RepositoryURL    string
	Tracker          TrackerKind
	TrackerProjectID string
	FixRegex         *regexp.Regexp
	// SubPath restricts scanning and diffing to a sub-project directory.
	// Empty or "." means the whole repository.
	SubPath string
	// TrackerBaseURL overrides the tracker's default endpoint (self-hosted
	// Jira instances and the like). Empty means use the variant's default.
	TrackerBaseURL string
}

// IssueCacheKey names the shared issue cache directory for this project's
// tracker. Projects mining different sub-paths of the same repository share it.
func (p *Project) IssueCacheKey() string {
	return fmt.Sprintf("%s_%s", p.Tracker, sanitizePathComponent(p.TrackerProjectID))
}

// sanitizePathComponent makes a tracker project id safe as a directory name
// (GitHub ids contain a slash).
func sanitizePathComponent(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == '/' || r == '\\' || r == ':' {
			out[i] = '_'
		}
	}
	return string(out)
}
