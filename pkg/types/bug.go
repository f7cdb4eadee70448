package types

import "time"

// Commit is a read-only view over one commit in the mirrored repository.
type Commit struct {
	SHA        string
	Message    string
	AuthorDate time.Time
	// ParentSHA is the single parent, or empty for root and merge commits.
	ParentSHA  string
	NumParents int
}

// MatchSource records which stage produced a candidate link.
type MatchSource string

const (
	MatchRegex MatchSource = "regex"
	MatchLLM   MatchSource = "llm"
)

// CandidateLink is an unconfirmed (commit, issue) association produced by the
// commit scanner and pending cross-reference classification.
type CandidateLink struct {
	CommitSHA string
	IssueID   string
	Source    MatchSource
}

// BugRecord is one confirmed bug with its fixing commit, the durable output
// row of active-bugs.csv. BugID is sequential and unique within a project.
type BugRecord struct {
	BugID      int
	IssueID    string
	IssueURL   string
	FixedSHA   string
	BuggySHA   string
	ReportPath string
	PatchPath  string
}

// Classification assigns a category label to one bug description.
type Classification struct {
	ProjectID string `json:"project_id"`
	BugID     int    `json:"bug_id"`
	Label     string `json:"category_label"`
	Method    string `json:"method"`
}
