package gitrepo

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

// Scanner walks commit log messages and applies the project's fix regex to
// extract referenced issue identifiers per commit.
type Scanner struct {
	logger *zap.Logger
}

// NewScanner creates a new commit scanner.
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan returns the commit history oldest-first plus one CandidateLink per
// distinct (commit, matched-issue-id) pair. Distinct ids within one commit
// all yield links; repeating the same id in one message does not.
func (s *Scanner) Scan(repo *git.Repository, project types.Project) ([]types.Commit, []types.CandidateLink, error) {
	opts := &git.LogOptions{}
	if project.SubPath != "" {
		prefix := strings.TrimSuffix(project.SubPath, "/") + "/"
		opts.PathFilter = func(path string) bool {
			return path == project.SubPath || strings.HasPrefix(path, prefix)
		}
	}

	iter, err := repo.Log(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read commit log: %w", err)
	}
	defer iter.Close()

	var commits []types.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commit := types.Commit{
			SHA:        c.Hash.String(),
			Message:    c.Message,
			AuthorDate: c.Author.When,
			NumParents: c.NumParents(),
		}
		if commit.NumParents == 1 {
			commit.ParentSHA = c.ParentHashes[0].String()
		}
		commits = append(commits, commit)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk commit log: %w", err)
	}

	// Log iteration is newest-first; the pipeline wants oldest-first.
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}

	var links []types.CandidateLink
	for _, commit := range commits {
		for _, id := range s.matchIssueIDs(project, commit.Message) {
			links = append(links, types.CandidateLink{
				CommitSHA: commit.SHA,
				IssueID:   id,
				Source:    types.MatchRegex,
			})
		}
	}

	s.logger.Info("scanned commit log",
		zap.String("project_id", project.ID),
		zap.Int("commits", len(commits)),
		zap.Int("candidates", len(links)),
	)
	return commits, links, nil
}

// matchIssueIDs applies the fix regex to one message. The first capture group
// is the issue id when the pattern has one, otherwise the whole match.
func (s *Scanner) matchIssueIDs(project types.Project, message string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, match := range project.FixRegex.FindAllStringSubmatch(message, -1) {
		id := match[0]
		if len(match) > 1 && match[1] != "" {
			id = match[1]
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
