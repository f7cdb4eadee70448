// Package xref decides which commit is the canonical fixing commit for each
// issue. Regex candidates from the commit scanner go through an optional LLM
// judge; failures degrade to "related" so a wrong fix commit is never
// fabricated.
package xref

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/errlog"
	"github.com/clintrovert/bugminer/pkg/types"
)

// Judge classifies which of the candidate issue ids a commit message
// explicitly fixes. Implementations may call out to an LLM.
type Judge interface {
	JudgeFixed(ctx context.Context, commitMessage string, candidateIDs []string) ([]string, error)
}

// Resolver produces the authoritative issue→fixing-commit mapping.
// A nil judge disables the LLM pass: regex matches are accepted as fixes.
type Resolver struct {
	judge  Judge
	errLog *errlog.Log
	logger *zap.Logger
}

// NewResolver creates a resolver. judge may be nil, errLog may be nil.
func NewResolver(judge Judge, errLog *errlog.Log, logger *zap.Logger) *Resolver {
	return &Resolver{judge: judge, errLog: errLog, logger: logger}
}

// Resolve maps each issue to at most one fixing commit. commits must be the
// scanner's oldest-first log order; the earliest qualifying commit by author
// date wins, ties broken by log order. Commits without exactly one parent are
// not eligible (ambiguous diff base). Records come back without bug ids; the
// pipeline assigns those after patch generation succeeds.
func (r *Resolver) Resolve(
	ctx context.Context,
	projectID string,
	commits []types.Commit,
	links []types.CandidateLink,
	issues map[string]types.Issue,
) []types.BugRecord {
	candidatesByCommit := map[string][]string{}
	for _, link := range links {
		if _, known := issues[link.IssueID]; !known {
			continue
		}
		if contains(candidatesByCommit[link.CommitSHA], link.IssueID) {
			continue
		}
		candidatesByCommit[link.CommitSHA] = append(candidatesByCommit[link.CommitSHA], link.IssueID)
	}

	ordered := make([]types.Commit, len(commits))
	copy(ordered, commits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AuthorDate.Before(ordered[j].AuthorDate)
	})

	var records []types.BugRecord
	assigned := map[string]bool{}
	for _, commit := range ordered {
		candidates := candidatesByCommit[commit.SHA]
		if len(candidates) == 0 {
			continue
		}
		if commit.NumParents != 1 {
			r.logger.Warn("candidate commit has no unambiguous parent, skipping",
				zap.String("project_id", projectID),
				zap.String("sha", commit.SHA),
				zap.Int("parents", commit.NumParents),
			)
			continue
		}

		fixed := r.judgeCommit(ctx, projectID, commit, candidates)
		for _, issueID := range fixed {
			if assigned[issueID] {
				r.logger.Debug("issue already has an earlier fixing commit",
					zap.String("issue_id", issueID),
					zap.String("sha", commit.SHA),
				)
				continue
			}
			assigned[issueID] = true
			records = append(records, types.BugRecord{
				IssueID:  issueID,
				IssueURL: issues[issueID].URL,
				FixedSHA: commit.SHA,
				BuggySHA: commit.ParentSHA,
			})
		}
	}

	r.logger.Info("cross-reference complete",
		zap.String("project_id", projectID),
		zap.Int("candidates", len(links)),
		zap.Int("fixed", len(records)),
	)
	return records
}

// judgeCommit returns the candidate ids the commit fixes. With no judge every
// regex candidate qualifies. A judge failure degrades all of this commit's
// candidates to "related" and is error-logged; never a fabricated fix.
func (r *Resolver) judgeCommit(ctx context.Context, projectID string, commit types.Commit, candidates []string) []string {
	if r.judge == nil {
		return candidates
	}

	fixed, err := r.judge.JudgeFixed(ctx, commit.Message, candidates)
	if err != nil {
		r.logger.Warn("llm judge failed, treating candidates as related",
			zap.String("project_id", projectID),
			zap.String("sha", commit.SHA),
			zap.Error(err),
		)
		r.errLog.Appendf(projectID, "xref", "llm judge failed for commit %s: %v", commit.SHA, err)
		return nil
	}

	// The judge must only narrow the candidate set, never extend it.
	var valid []string
	for _, id := range fixed {
		if contains(candidates, id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
