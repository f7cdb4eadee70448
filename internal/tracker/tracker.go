// Package tracker fetches bug reports from the supported issue trackers.
// A Tracker is constructed per project; the disk cache decorator makes
// reruns incremental by short-circuiting network access entirely.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

// ErrUnsupportedTracker marks tracker variants that are declared but not
// implemented; constructing one fails fast instead of attempting a request.
var ErrUnsupportedTracker = errors.New("unsupported tracker")

// Tracker is the capability contract shared by all tracker variants:
// paginated listing of a project's bugs and fetching one issue by id.
type Tracker interface {
	ListIssues(ctx context.Context) ([]types.Issue, error)
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
}

// Factory builds a tracker for one project. The pipeline takes a Factory so
// tests can substitute fakes.
type Factory func(project types.Project, githubToken string, logger *zap.Logger) (Tracker, error)

// New is the default Factory over the built-in variants.
func New(project types.Project, githubToken string, logger *zap.Logger) (Tracker, error) {
	switch project.Tracker {
	case types.TrackerJira:
		return NewJira(project, logger)
	case types.TrackerGitHub:
		return NewGitHub(project, githubToken, logger)
	case types.TrackerBugzilla:
		return NewBugzilla(project, logger)
	default:
		return nil, fmt.Errorf("tracker %q for project %s: %w", project.Tracker, project.ID, ErrUnsupportedTracker)
	}
}
