package tracker

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

// NewBugzilla always fails: the Bugzilla variant is declared but not
// supported, and failing at construction keeps the missing code path loud
// instead of silent.
func NewBugzilla(project types.Project, _ *zap.Logger) (Tracker, error) {
	return nil, fmt.Errorf("bugzilla tracker for project %s: %w", project.ID, ErrUnsupportedTracker)
}
