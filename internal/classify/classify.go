package classify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/errlog"
	"github.com/clintrovert/bugminer/internal/report"
	"github.com/clintrovert/bugminer/pkg/types"
)

// Strategy is one way of labeling a bug text.
type Strategy interface {
	Classify(ctx context.Context, text string) (string, error)
	Method() string
}

// Runner drives a strategy over a batch of parsed bugs. One failing bug
// becomes LabelUnclassified and is error-logged; it never aborts the batch.
type Runner struct {
	strategy Strategy
	errLog   *errlog.Log
	logger   *zap.Logger
}

// NewRunner creates a runner. errLog may be nil.
func NewRunner(strategy Strategy, errLog *errlog.Log, logger *zap.Logger) *Runner {
	return &Runner{strategy: strategy, errLog: errLog, logger: logger}
}

// ClassifyAll labels every bug, preserving input order.
func (r *Runner) ClassifyAll(ctx context.Context, bugs []report.ParsedBug) []types.Classification {
	results := make([]types.Classification, 0, len(bugs))
	for _, bug := range bugs {
		label, err := r.strategy.Classify(ctx, bug.Text)
		if err != nil {
			r.logger.Warn("classification failed",
				zap.String("project_id", bug.ProjectID),
				zap.Int("bug_id", bug.BugID),
				zap.Error(err),
			)
			r.errLog.Appendf(bug.ProjectID, "classify", "bug %d: %v", bug.BugID, err)
			label = LabelUnclassified
		}
		results = append(results, types.Classification{
			ProjectID: bug.ProjectID,
			BugID:     bug.BugID,
			Label:     label,
			Method:    r.strategy.Method(),
		})
	}
	r.logger.Info("classification complete",
		zap.Int("bugs", len(bugs)),
		zap.String("method", r.strategy.Method()),
	)
	return results
}

// WriteClassifications writes one JSON object per line to path.
func WriteClassifications(path string, classifications []types.Classification) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range classifications {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode classification %s/%d: %w", c.ProjectID, c.BugID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
