// Package report writes per-bug issue reports and turns them into the
// normalized JSONL form the classifier consumes.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/clintrovert/bugminer/pkg/types"
)

// Export writes the issue as an indented JSON report at path.
func Export(issue *types.Issue, path string) error {
	data, err := json.MarshalIndent(issue, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report for issue %s: %w", issue.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// Load reads a report previously written by Export.
func Load(path string) (*types.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	var issue types.Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &issue, nil
}
