package mining

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

// Cleanup deletes every artifact directory of the listed projects: output,
// repository cache, and the shared issue cache. Missing directories are fine.
// Artifacts of projects not in the list are left alone.
func Cleanup(layout Layout, projects []types.Project, logger *zap.Logger) error {
	var errs []error
	seen := map[string]bool{}

	for _, project := range projects {
		dirs := []string{
			layout.ProjectOutputDir(project.ID),
			layout.ProjectCacheDir(project),
			layout.IssueCacheDir(project),
		}
		for _, dir := range dirs {
			if seen[dir] {
				continue
			}
			seen[dir] = true
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", dir, err))
				continue
			}
			logger.Info("removed", zap.String("dir", dir), zap.String("project_id", project.ID))
		}
	}
	return errors.Join(errs...)
}
