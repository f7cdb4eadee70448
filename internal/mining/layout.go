// Package mining drives the end-to-end pipeline: mirror the repository,
// fetch bug reports, cross-reference commits against issues, and export the
// per-project bug dataset.
package mining

import (
	"path/filepath"

	"github.com/clintrovert/bugminer/pkg/types"
)

// Layout fixes where every artifact lives. Cache survives cleanup-free
// reruns; output is the dataset handed to consumers.
//
//	cache/<project id>/<name>.git       bare mirror
//	cache/issues/<tracker>_<tid>/       shared issue cache
//	output/<project id>/active-bugs.csv
//	output/<project id>/reports/<bug id>.report.json
//	output/<project id>/patches/<bug id>.src.patch
type Layout struct {
	CacheDir  string
	OutputDir string
}

func (l Layout) ProjectCacheDir(p types.Project) string {
	return filepath.Join(l.CacheDir, p.ID)
}

func (l Layout) RepoDir(p types.Project) string {
	return filepath.Join(l.ProjectCacheDir(p), p.Name+".git")
}

// IssueCacheDir is shared between projects mining different sub-paths of the
// same tracker project.
func (l Layout) IssueCacheDir(p types.Project) string {
	return filepath.Join(l.CacheDir, "issues", p.IssueCacheKey())
}

func (l Layout) ProjectOutputDir(projectID string) string {
	return filepath.Join(l.OutputDir, projectID)
}

func (l Layout) ReportsDir(projectID string) string {
	return filepath.Join(l.ProjectOutputDir(projectID), "reports")
}

func (l Layout) PatchesDir(projectID string) string {
	return filepath.Join(l.ProjectOutputDir(projectID), "patches")
}

func (l Layout) CSVPath(projectID string) string {
	return filepath.Join(l.ProjectOutputDir(projectID), "active-bugs.csv")
}
