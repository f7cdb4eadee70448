package mining

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/errlog"
	"github.com/clintrovert/bugminer/internal/gitrepo"
	"github.com/clintrovert/bugminer/internal/report"
	"github.com/clintrovert/bugminer/internal/tracker"
	"github.com/clintrovert/bugminer/internal/xref"
	"github.com/clintrovert/bugminer/pkg/types"
)

// Pipeline runs the mining stages for a batch of projects, sequentially. One
// project failing is logged and skipped; it never aborts the batch.
type Pipeline struct {
	layout      Layout
	factory     tracker.Factory
	resolver    *xref.Resolver
	githubToken string
	mirror      *gitrepo.Mirror
	scanner     *gitrepo.Scanner
	patches     *gitrepo.PatchGenerator
	errLog      *errlog.Log
	logger      *zap.Logger
}

// NewPipeline wires the stages. judge may be nil to accept regex matches as
// fixes, errLog may be nil.
func NewPipeline(
	layout Layout,
	factory tracker.Factory,
	judge xref.Judge,
	githubToken string,
	errLog *errlog.Log,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		layout:      layout,
		factory:     factory,
		resolver:    xref.NewResolver(judge, errLog, logger),
		githubToken: githubToken,
		mirror:      gitrepo.NewMirror(logger),
		scanner:     gitrepo.NewScanner(logger),
		patches:     gitrepo.NewPatchGenerator(gitrepo.DefaultSourceFilter(), logger),
		errLog:      errLog,
		logger:      logger,
	}
}

// Run mines every project and returns the number that failed. A failed
// project's partial output directory is removed so reruns start clean.
func (p *Pipeline) Run(ctx context.Context, projects []types.Project) int {
	failed := 0
	for _, project := range projects {
		p.logger.Info("mining project",
			zap.String("project_id", project.ID),
			zap.String("repository", project.RepositoryURL),
		)
		if err := p.RunProject(ctx, project); err != nil {
			failed++
			p.logger.Error("project failed",
				zap.String("project_id", project.ID),
				zap.Error(err),
			)
			p.errLog.Appendf(project.ID, "pipeline", "%v", err)
			if rmErr := os.RemoveAll(p.layout.ProjectOutputDir(project.ID)); rmErr != nil {
				p.logger.Warn("failed to remove partial output",
					zap.String("project_id", project.ID),
					zap.Error(rmErr),
				)
			}
		}
	}
	return failed
}

// RunProject mines one project end to end and writes its active-bugs.csv.
func (p *Pipeline) RunProject(ctx context.Context, project types.Project) error {
	for _, dir := range []string{
		p.layout.ReportsDir(project.ID),
		p.layout.PatchesDir(project.ID),
		p.layout.ProjectCacheDir(project),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	repo, err := p.mirror.Ensure(ctx, p.layout.RepoDir(project), project.RepositoryURL)
	if err != nil {
		return fmt.Errorf("mirror stage: %w", err)
	}

	base, err := p.factory(project, p.githubToken, p.logger)
	if err != nil {
		return fmt.Errorf("tracker stage: %w", err)
	}
	issues := tracker.NewCache(base, p.layout.IssueCacheDir(project), p.logger)

	issueList, err := issues.ListIssues(ctx)
	if err != nil {
		return fmt.Errorf("tracker stage: %w", err)
	}
	issuesByID := make(map[string]types.Issue, len(issueList))
	for _, issue := range issueList {
		issuesByID[issue.ID] = issue
	}

	commits, links, err := p.scanner.Scan(repo, project)
	if err != nil {
		return fmt.Errorf("scan stage: %w", err)
	}

	resolved := p.resolver.Resolve(ctx, project.ID, commits, links, issuesByID)

	records := p.exportBugs(ctx, project, repo, issues, resolved)
	if err := WriteBugRecords(p.layout.CSVPath(project.ID), records); err != nil {
		return fmt.Errorf("export stage: %w", err)
	}

	p.logger.Info("project mined",
		zap.String("project_id", project.ID),
		zap.Int("issues", len(issueList)),
		zap.Int("commits", len(commits)),
		zap.Int("bugs", len(records)),
	)
	return nil
}

// exportBugs writes the patch and report for each resolved bug and assigns
// sequential bug ids. Bugs whose patch cannot be produced (merge commit, root
// commit, or no source change) are dropped before numbering, so ids stay
// dense. A failed report download keeps the bug with an empty report path.
func (p *Pipeline) exportBugs(
	ctx context.Context,
	project types.Project,
	repo *git.Repository,
	issues *tracker.Cache,
	resolved []types.BugRecord,
) []types.BugRecord {
	outputDir := p.layout.ProjectOutputDir(project.ID)
	records := make([]types.BugRecord, 0, len(resolved))
	bugID := 1

	for _, rec := range resolved {
		patch, err := p.patches.Generate(ctx, repo, rec.FixedSHA, project.SubPath)
		switch {
		case errors.Is(err, gitrepo.ErrMergeCommit), errors.Is(err, gitrepo.ErrRootCommit):
			p.logger.Warn("fixing commit has no usable diff base, dropping bug",
				zap.String("project_id", project.ID),
				zap.String("sha", rec.FixedSHA),
				zap.Error(err),
			)
			continue
		case err != nil:
			p.errLog.Appendf(project.ID, "patch", "commit %s: %v", rec.FixedSHA, err)
			continue
		case len(patch) == 0:
			p.logger.Debug("fix touches no source files, dropping bug",
				zap.String("project_id", project.ID),
				zap.String("sha", rec.FixedSHA),
			)
			continue
		}

		patchRel := filepath.Join("patches", fmt.Sprintf("%d.src.patch", bugID))
		if err := os.WriteFile(filepath.Join(outputDir, patchRel), patch, 0o644); err != nil {
			p.errLog.Appendf(project.ID, "patch", "commit %s: %v", rec.FixedSHA, err)
			continue
		}

		reportRel := filepath.Join("reports", fmt.Sprintf("%d.report.json", bugID))
		issue, err := issues.GetIssue(ctx, rec.IssueID)
		if err != nil {
			p.errLog.Appendf(project.ID, "report", "issue %s: %v", rec.IssueID, err)
			reportRel = ""
		} else if err := report.Export(issue, filepath.Join(outputDir, reportRel)); err != nil {
			p.errLog.Appendf(project.ID, "report", "issue %s: %v", rec.IssueID, err)
			reportRel = ""
		}

		rec.BugID = bugID
		rec.PatchPath = patchRel
		rec.ReportPath = reportRel
		records = append(records, rec)
		bugID++
	}
	return records
}
