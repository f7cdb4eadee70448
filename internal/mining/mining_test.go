package mining

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/config"
	"github.com/clintrovert/bugminer/internal/errlog"
	"github.com/clintrovert/bugminer/internal/tracker"
	"github.com/clintrovert/bugminer/pkg/types"
)

// sourceRepo builds the upstream repository the pipeline clones from.
type sourceRepo struct {
	t    *testing.T
	dir  string
	wt   *git.Worktree
	when time.Time
}

func newSourceRepo(t *testing.T) *sourceRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &sourceRepo{
		t:    t,
		dir:  dir,
		wt:   wt,
		when: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *sourceRepo) commit(message string, files map[string]string) plumbing.Hash {
	r.t.Helper()
	for name, content := range files {
		path := filepath.Join(r.dir, filepath.FromSlash(name))
		require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
		_, err := r.wt.Add(name)
		require.NoError(r.t, err)
	}
	r.when = r.when.Add(time.Hour)
	sig := &object.Signature{Name: "Dev", Email: "dev@example.com", When: r.when}
	hash, err := r.wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
	return hash
}

type fakeTracker struct {
	issues    []types.Issue
	listCalls int
	getCalls  int
}

func (f *fakeTracker) ListIssues(context.Context) ([]types.Issue, error) {
	f.listCalls++
	return f.issues, nil
}

func (f *fakeTracker) GetIssue(_ context.Context, id string) (*types.Issue, error) {
	f.getCalls++
	for i := range f.issues {
		if f.issues[i].ID == id {
			return &f.issues[i], nil
		}
	}
	return nil, errors.New("no such issue")
}

func fixedFactory(fake *fakeTracker) tracker.Factory {
	return func(types.Project, string, *zap.Logger) (tracker.Tracker, error) {
		return fake, nil
	}
}

func demoProject(repoURL string) types.Project {
	return types.Project{
		ID:               "Demo",
		Name:             "demo",
		RepositoryURL:    repoURL,
		Tracker:          types.TrackerJira,
		TrackerProjectID: "DEMO",
		FixRegex:         regexp.MustCompile(`(DEMO-\d+)`),
	}
}

func demoIssue() types.Issue {
	return types.Issue{
		ID:          "DEMO-1",
		URL:         "https://tracker.example.com/DEMO-1",
		Title:       "NPE on empty input",
		Description: "Crash when the input list is empty.",
		Status:      "Resolved",
	}
}

func newLayout(t *testing.T) Layout {
	t.Helper()
	base := t.TempDir()
	return Layout{
		CacheDir:  filepath.Join(base, "cache"),
		OutputDir: filepath.Join(base, "output"),
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	src := newSourceRepo(t)
	buggy := src.commit("initial import", map[string]string{"src/main.go": "package main\n"})
	fixed := src.commit("Fix DEMO-1: guard empty input", map[string]string{"src/main.go": "package main // guarded\n"})

	// The project comes in through the real list file, tab-separated.
	listPath := filepath.Join(t.TempDir(), "projects.txt")
	line := strings.Join([]string{"Demo", "demo", src.dir, "jira", "DEMO", `(DEMO-\d+)`}, "\t")
	require.NoError(t, os.WriteFile(listPath, []byte(line+"\n"), 0o644))
	projects, errs := config.LoadProjects(listPath)
	require.Empty(t, errs)
	require.Len(t, projects, 1)
	project := projects[0]

	layout := newLayout(t)
	fake := &fakeTracker{issues: []types.Issue{demoIssue()}}

	p := NewPipeline(layout, fixedFactory(fake), nil, "", nil, zap.NewNop())
	require.Zero(t, p.Run(context.Background(), []types.Project{project}))

	records, err := ReadBugRecords(layout.CSVPath("Demo"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].BugID)
	assert.Equal(t, "DEMO-1", records[0].IssueID)
	assert.Equal(t, buggy.String(), records[0].BuggySHA)
	assert.Equal(t, fixed.String(), records[0].FixedSHA)

	outputDir := layout.ProjectOutputDir("Demo")
	patch, err := os.ReadFile(filepath.Join(outputDir, records[0].PatchPath))
	require.NoError(t, err)
	assert.Contains(t, string(patch), "src/main.go")
	assert.Contains(t, string(patch), "+package main // guarded")

	reportData, err := os.ReadFile(filepath.Join(outputDir, records[0].ReportPath))
	require.NoError(t, err)
	assert.Contains(t, string(reportData), "NPE on empty input")
}

func TestPipeline_RerunUsesCaches(t *testing.T) {
	src := newSourceRepo(t)
	src.commit("initial import", map[string]string{"main.go": "package main\n"})
	src.commit("Fix DEMO-1", map[string]string{"main.go": "package main // v2\n"})

	layout := newLayout(t)
	project := demoProject(src.dir)

	warm := &fakeTracker{issues: []types.Issue{demoIssue()}}
	require.Zero(t, NewPipeline(layout, fixedFactory(warm), nil, "", nil, zap.NewNop()).
		Run(context.Background(), []types.Project{project}))
	first, err := ReadBugRecords(layout.CSVPath("Demo"))
	require.NoError(t, err)

	// Second run over the same cache with a cold tracker: no issue fetches,
	// same bug ids.
	cold := &fakeTracker{}
	require.Zero(t, NewPipeline(layout, fixedFactory(cold), nil, "", nil, zap.NewNop()).
		Run(context.Background(), []types.Project{project}))
	second, err := ReadBugRecords(layout.CSVPath("Demo"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Zero(t, cold.listCalls)
	assert.Zero(t, cold.getCalls)
}

func TestPipeline_DocsOnlyFixYieldsNoBug(t *testing.T) {
	src := newSourceRepo(t)
	src.commit("initial import", map[string]string{"main.go": "package main\n"})
	// The only DEMO-1 reference changes no source files.
	src.commit("Fix DEMO-1 docs", map[string]string{"README.md": "fixed\n"})

	layout := newLayout(t)
	fake := &fakeTracker{issues: []types.Issue{demoIssue()}}

	p := NewPipeline(layout, fixedFactory(fake), nil, "", nil, zap.NewNop())
	require.Zero(t, p.Run(context.Background(), []types.Project{demoProject(src.dir)}))

	records, err := ReadBugRecords(layout.CSVPath("Demo"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPipeline_ProjectFailureDoesNotStopBatch(t *testing.T) {
	src := newSourceRepo(t)
	src.commit("initial import", map[string]string{"main.go": "package main\n"})
	src.commit("Fix DEMO-1", map[string]string{"main.go": "package main // v2\n"})

	layout := newLayout(t)
	logPath := filepath.Join(t.TempDir(), "error.log")
	errLog, err := errlog.Open(logPath)
	require.NoError(t, err)
	defer errLog.Close()

	bad := demoProject(src.dir)
	bad.ID = "Broken"
	good := demoProject(src.dir)

	fake := &fakeTracker{issues: []types.Issue{demoIssue()}}
	factory := func(project types.Project, _ string, _ *zap.Logger) (tracker.Tracker, error) {
		if project.ID == "Broken" {
			return nil, errors.New("simulated tracker outage")
		}
		return fake, nil
	}

	p := NewPipeline(layout, factory, nil, "", errLog, zap.NewNop())
	failed := p.Run(context.Background(), []types.Project{bad, good})
	assert.Equal(t, 1, failed)

	assert.NoDirExists(t, layout.ProjectOutputDir("Broken"))
	records, err := ReadBugRecords(layout.CSVPath("Demo"))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "project=Broken")
	assert.Contains(t, string(data), "stage=pipeline")
	assert.Contains(t, string(data), "simulated tracker outage")
}

func TestWriteBugRecords_RoundTripAndHeaderOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	records := []types.BugRecord{
		{
			BugID:      1,
			IssueID:    "DEMO-1",
			IssueURL:   "https://tracker.example.com/DEMO-1",
			BuggySHA:   "aaa",
			FixedSHA:   "bbb",
			ReportPath: "reports/1.report.json",
			PatchPath:  "patches/1.src.patch",
		},
	}
	path := filepath.Join(dir, "active-bugs.csv")
	require.NoError(t, WriteBugRecords(path, records))
	got, err := ReadBugRecords(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, WriteBugRecords(empty, nil))
	got, err = ReadBugRecords(empty)
	require.NoError(t, err)
	assert.Empty(t, got)

	data, err := os.ReadFile(empty)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bug_id,issue_id,issue_url")
}

func TestCleanup_RemovesOnlyListedProjects(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	listed := demoProject("ignored")
	other := demoProject("ignored")
	other.ID = "Other"
	other.Name = "other"
	other.TrackerProjectID = "OTHER"

	for _, p := range []types.Project{listed, other} {
		require.NoError(t, os.MkdirAll(layout.ProjectOutputDir(p.ID), 0o755))
		require.NoError(t, os.MkdirAll(layout.RepoDir(p), 0o755))
		require.NoError(t, os.MkdirAll(layout.IssueCacheDir(p), 0o755))
	}

	require.NoError(t, Cleanup(layout, []types.Project{listed}, zap.NewNop()))

	assert.NoDirExists(t, layout.ProjectOutputDir(listed.ID))
	assert.NoDirExists(t, layout.ProjectCacheDir(listed))
	assert.NoDirExists(t, layout.IssueCacheDir(listed))
	assert.DirExists(t, layout.ProjectOutputDir(other.ID))
	assert.DirExists(t, layout.ProjectCacheDir(other))
	assert.DirExists(t, layout.IssueCacheDir(other))
}

func TestCleanup_MissingDirsAreFine(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	require.NoError(t, Cleanup(layout, []types.Project{demoProject("ignored")}, zap.NewNop()))
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)

	require.NoError(t, os.MkdirAll(layout.ProjectOutputDir("Alpha"), 0o755))
	require.NoError(t, WriteBugRecords(layout.CSVPath("Alpha"), []types.BugRecord{
		{BugID: 1, IssueID: "A-1"}, {BugID: 2, IssueID: "A-2"},
	}))
	require.NoError(t, os.MkdirAll(layout.ProjectOutputDir("Beta"), 0o755))
	require.NoError(t, WriteBugRecords(layout.CSVPath("Beta"), nil))
	// A directory without a finished CSV is not a result.
	require.NoError(t, os.MkdirAll(layout.ProjectOutputDir("Incomplete"), 0o755))

	summary, err := Summarize(layout)
	require.NoError(t, err)
	assert.Contains(t, summary, "| [Alpha](Alpha/active-bugs.csv) | 2 |")
	assert.Contains(t, summary, "| [Beta](Beta/active-bugs.csv) | 0 |")
	assert.NotContains(t, summary, "Incomplete")
	assert.Contains(t, summary, "| **Total** | 2 |")
}
