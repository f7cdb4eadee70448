package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

func demoIssues() []types.Issue {
	return []types.Issue{
		{
			ID:          "DEMO-1",
			URL:         "https://tracker.example.com/DEMO-1",
			Title:       "NPE on empty input",
			Description: "Crash when the input list is empty.",
			Comments:    []string{"reproduced on main"},
			CreatedAt:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
			Status:      "Resolved",
		},
		{ID: "DEMO-2", Title: "Wrong total in summary"},
	}
}

func TestCache_ListIssuesWritesIndexOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fake := &fakeTracker{issues: demoIssues()}
	cache := NewCache(fake, dir, zap.NewNop())

	issues, err := cache.ListIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, fake.listCalls)

	assert.FileExists(t, filepath.Join(dir, "issues.json"))
	// List results are index-only: a later GetIssue still fetches the full
	// issue with its comment thread.
	assert.NoFileExists(t, filepath.Join(dir, "DEMO-1.json"))
}

func TestCache_HitShortCircuitsNetwork(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fake := &fakeTracker{issues: demoIssues()}

	// Populate the cache, then hand the same directory to a fresh cache over
	// a fresh fake: equivalent data must come back with zero calls.
	warm := NewCache(fake, dir, zap.NewNop())
	_, err := warm.ListIssues(context.Background())
	require.NoError(t, err)
	_, err = warm.GetIssue(context.Background(), "DEMO-1")
	require.NoError(t, err)

	cold := &fakeTracker{}
	cache := NewCache(cold, dir, zap.NewNop())
	issues, err := cache.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, demoIssues(), issues)
	assert.Zero(t, cold.listCalls)

	issue, err := cache.GetIssue(context.Background(), "DEMO-1")
	require.NoError(t, err)
	assert.Equal(t, "NPE on empty input", issue.Title)
	assert.Zero(t, cold.getCalls)
}

func TestCache_GetIssueMissDelegatesAndPersists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fake := &fakeTracker{issues: demoIssues()}
	cache := NewCache(fake, dir, zap.NewNop())

	issue, err := cache.GetIssue(context.Background(), "DEMO-2")
	require.NoError(t, err)
	assert.Equal(t, "Wrong total in summary", issue.Title)
	assert.Equal(t, 1, fake.getCalls)

	_, err = cache.GetIssue(context.Background(), "DEMO-2")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.getCalls)
}

func TestCache_CorruptIndexRefetches(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "issues.json"), []byte("{not json"), 0o644))

	fake := &fakeTracker{issues: demoIssues()}
	cache := NewCache(fake, dir, zap.NewNop())
	issues, err := cache.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.Equal(t, 1, fake.listCalls)
}

func TestCache_SanitizesIssueIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fake := &fakeTracker{issues: []types.Issue{{ID: "a/b:c"}}}
	cache := NewCache(fake, dir, zap.NewNop())

	_, err := cache.GetIssue(context.Background(), "a/b:c")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "a_b_c.json"))
}
