package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/pkg/types"
)

const cacheIndexFile = "issues.json"

// Cache persists fetched issues under a project-scoped directory. A cache hit
// short-circuits network access entirely; a miss delegates to the wrapped
// tracker and writes the result. Re-fetches overwrite.
//
// The list index and per-issue files are cached separately: list payloads do
// not carry comment threads, so only GetIssue results become issue files.
type Cache struct {
	inner  Tracker
	dir    string
	logger *zap.Logger
}

// NewCache wraps a tracker with the disk cache rooted at dir.
func NewCache(inner Tracker, dir string, logger *zap.Logger) *Cache {
	return &Cache{inner: inner, dir: dir, logger: logger}
}

// ListIssues returns the cached issue index when present, otherwise fetches
// and persists it.
func (c *Cache) ListIssues(ctx context.Context) ([]types.Issue, error) {
	indexPath := filepath.Join(c.dir, cacheIndexFile)
	if data, err := os.ReadFile(indexPath); err == nil {
		var issues []types.Issue
		if err := json.Unmarshal(data, &issues); err == nil {
			c.logger.Debug("issue list cache hit",
				zap.String("dir", c.dir),
				zap.Int("count", len(issues)),
			)
			return issues, nil
		}
		c.logger.Warn("corrupt issue index, refetching", zap.String("path", indexPath))
	}

	issues, err := c.inner.ListIssues(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create issue cache dir: %w", err)
	}
	data, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue index: %w", err)
	}
	if err := os.WriteFile(indexPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write issue index: %w", err)
	}
	return issues, nil
}

// GetIssue returns the cached issue file when present, otherwise fetches and
// persists it.
func (c *Cache) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	path := c.issuePath(id)
	if data, err := os.ReadFile(path); err == nil {
		var issue types.Issue
		if err := json.Unmarshal(data, &issue); err == nil {
			return &issue, nil
		}
		c.logger.Warn("corrupt cached issue, refetching", zap.String("path", path))
	}

	issue, err := c.inner.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create issue cache dir: %w", err)
	}
	data, err := json.MarshalIndent(issue, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write issue cache file %s: %w", path, err)
	}
	return issue, nil
}

func (c *Cache) issuePath(id string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '#':
			return '_'
		}
		return r
	}, id)
	return filepath.Join(c.dir, safe+".json")
}
