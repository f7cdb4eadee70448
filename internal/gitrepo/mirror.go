// Package gitrepo owns everything that touches the mirrored Git repository:
// keeping the bare clone current, scanning the commit log for issue
// references, and diffing fixing commits into patch files.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// Mirror ensures a local bare clone of a target repository exists and is up
// to date. Clones live under the project cache directory and survive reruns.
type Mirror struct {
	logger *zap.Logger
}

// NewMirror creates a new mirror manager.
func NewMirror(logger *zap.Logger) *Mirror {
	return &Mirror{logger: logger}
}

// Ensure clones repoURL into repoPath as a bare repository, or opens and
// fetches the existing clone. A fetch failure against an existing clone is
// logged and the stale mirror is used; reruns stay usable offline.
func (m *Mirror) Ensure(ctx context.Context, repoPath, repoURL string) (*git.Repository, error) {
	if _, err := os.Stat(repoPath); err == nil {
		repo, err := git.PlainOpen(repoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cached repository %s: %w", repoPath, err)
		}
		err = repo.FetchContext(ctx, &git.FetchOptions{})
		switch {
		case err == nil:
			m.logger.Info("updated repository mirror", zap.String("path", repoPath))
		case errors.Is(err, git.NoErrAlreadyUpToDate):
			m.logger.Debug("repository mirror already up to date", zap.String("path", repoPath))
		default:
			m.logger.Warn("fetch failed, using stale mirror",
				zap.String("path", repoPath),
				zap.Error(err),
			)
		}
		return repo, nil
	}

	if err := os.MkdirAll(filepath.Dir(repoPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Mirror clones fetch +refs/*:refs/* so later fetches advance local
	// branch refs, not just remote-tracking ones.
	repo, err := git.PlainCloneContext(ctx, repoPath, true, &git.CloneOptions{
		URL:    repoURL,
		Mirror: true,
	})
	if err != nil {
		// A failed clone leaves a partial directory behind; remove it so the
		// next run does not mistake it for a valid mirror.
		os.RemoveAll(repoPath)
		return nil, fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}

	m.logger.Info("cloned repository",
		zap.String("url", repoURL),
		zap.String("path", repoPath),
	)
	return repo, nil
}
