package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

var (
	// ErrMergeCommit means the commit has more than one parent; picking one
	// arbitrarily would encode an incorrect diff, so generation is skipped.
	ErrMergeCommit = errors.New("merge commit has no unambiguous parent")
	// ErrRootCommit means the commit has no parent to diff against.
	ErrRootCommit = errors.New("root commit has no parent")
)

// SourceFilter decides which changed paths belong in a source patch.
// Test and documentation paths are excluded per project convention.
type SourceFilter struct {
	ExcludeDirs []string
	ExcludeExts []string
}

// DefaultSourceFilter excludes the usual test and documentation locations.
func DefaultSourceFilter() SourceFilter {
	return SourceFilter{
		ExcludeDirs: []string{"test", "tests", "testdata", "doc", "docs", "examples"},
		ExcludeExts: []string{".md", ".txt", ".rst", ".adoc", ".html"},
	}
}

// Include reports whether a changed path counts as source.
func (f SourceFilter) Include(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		for _, dir := range f.ExcludeDirs {
			if strings.EqualFold(seg, dir) {
				return false
			}
		}
	}
	ext := strings.ToLower(path.Ext(p))
	for _, e := range f.ExcludeExts {
		if ext == e {
			return false
		}
	}
	return true
}

// PatchGenerator diffs a fixing commit against its single parent, restricted
// to source paths. Output is deterministic for a fixed commit and filter.
type PatchGenerator struct {
	logger *zap.Logger
	filter SourceFilter
}

// NewPatchGenerator creates a patch generator with the given source filter.
func NewPatchGenerator(filter SourceFilter, logger *zap.Logger) *PatchGenerator {
	return &PatchGenerator{logger: logger, filter: filter}
}

// Generate renders the source-filtered unified diff parent→fixedSHA.
// subPath further restricts the diff to a sub-project directory when set.
// Returns ErrMergeCommit / ErrRootCommit when the parent is ambiguous or
// missing, and an empty slice when no source file changed.
func (g *PatchGenerator) Generate(ctx context.Context, repo *git.Repository, fixedSHA, subPath string) ([]byte, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(fixedSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commit %s: %w", fixedSHA, err)
	}

	switch commit.NumParents() {
	case 1:
	case 0:
		return nil, ErrRootCommit
	default:
		return nil, ErrMergeCommit
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent of %s: %w", fixedSHA, err)
	}

	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read parent tree: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read commit tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var kept object.Changes
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if subPath != "" && !underPath(name, subPath) {
			continue
		}
		if !g.filter.Include(name) {
			continue
		}
		kept = append(kept, change)
	}

	if len(kept) == 0 {
		g.logger.Debug("no source changes in commit", zap.String("sha", fixedSHA))
		return nil, nil
	}

	patch, err := kept.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to render patch for %s: %w", fixedSHA, err)
	}
	return []byte(patch.String()), nil
}

func underPath(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
