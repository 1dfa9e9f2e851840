package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/logging"
	"github.com/stencil-dev/stencil/pkg/types"
	"github.com/stencil-dev/stencil/pkg/utils"
)

// GitFetcher clones GitHub-hosted templates. Only public repositories are
// supported; credential management is out of scope.
type GitFetcher struct{}

// NewGitFetcher creates a fetcher for GitHub shorthand sources.
func NewGitFetcher() *GitFetcher {
	return &GitFetcher{}
}

// Kind returns the source kind this fetcher handles.
func (f *GitFetcher) Kind() types.SourceKind {
	return types.SourceGitHub
}

// Fetch shallow-clones the repository and copies the requested tree into the
// staging directory. When the source carries no ref the repository's default
// branch is used; this is where ref defaulting happens, never in the
// resolver.
func (f *GitFetcher) Fetch(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
	logger := logging.GetLogger("fetch.git")

	cloneDir, err := os.MkdirTemp("", "stencil-clone-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrFetch, "failed to create clone directory")
	}
	defer func() { _ = os.RemoveAll(cloneDir) }()

	url := fmt.Sprintf("https://github.com/%s.git", src.Location)
	if err := f.clone(ctx, url, src.Ref, cloneDir); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetch, "failed to clone %s", src.Location)
	}

	root := cloneDir
	if src.Subdir != "" {
		root = filepath.Join(cloneDir, filepath.FromSlash(src.Subdir))
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return nil, errors.Newf(errors.ErrTemplateNotFound,
				"subdirectory %q not found in %s", src.Subdir, src.Location)
		}
	}

	if err := utils.CopyTree(root, stagingDir); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetch, "failed to stage clone of %s", src.Location)
	}

	logger.Debug().
		Str("repo", src.Location).
		Str("ref", src.Ref).
		Str("subdir", src.Subdir).
		Msg("repository cloned and staged")

	return &types.TemplateInfo{
		Path:     stagingDir,
		Metadata: loadMetadata(stagingDir),
	}, nil
}

// clone performs a shallow single-branch clone. A named ref is tried as a
// branch first, then as a tag.
func (f *GitFetcher) clone(ctx context.Context, url, ref, dir string) error {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	}

	if ref == "" {
		_, err := git.PlainCloneContext(ctx, dir, false, opts)
		return err
	}

	branchOpts := *opts
	branchOpts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	if _, err := git.PlainCloneContext(ctx, dir, false, &branchOpts); err == nil {
		return nil
	}

	// Branch clone failed; retry into a fresh directory with a tag ref.
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tagOpts := *opts
	tagOpts.ReferenceName = plumbing.NewTagReferenceName(ref)
	_, err := git.PlainCloneContext(ctx, dir, false, &tagOpts)
	return err
}

var _ Fetcher = (*GitFetcher)(nil)
