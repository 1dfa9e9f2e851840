package fetch

import (
	"context"
	"os"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/types"
	"github.com/stencil-dev/stencil/pkg/utils"
)

// LocalFetcher copies a template from a local directory.
type LocalFetcher struct{}

// NewLocalFetcher creates a fetcher for local directory sources.
func NewLocalFetcher() *LocalFetcher {
	return &LocalFetcher{}
}

// Kind returns the source kind this fetcher handles.
func (f *LocalFetcher) Kind() types.SourceKind {
	return types.SourceLocal
}

// Fetch copies the source directory into the staging directory.
func (f *LocalFetcher) Fetch(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
	info, err := os.Stat(src.Location)
	if err != nil || !info.IsDir() {
		return nil, errors.Newf(errors.ErrTemplateNotFound,
			"local template directory does not exist: %s", src.Location)
	}

	if err := utils.CopyTree(src.Location, stagingDir); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetch,
			"failed to copy local template %s", src.Location)
	}

	return &types.TemplateInfo{
		Path:     stagingDir,
		Metadata: loadMetadata(stagingDir),
	}, nil
}

var _ Fetcher = (*LocalFetcher)(nil)
