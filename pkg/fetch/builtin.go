package fetch

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/types"
)

//go:embed all:templates
var builtinFS embed.FS

// BuiltinFetcher materializes templates bundled with the binary.
type BuiltinFetcher struct{}

// NewBuiltinFetcher creates a fetcher for the built-in template bundle.
func NewBuiltinFetcher() *BuiltinFetcher {
	return &BuiltinFetcher{}
}

// Kind returns the source kind this fetcher handles.
func (f *BuiltinFetcher) Kind() types.SourceKind {
	return types.SourceBuiltin
}

// Fetch copies the named built-in template into the staging directory.
// The empty name falls back to the default template.
func (f *BuiltinFetcher) Fetch(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
	name := src.Location
	if name == "" {
		name = "default"
	}

	root := path.Join("templates", name)
	if _, err := fs.Stat(builtinFS, root); err != nil {
		return nil, errors.Newf(errors.ErrTemplateNotFound, "unknown built-in template: %s", name)
	}

	err := fs.WalkDir(builtinFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		target := filepath.Join(stagingDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		data, err := builtinFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetch, "failed to stage built-in template %s", name)
	}

	return &types.TemplateInfo{
		Path:     stagingDir,
		Metadata: loadMetadata(stagingDir),
	}, nil
}

var _ Fetcher = (*BuiltinFetcher)(nil)
