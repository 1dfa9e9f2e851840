// Package fetch materializes template content into a staging directory.
// Each TemplateSource kind has a fetcher; Service dispatches on the kind and
// exposes a single Fetch entry point matching the pipeline's collaborator
// contract.
package fetch

import (
	"context"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/logging"
	"github.com/stencil-dev/stencil/pkg/manifest"
	"github.com/stencil-dev/stencil/pkg/registry"
	"github.com/stencil-dev/stencil/pkg/types"
)

// Fetcher materializes one kind of template source.
type Fetcher interface {
	// Kind returns the source kind this fetcher handles
	Kind() types.SourceKind

	// Fetch copies the template content into stagingDir and returns the
	// path holding the template root together with its metadata
	Fetch(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error)
}

// Service dispatches fetch requests to the fetcher registered for the
// source kind.
type Service struct {
	fetchers registry.Registry[Fetcher]
}

// New returns a Service with the default fetchers registered: local
// directories, GitHub repositories, archive URLs, and the built-in bundle.
func New() *Service {
	s := &Service{fetchers: registry.New[Fetcher]()}
	for _, f := range []Fetcher{
		NewLocalFetcher(),
		NewGitFetcher(),
		NewURLFetcher(),
		NewBuiltinFetcher(),
	} {
		registry.MustRegister(s.fetchers, string(f.Kind()), f)
	}
	return s
}

// Fetch materializes the source into stagingDir.
func (s *Service) Fetch(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
	logger := logging.GetLogger("fetch")

	f, err := s.fetchers.Get(string(src.Kind))
	if err != nil {
		return nil, errors.Newf(errors.ErrFetch, "no fetcher for source type %q", src.Kind)
	}

	logger.Debug().
		Str("kind", string(src.Kind)).
		Str("location", src.Location).
		Str("staging", stagingDir).
		Msg("fetching template")

	info, err := f.Fetch(ctx, src, stagingDir)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("kind", string(src.Kind)).
		Str("location", src.Location).
		Str("name", info.Metadata.Name).
		Msg("template fetched")

	return info, nil
}

// loadMetadata reads the staged template's manifest. Absence and parse
// failures are both non-fatal here; the validator reports malformed
// manifests with proper diagnostics, and absent metadata is defaulted by
// the pipeline.
func loadMetadata(dir string) types.TemplateMetadata {
	meta, err := manifest.Load(dir)
	if err != nil {
		if !manifest.IsMissing(err) {
			logger := logging.GetLogger("fetch")
			logger.Warn().Err(err).Str("dir", dir).Msg("unreadable template manifest")
		}
		return types.TemplateMetadata{}
	}
	return *meta
}
