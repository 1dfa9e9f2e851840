// Package pipeline sequences the four scaffolding stages, resolve, fetch,
// validate and render, as a state machine with injected collaborators. Each
// stage is gated on the previous one's success, timed, and reported through
// an optional progress callback. Errors are returned as values; collaborator
// panics are caught at the stage boundary and converted.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/fetch"
	"github.com/stencil-dev/stencil/pkg/logging"
	"github.com/stencil-dev/stencil/pkg/manifest"
	"github.com/stencil-dev/stencil/pkg/render"
	"github.com/stencil-dev/stencil/pkg/source"
	"github.com/stencil-dev/stencil/pkg/types"
	"github.com/stencil-dev/stencil/pkg/validate"
)

// Stage names, as reported to progress callbacks and stat maps.
const (
	StageResolve  = "resolve"
	StageFetch    = "fetch"
	StageValidate = "validate"
	StageRender   = "render"
)

// Dependencies are the pipeline's four collaborators. All of them are
// required; construction fails if any is nil.
type Dependencies struct {
	Resolve  func(identifier string) (types.TemplateSource, error)
	Fetch    func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error)
	Validate func(ctx context.Context, stagedPath string) (*types.ValidationResult, error)
	Process  func(ctx context.Context, stagedPath, outputDir string, vars map[string]interface{}, cfg types.PipelineConfig) ([]types.FileOperation, error)
}

// ExecuteOptions parameterize a single pipeline run.
type ExecuteOptions struct {
	// OutputDir is the directory the rendered project targets
	OutputDir string

	// Context holds the variable values substituted during rendering
	Context map[string]interface{}

	// OnProgress, when set, is called once per attempted stage
	OnProgress func(stage string)
}

// Pipeline runs the scaffolding state machine. Configuration is private
// state; callers read and update it only through Config and UpdateConfig.
// Concurrent Execute calls on one Pipeline are safe.
type Pipeline struct {
	mu    sync.RWMutex
	cfg   types.PipelineConfig
	deps  Dependencies
	cache *Cache
}

// New creates a pipeline with the given collaborators. Patches are merged
// over the default configuration in order.
func New(deps Dependencies, patches ...types.ConfigPatch) (*Pipeline, error) {
	if deps.Resolve == nil || deps.Fetch == nil || deps.Validate == nil || deps.Process == nil {
		return nil, errors.New(errors.ErrInvalidInput,
			"pipeline requires resolve, fetch, validate and process collaborators")
	}

	cfg := types.DefaultPipelineConfig()
	for _, p := range patches {
		cfg.Merge(p)
	}

	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// NewWithCache creates a pipeline that serves repeat fetches of the same
// normalized source from cache.
func NewWithCache(deps Dependencies, cache *Cache, patches ...types.ConfigPatch) (*Pipeline, error) {
	p, err := New(deps, patches...)
	if err != nil {
		return nil, err
	}
	p.cache = cache
	return p, nil
}

// Default creates a pipeline wired to the real resolver, fetch service,
// validator and renderer, backed by the per-user template cache.
func Default(patches ...types.ConfigPatch) *Pipeline {
	svc := fetch.New()
	deps := Dependencies{
		Resolve: func(identifier string) (types.TemplateSource, error) {
			return source.Resolve(identifier), nil
		},
		Fetch:    svc.Fetch,
		Validate: validate.Template,
		Process:  render.Process,
	}

	p, _ := NewWithCache(deps, NewCache(DefaultCacheDir()), patches...)
	return p
}

// Config returns a copy of the current configuration.
func (p *Pipeline) Config() types.PipelineConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Clone()
}

// UpdateConfig merges a patch into the pipeline's configuration.
func (p *Pipeline) UpdateConfig(patch types.ConfigPatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Merge(patch)
}

// Execute runs the full pipeline for one identifier. On the first stage
// failure the remaining stages are not invoked and the stage's error is
// returned. The staging directory is removed on every exit path.
func (p *Pipeline) Execute(ctx context.Context, identifier string, opts ExecuteOptions) (*types.PipelineResult, error) {
	if err := preflight(identifier); err != nil {
		return nil, err
	}

	logger := logging.GetLogger("pipeline")
	cfg := p.Config()
	stats := types.PipelineStats{StageTimings: make(map[string]time.Duration)}
	start := time.Now()

	progress := func(stage string) {
		if opts.OnProgress != nil {
			opts.OnProgress(stage)
		}
	}

	// RESOLVE
	progress(StageResolve)
	stageStart := time.Now()
	src, err := p.callResolve(identifier)
	stats.StageTimings[StageResolve] = time.Since(stageStart)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrResolve,
			"failed to resolve template identifier %q", identifier)
	}
	src = source.Normalize(src)

	logger.Debug().
		Str("identifier", identifier).
		Str("kind", string(src.Kind)).
		Str("location", src.Location).
		Msg("identifier resolved")

	// FETCH
	stagingDir, err := os.MkdirTemp("", "stencil-staging-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrFetch, "failed to create staging directory")
	}
	defer func() { _ = os.RemoveAll(stagingDir) }()

	progress(StageFetch)
	stageStart = time.Now()
	tmpl, err := p.fetchStage(ctx, src, stagingDir, cfg, &stats)
	stats.StageTimings[StageFetch] = time.Since(stageStart)
	if err != nil {
		return nil, err
	}
	// Name defaulting depends on the output directory, so it happens per run
	// rather than on the cached copy.
	manifest.ApplyDefaults(&tmpl.Metadata, filepath.Base(opts.OutputDir))

	// VALIDATE runs even in dry-run mode.
	progress(StageValidate)
	stageStart = time.Now()
	result, err := p.callValidate(ctx, tmpl.Path)
	stats.StageTimings[StageValidate] = time.Since(stageStart)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrValidate, "template validation errored")
	}
	if result == nil {
		return nil, errors.New(errors.ErrInternal, "validate collaborator returned no result")
	}
	if !result.Valid {
		return nil, errors.New(errors.ErrValidate,
			"Template validation failed: "+strings.Join(result.Errors, ", "))
	}
	for _, w := range result.Warnings {
		logger.Warn().Str("template", tmpl.Metadata.Name).Msg(w)
	}

	// RENDER. The caller's context is merged with declared variable defaults
	// and checked against the manifest's constraints first.
	progress(StageRender)
	stageStart = time.Now()
	vars, err := manifest.ResolveContext(&tmpl.Metadata, opts.Context)
	if err != nil {
		stats.StageTimings[StageRender] = time.Since(stageStart)
		return nil, err
	}
	ops, err := p.callProcess(ctx, tmpl.Path, opts.OutputDir, vars, cfg)
	stats.StageTimings[StageRender] = time.Since(stageStart)
	if err != nil {
		return nil, err
	}

	stats.FilesProcessed = len(ops)
	if cfg.DryRun {
		ops = []types.FileOperation{}
	}
	stats.TotalTime = time.Since(start)

	logger.Info().
		Str("template", tmpl.Metadata.Name).
		Int("files", stats.FilesProcessed).
		Bool("cache_hit", stats.CacheHit).
		Dur("total", stats.TotalTime).
		Msg("pipeline completed")

	return &types.PipelineResult{
		Template:   *tmpl,
		Operations: ops,
		Stats:      stats,
	}, nil
}

// fetchStage serves the template from cache when possible, otherwise invokes
// the fetch collaborator and refreshes the cache with the staged result.
func (p *Pipeline) fetchStage(ctx context.Context, src types.TemplateSource, stagingDir string, cfg types.PipelineConfig, stats *types.PipelineStats) (*types.TemplateInfo, error) {
	logger := logging.GetLogger("pipeline")
	useCache := p.cache != nil && cfg.CacheEnabled

	key := source.CacheKey(src)
	if useCache {
		if cached, ok := p.cache.Get(key, cfg.TTL()); ok {
			stats.CacheHit = true
			logger.Debug().Str("key", key).Msg("template served from cache")
			return cached, nil
		}
	}

	tmpl, err := p.callFetch(ctx, src, stagingDir)
	if err != nil {
		// Fetch errors carry their own context; pass them through.
		return nil, err
	}
	if tmpl == nil {
		return nil, errors.New(errors.ErrInternal, "fetch collaborator returned no template")
	}

	if useCache {
		if err := p.cache.Put(key, tmpl.Path, tmpl.Metadata); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to cache template")
		} else if cached, ok := p.cache.Get(key, cfg.TTL()); ok {
			// Point downstream stages at the persistent copy so the result
			// outlives the staging directory.
			return cached, nil
		}
	}

	return tmpl, nil
}

// preflight rejects identifiers that must never reach a collaborator.
func preflight(identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return errors.New(errors.ErrInvalidInput,
			"Invalid template identifier: identifier must not be empty")
	}
	for _, seg := range strings.Split(filepath.ToSlash(identifier), "/") {
		if seg == ".." {
			return errors.New(errors.ErrInvalidInput,
				"Invalid template identifier: path traversal is not allowed")
		}
	}
	return nil
}

func (p *Pipeline) callResolve(identifier string) (src types.TemplateSource, err error) {
	defer recoverStage(StageResolve, &err)
	return p.deps.Resolve(identifier)
}

func (p *Pipeline) callFetch(ctx context.Context, src types.TemplateSource, stagingDir string) (tmpl *types.TemplateInfo, err error) {
	defer recoverStage(StageFetch, &err)
	return p.deps.Fetch(ctx, src, stagingDir)
}

func (p *Pipeline) callValidate(ctx context.Context, stagedPath string) (result *types.ValidationResult, err error) {
	defer recoverStage(StageValidate, &err)
	return p.deps.Validate(ctx, stagedPath)
}

func (p *Pipeline) callProcess(ctx context.Context, stagedPath, outputDir string, vars map[string]interface{}, cfg types.PipelineConfig) (ops []types.FileOperation, err error) {
	defer recoverStage(StageRender, &err)
	return p.deps.Process(ctx, stagedPath, outputDir, vars, cfg)
}

// recoverStage converts a collaborator panic into a stage error so Execute
// always returns errors as values.
func recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		*err = errors.Newf(errors.ErrInternal, "%s collaborator panicked: %v", stage, r)
	}
}
