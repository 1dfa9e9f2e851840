package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDeps tracks how often each collaborator runs so tests can assert the
// stage-gating behavior.
type mockDeps struct {
	resolveCalls  int
	fetchCalls    int
	validateCalls int
	processCalls  int

	resolveErr  error
	fetchErr    error
	validateRes types.ValidationResult
	processOps  []types.FileOperation
	processErr  error
}

func (m *mockDeps) deps() Dependencies {
	return Dependencies{
		Resolve: func(identifier string) (types.TemplateSource, error) {
			m.resolveCalls++
			if m.resolveErr != nil {
				return types.TemplateSource{}, m.resolveErr
			}
			return types.TemplateSource{Kind: types.SourceLocal, Location: identifier}, nil
		},
		Fetch: func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
			m.fetchCalls++
			if m.fetchErr != nil {
				return nil, m.fetchErr
			}
			if err := os.WriteFile(filepath.Join(stagingDir, "file.txt"), []byte("x"), 0644); err != nil {
				return nil, err
			}
			return &types.TemplateInfo{
				Path:     stagingDir,
				Metadata: types.TemplateMetadata{Name: "mock", Version: "1.0.0"},
			}, nil
		},
		Validate: func(ctx context.Context, stagedPath string) (*types.ValidationResult, error) {
			m.validateCalls++
			res := m.validateRes
			return &res, nil
		},
		Process: func(ctx context.Context, stagedPath, outputDir string, vars map[string]interface{}, cfg types.PipelineConfig) ([]types.FileOperation, error) {
			m.processCalls++
			if m.processErr != nil {
				return nil, m.processErr
			}
			return m.processOps, nil
		},
	}
}

func validMock() *mockDeps {
	return &mockDeps{
		validateRes: types.ValidationResult{Valid: true},
		processOps: []types.FileOperation{
			{Type: types.OperationCreate, Target: "a", Content: "1"},
			{Type: types.OperationCreate, Target: "b", Content: "2"},
			{Type: types.OperationCopy, Target: "c", Source: "src/c"},
		},
	}
}

func newTestPipeline(t *testing.T, m *mockDeps, patches ...types.ConfigPatch) *Pipeline {
	t.Helper()
	p, err := New(m.deps(), patches...)
	require.NoError(t, err)
	return p
}

func execOpts(t *testing.T) ExecuteOptions {
	t.Helper()
	return ExecuteOptions{OutputDir: t.TempDir(), Context: map[string]interface{}{}}
}

func TestNewRequiresAllCollaborators(t *testing.T) {
	deps := validMock().deps()
	deps.Fetch = nil

	_, err := New(deps)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestExecuteSuccess(t *testing.T) {
	m := validMock()
	p := newTestPipeline(t, m)

	result, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)

	assert.Len(t, result.Operations, 3)
	assert.Equal(t, 3, result.Stats.FilesProcessed)
	assert.Equal(t, 1, m.resolveCalls)
	assert.Equal(t, 1, m.fetchCalls)
	assert.Equal(t, 1, m.validateCalls)
	assert.Equal(t, 1, m.processCalls)

	for _, stage := range []string{StageResolve, StageFetch, StageValidate, StageRender} {
		assert.Contains(t, result.Stats.StageTimings, stage)
	}
}

func TestExecutePreflightEmptyIdentifier(t *testing.T) {
	for _, identifier := range []string{"", "   ", "\t\n"} {
		m := validMock()
		p := newTestPipeline(t, m)

		_, err := p.Execute(context.Background(), identifier, execOpts(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid template identifier")
		assert.Zero(t, m.resolveCalls)
		assert.Zero(t, m.fetchCalls)
	}
}

func TestExecutePreflightPathTraversal(t *testing.T) {
	m := validMock()
	p := newTestPipeline(t, m)

	_, err := p.Execute(context.Background(), "../../../etc", execOpts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid template identifier")
	assert.Zero(t, m.resolveCalls)
}

func TestExecuteResolveErrorIsWrapped(t *testing.T) {
	m := validMock()
	m.resolveErr = errors.New(errors.ErrInternal, "boom")
	p := newTestPipeline(t, m)

	_, err := p.Execute(context.Background(), "whatever", execOpts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve")
	assert.Zero(t, m.fetchCalls)
}

func TestExecuteFetchErrorStopsPipeline(t *testing.T) {
	m := validMock()
	m.fetchErr = errors.New(errors.ErrFetch, "network down")
	p := newTestPipeline(t, m)

	_, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, 1, m.resolveCalls)
	assert.Equal(t, 1, m.fetchCalls)
	assert.Zero(t, m.validateCalls)
	assert.Zero(t, m.processCalls)
}

func TestExecuteValidationFailure(t *testing.T) {
	m := validMock()
	m.validateRes = types.ValidationResult{Valid: false, Errors: []string{"bad name", "bad version"}}
	p := newTestPipeline(t, m)

	_, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.Equal(t, "Template validation failed: bad name, bad version", err.Error())
	assert.Zero(t, m.processCalls)
}

func TestExecuteValidationFailureWithoutErrors(t *testing.T) {
	m := validMock()
	m.validateRes = types.ValidationResult{Valid: false}
	p := newTestPipeline(t, m)

	_, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.Equal(t, "Template validation failed: ", err.Error())
}

func TestExecuteWarningsDoNotFail(t *testing.T) {
	m := validMock()
	m.validateRes = types.ValidationResult{Valid: true, Warnings: []string{"version is not semver"}}
	p := newTestPipeline(t, m)

	_, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	assert.NoError(t, err)
}

func TestExecuteDryRun(t *testing.T) {
	m := validMock()
	dry := true
	p := newTestPipeline(t, m, types.ConfigPatch{DryRun: &dry})

	result, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)

	assert.Empty(t, result.Operations)
	assert.Equal(t, 3, result.Stats.FilesProcessed)
	assert.Equal(t, 1, m.validateCalls)
	assert.Equal(t, 1, m.processCalls)
}

func TestExecuteProgressCallback(t *testing.T) {
	m := validMock()
	p := newTestPipeline(t, m)

	var stages []string
	opts := execOpts(t)
	opts.OnProgress = func(stage string) { stages = append(stages, stage) }

	_, err := p.Execute(context.Background(), "./tmpl", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"resolve", "fetch", "validate", "render"}, stages)
}

func TestExecuteProgressOnFailedStage(t *testing.T) {
	m := validMock()
	m.fetchErr = errors.New(errors.ErrFetch, "nope")
	p := newTestPipeline(t, m)

	var stages []string
	opts := execOpts(t)
	opts.OnProgress = func(stage string) { stages = append(stages, stage) }

	_, err := p.Execute(context.Background(), "./tmpl", opts)
	require.Error(t, err)
	assert.Equal(t, []string{"resolve", "fetch"}, stages)
}

func TestExecutePanickingCollaborator(t *testing.T) {
	m := validMock()
	deps := m.deps()
	deps.Process = func(ctx context.Context, stagedPath, outputDir string, vars map[string]interface{}, cfg types.PipelineConfig) ([]types.FileOperation, error) {
		panic("renderer exploded")
	}
	p, err := New(deps)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer exploded")
}

func TestConfigReturnsDefensiveCopy(t *testing.T) {
	p := newTestPipeline(t, validMock())

	cfg := p.Config()
	cfg.CacheEnabled = false
	cfg.IgnorePatterns[0] = "mutated"
	cfg.TemplateExtensions = append(cfg.TemplateExtensions, ".hacked")

	fresh := p.Config()
	assert.True(t, fresh.CacheEnabled)
	assert.Equal(t, "**/node_modules/**", fresh.IgnorePatterns[0])
	assert.Len(t, fresh.TemplateExtensions, 2)
}

func TestUpdateConfig(t *testing.T) {
	p := newTestPipeline(t, validMock())

	ttl := 60
	p.UpdateConfig(types.ConfigPatch{
		CacheTTL:   &ttl,
		Delimiters: &types.Delimiters{Start: "{{", End: "}}"},
	})

	cfg := p.Config()
	assert.Equal(t, 60, cfg.CacheTTL)
	assert.Equal(t, "{{", cfg.Delimiters.Start)
	assert.Equal(t, "}}", cfg.Delimiters.End)
	// Untouched fields keep their defaults.
	assert.True(t, cfg.CacheEnabled)
}

func TestConstructorConfigPrecedence(t *testing.T) {
	verbose := true
	p := newTestPipeline(t, validMock(), types.ConfigPatch{
		Verbose:        &verbose,
		IgnorePatterns: []string{"**/custom/**"},
	})

	cfg := p.Config()
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"**/custom/**"}, cfg.IgnorePatterns)
	assert.Equal(t, 3600, cfg.CacheTTL)
}

func TestExecuteCacheHit(t *testing.T) {
	m := validMock()
	p, err := NewWithCache(m.deps(), NewCache(t.TempDir()))
	require.NoError(t, err)

	first, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)
	assert.False(t, first.Stats.CacheHit)

	second, err := p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)
	assert.True(t, second.Stats.CacheHit)
	assert.Equal(t, 1, m.fetchCalls)
	assert.Equal(t, 2, m.validateCalls)
}

func TestExecuteCacheDisabled(t *testing.T) {
	m := validMock()
	enabled := false
	p, err := NewWithCache(m.deps(), NewCache(t.TempDir()), types.ConfigPatch{CacheEnabled: &enabled})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)
	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)

	assert.Equal(t, 2, m.fetchCalls)
}

func TestExecuteStagingDirCleanedUp(t *testing.T) {
	var staging string
	m := validMock()
	deps := m.deps()
	inner := deps.Fetch
	deps.Fetch = func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
		staging = stagingDir
		return inner(ctx, src, stagingDir)
	}
	p, err := New(deps)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.NoError(t, err)
	require.NotEmpty(t, staging)
	assert.NoDirExists(t, staging)
}

func TestDefaultPipeline(t *testing.T) {
	p := Default()
	require.NotNil(t, p)
	assert.True(t, p.Config().CacheEnabled)
}

func TestExecuteVariableDefaultsApplied(t *testing.T) {
	m := validMock()
	deps := m.deps()
	inner := deps.Fetch
	deps.Fetch = func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
		tmpl, err := inner(ctx, src, stagingDir)
		if err != nil {
			return nil, err
		}
		tmpl.Metadata.Variables = []types.TemplateVariable{
			{Name: "license", Description: "License", Type: types.VariableString, Default: "MIT"},
		}
		return tmpl, nil
	}
	var seen map[string]interface{}
	deps.Process = func(ctx context.Context, stagedPath, outputDir string, vars map[string]interface{}, cfg types.PipelineConfig) ([]types.FileOperation, error) {
		seen = vars
		return nil, nil
	}
	p, err := New(deps)
	require.NoError(t, err)

	opts := execOpts(t)
	opts.Context = map[string]interface{}{"name": "demo"}
	_, err = p.Execute(context.Background(), "./tmpl", opts)
	require.NoError(t, err)

	assert.Equal(t, "MIT", seen["license"])
	assert.Equal(t, "demo", seen["name"])
}

func TestExecuteMissingRequiredVariable(t *testing.T) {
	m := validMock()
	deps := m.deps()
	inner := deps.Fetch
	deps.Fetch = func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
		tmpl, err := inner(ctx, src, stagingDir)
		if err != nil {
			return nil, err
		}
		tmpl.Metadata.Variables = []types.TemplateVariable{
			{Name: "name", Description: "Project name", Type: types.VariableString, Required: true},
		}
		return tmpl, nil
	}
	p, err := New(deps)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required variable")
	assert.Zero(t, m.processCalls)
}

func TestExecuteNilFetchResult(t *testing.T) {
	m := validMock()
	deps := m.deps()
	deps.Fetch = func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
		return nil, nil
	}
	p, err := New(deps)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
	assert.Zero(t, m.validateCalls)
}

func TestExecuteNilValidateResult(t *testing.T) {
	m := validMock()
	deps := m.deps()
	deps.Validate = func(ctx context.Context, stagedPath string) (*types.ValidationResult, error) {
		return nil, nil
	}
	p, err := New(deps)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "./tmpl", execOpts(t))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
	assert.Zero(t, m.processCalls)
}

func TestExecuteNameDefaultedPerRun(t *testing.T) {
	m := validMock()
	deps := m.deps()
	deps.Fetch = func(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
		m.fetchCalls++
		if err := os.WriteFile(filepath.Join(stagingDir, "file.txt"), []byte("x"), 0644); err != nil {
			return nil, err
		}
		// No manifest name; the pipeline derives one from the output dir.
		return &types.TemplateInfo{Path: stagingDir}, nil
	}
	p, err := NewWithCache(deps, NewCache(t.TempDir()))
	require.NoError(t, err)

	first, err := p.Execute(context.Background(), "./tmpl", ExecuteOptions{
		OutputDir: filepath.Join(t.TempDir(), "alpha"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alpha", first.Template.Metadata.Name)

	second, err := p.Execute(context.Background(), "./tmpl", ExecuteOptions{
		OutputDir: filepath.Join(t.TempDir(), "beta"),
	})
	require.NoError(t, err)
	assert.True(t, second.Stats.CacheHit)
	assert.Equal(t, "beta", second.Template.Metadata.Name)
	assert.Equal(t, 1, m.fetchCalls)
}
