package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stencil-dev/stencil/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageTemplate(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestProcessRendersTemplateFiles(t *testing.T) {
	staged := stageTemplate(t, map[string]string{
		"package.json.eta": `{"name": "<% .projectName %>"}`,
		"README.md":        "# readme",
	})
	out := filepath.Join(t.TempDir(), "out")

	ops, err := Process(context.Background(), staged, out,
		map[string]interface{}{"projectName": "demo"}, types.DefaultPipelineConfig())
	require.NoError(t, err)
	require.Len(t, ops, 2)

	byTarget := make(map[string]types.FileOperation)
	for _, op := range ops {
		byTarget[filepath.Base(op.Target)] = op
	}

	created := byTarget["package.json"]
	assert.Equal(t, types.OperationCreate, created.Type)
	assert.Equal(t, `{"name": "demo"}`, created.Content)

	copied := byTarget["README.md"]
	assert.Equal(t, types.OperationCopy, copied.Type)
	assert.Equal(t, filepath.Join(staged, "README.md"), copied.Source)
}

func TestProcessHonorsIgnorePatterns(t *testing.T) {
	staged := stageTemplate(t, map[string]string{
		"src/index.js":              "code",
		"node_modules/pkg/index.js": "dep",
		"nested/node_modules/x.js":  "dep",
		".git/config":               "git",
	})

	ops, err := Process(context.Background(), staged, t.TempDir(),
		nil, types.DefaultPipelineConfig())
	require.NoError(t, err)

	require.Len(t, ops, 1)
	assert.Equal(t, filepath.Join(staged, "src/index.js"), ops[0].Source)
}

func TestProcessSkipsManifest(t *testing.T) {
	staged := stageTemplate(t, map[string]string{
		"template.json": `{"name": "t"}`,
		"main.go":       "package main",
	})

	ops, err := Process(context.Background(), staged, t.TempDir(),
		nil, types.DefaultPipelineConfig())
	require.NoError(t, err)

	require.Len(t, ops, 1)
	assert.Equal(t, "main.go", filepath.Base(ops[0].Target))
}

func TestProcessCustomDelimiters(t *testing.T) {
	staged := stageTemplate(t, map[string]string{
		"greeting.template": "Hello {{ .name }}!",
	})

	cfg := types.DefaultPipelineConfig()
	cfg.Delimiters = types.Delimiters{Start: "{{", End: "}}"}

	ops, err := Process(context.Background(), staged, t.TempDir(),
		map[string]interface{}{"name": "world"}, cfg)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "Hello world!", ops[0].Content)
}

func TestProcessDeterministicOrder(t *testing.T) {
	staged := stageTemplate(t, map[string]string{
		"a.txt": "a", "b.txt": "b", "c/d.txt": "d",
	})

	first, err := Process(context.Background(), staged, t.TempDir(), nil, types.DefaultPipelineConfig())
	require.NoError(t, err)
	second, err := Process(context.Background(), staged, t.TempDir(), nil, types.DefaultPipelineConfig())
	require.NoError(t, err)

	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, filepath.Base(first[i].Target), filepath.Base(second[i].Target))
	}
}

func TestApply(t *testing.T) {
	staged := stageTemplate(t, map[string]string{"asset.bin": "binary"})
	out := filepath.Join(t.TempDir(), "project")

	ops := []types.FileOperation{
		{Type: types.OperationCreate, Target: filepath.Join(out, "src", "main.go"), Content: "package main\n"},
		{Type: types.OperationCopy, Source: filepath.Join(staged, "asset.bin"), Target: filepath.Join(out, "asset.bin")},
	}

	require.NoError(t, Apply(ops))

	created, err := os.ReadFile(filepath.Join(out, "src", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(created))

	copied, err := os.ReadFile(filepath.Join(out, "asset.bin"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(copied))
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**/node_modules/**", "node_modules/pkg/index.js", true},
		{"**/node_modules/**", "a/b/node_modules/pkg", true},
		{"**/node_modules/**", "src/index.js", false},
		{"**/.git/**", ".git/config", true},
		{"**/dist/**", "dist/bundle.js", true},
		{"*.md", "README.md", true},
		{"*.md", "docs/README.md", false},
		{"docs/**", "docs/guide/intro.md", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.path),
			"pattern %q against %q", tt.pattern, tt.path)
	}
}

func TestApplyCopyAfterStagingRemoved(t *testing.T) {
	staged := stageTemplate(t, map[string]string{"asset.bin": "binary"})
	out := filepath.Join(t.TempDir(), "project")

	ops, err := Process(context.Background(), staged, out, nil, types.DefaultPipelineConfig())
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "binary", ops[0].Content)

	require.NoError(t, os.RemoveAll(staged))
	require.NoError(t, Apply(ops))

	copied, err := os.ReadFile(filepath.Join(out, "asset.bin"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(copied))
}
