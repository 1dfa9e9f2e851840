package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 3600, cfg.CacheTTL)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, []string{".eta", ".template"}, cfg.TemplateExtensions)
	assert.Equal(t, []string{"**/node_modules/**", "**/.git/**", "**/dist/**"}, cfg.IgnorePatterns)
	assert.Equal(t, Delimiters{Start: "<%", End: "%>"}, cfg.Delimiters)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := DefaultPipelineConfig()
	clone := cfg.Clone()

	clone.TemplateExtensions[0] = ".mustache"
	clone.IgnorePatterns = append(clone.IgnorePatterns, "**/tmp/**")

	assert.Equal(t, ".eta", cfg.TemplateExtensions[0])
	assert.Len(t, cfg.IgnorePatterns, 3)
}

func TestMergePartial(t *testing.T) {
	cfg := DefaultPipelineConfig()

	enabled := false
	ttl := 60
	cfg.Merge(ConfigPatch{
		CacheEnabled: &enabled,
		CacheTTL:     &ttl,
	})

	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 60, cfg.CacheTTL)
	// Untouched fields keep their defaults
	assert.Equal(t, []string{".eta", ".template"}, cfg.TemplateExtensions)
}

func TestMergeDelimitersReplacedWholesale(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Merge(ConfigPatch{Delimiters: &Delimiters{Start: "{{", End: "}}"}})

	assert.Equal(t, Delimiters{Start: "{{", End: "}}"}, cfg.Delimiters)
}

func TestMergeCopiesSlices(t *testing.T) {
	cfg := DefaultPipelineConfig()
	patterns := []string{"**/vendor/**"}
	cfg.Merge(ConfigPatch{IgnorePatterns: patterns})

	patterns[0] = "mutated"
	assert.Equal(t, "**/vendor/**", cfg.IgnorePatterns[0])
}

func TestAsPatchRoundTrip(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.CacheTTL = 42
	cfg.Delimiters = Delimiters{Start: "[[", End: "]]"}

	other := DefaultPipelineConfig()
	other.Merge(cfg.AsPatch())

	assert.Equal(t, cfg, other)
}
