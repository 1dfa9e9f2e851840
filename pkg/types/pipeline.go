package types

import "time"

// Delimiters is the variable-delimiter pair used during rendering.
type Delimiters struct {
	Start string `json:"start" koanf:"start" toml:"start"`
	End   string `json:"end" koanf:"end" toml:"end"`
}

// PipelineConfig controls pipeline behavior. A running pipeline owns a
// private mutable copy; callers only ever see defensive copies.
type PipelineConfig struct {
	// CacheEnabled allows fetch results to be served from the template cache
	CacheEnabled bool `json:"cacheEnabled" koanf:"cache_enabled" toml:"cache_enabled"`

	// CacheTTL is the cache entry lifetime in seconds
	CacheTTL int `json:"cacheTTL" koanf:"cache_ttl" toml:"cache_ttl"`

	// Verbose enables extra progress detail
	Verbose bool `json:"verbose" koanf:"verbose" toml:"verbose"`

	// DryRun suppresses the file-write side effects of rendering
	DryRun bool `json:"dryRun" koanf:"dry_run" toml:"dry_run"`

	// TemplateExtensions mark files whose content is rendered (and whose
	// extension is stripped from the target filename)
	TemplateExtensions []string `json:"templateExtensions" koanf:"template_extensions" toml:"template_extensions"`

	// IgnorePatterns are glob patterns (with ** support) excluded from rendering
	IgnorePatterns []string `json:"ignorePatterns" koanf:"ignore_patterns" toml:"ignore_patterns"`

	// Delimiters wrap variable references inside template files
	Delimiters Delimiters `json:"variableDelimiters" koanf:"delimiters" toml:"delimiters"`
}

// DefaultPipelineConfig returns the documented defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CacheEnabled:       true,
		CacheTTL:           3600,
		Verbose:            false,
		DryRun:             false,
		TemplateExtensions: []string{".eta", ".template"},
		IgnorePatterns:     []string{"**/node_modules/**", "**/.git/**", "**/dist/**"},
		Delimiters:         Delimiters{Start: "<%", End: "%>"},
	}
}

// Clone returns a deep copy so callers cannot mutate pipeline state
// through shared slices.
func (c PipelineConfig) Clone() PipelineConfig {
	out := c
	out.TemplateExtensions = append([]string(nil), c.TemplateExtensions...)
	out.IgnorePatterns = append([]string(nil), c.IgnorePatterns...)
	return out
}

// TTL returns the cache lifetime as a duration.
func (c PipelineConfig) TTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// AsPatch converts a full config into a patch that sets every field, useful
// when a loaded configuration should replace pipeline defaults wholesale.
func (c PipelineConfig) AsPatch() ConfigPatch {
	cacheEnabled := c.CacheEnabled
	cacheTTL := c.CacheTTL
	verbose := c.Verbose
	dryRun := c.DryRun
	delims := c.Delimiters
	return ConfigPatch{
		CacheEnabled:       &cacheEnabled,
		CacheTTL:           &cacheTTL,
		Verbose:            &verbose,
		DryRun:             &dryRun,
		TemplateExtensions: append([]string(nil), c.TemplateExtensions...),
		IgnorePatterns:     append([]string(nil), c.IgnorePatterns...),
		Delimiters:         &delims,
	}
}

// ConfigPatch is a partial PipelineConfig for shallow merging. Nil fields
// leave the existing value untouched; Delimiters is replaced wholesale,
// never merged field-by-field.
type ConfigPatch struct {
	CacheEnabled       *bool
	CacheTTL           *int
	Verbose            *bool
	DryRun             *bool
	TemplateExtensions []string
	IgnorePatterns     []string
	Delimiters         *Delimiters
}

// Merge applies the patch to the config, one level deep.
func (c *PipelineConfig) Merge(p ConfigPatch) {
	if p.CacheEnabled != nil {
		c.CacheEnabled = *p.CacheEnabled
	}
	if p.CacheTTL != nil {
		c.CacheTTL = *p.CacheTTL
	}
	if p.Verbose != nil {
		c.Verbose = *p.Verbose
	}
	if p.DryRun != nil {
		c.DryRun = *p.DryRun
	}
	if p.TemplateExtensions != nil {
		c.TemplateExtensions = append([]string(nil), p.TemplateExtensions...)
	}
	if p.IgnorePatterns != nil {
		c.IgnorePatterns = append([]string(nil), p.IgnorePatterns...)
	}
	if p.Delimiters != nil {
		c.Delimiters = *p.Delimiters
	}
}

// ValidationResult is the outcome of structural template validation.
// Errors fail the pipeline; warnings never do.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// PipelineStats aggregates timing and counters for one pipeline run.
type PipelineStats struct {
	// TotalTime is wall-clock time across all stages
	TotalTime time.Duration `json:"totalTimeMs"`

	// StageTimings records wall-clock duration per attempted stage
	StageTimings map[string]time.Duration `json:"stageTimings"`

	// FilesProcessed is the operation count before any dry-run truncation
	FilesProcessed int `json:"filesProcessed"`

	// CacheHit reports whether fetch was served from the cache
	CacheHit bool `json:"cacheHit"`
}

// PipelineResult is the successful outcome of a pipeline execution.
type PipelineResult struct {
	Template   TemplateInfo    `json:"template"`
	Operations []FileOperation `json:"operations"`
	Stats      PipelineStats   `json:"stats"`
}
