// Package validate inspects a staged template directory and reports
// structural validity. Errors fail the pipeline's VALIDATE stage; warnings
// are informational only.
package validate

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stencil-dev/stencil/pkg/logging"
	"github.com/stencil-dev/stencil/pkg/manifest"
	"github.com/stencil-dev/stencil/pkg/types"
)

//go:embed schema.json
var manifestSchema []byte

var schema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded manifest schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add manifest schema resource: %v", err))
	}
	s, err := c.Compile("manifest.schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile manifest schema: %v", err))
	}
	return s
}

// Template checks a staged template directory. It never returns a Go error
// for template problems; those are folded into the result. The error return
// is reserved for environmental failures such as an unreadable directory.
func Template(ctx context.Context, stagedPath string) (*types.ValidationResult, error) {
	logger := logging.GetLogger("validate")
	result := &types.ValidationResult{Valid: true}

	info, err := os.Stat(stagedPath)
	if err != nil || !info.IsDir() {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("template directory does not exist: %s", stagedPath))
		return result, nil
	}

	entries, err := os.ReadDir(stagedPath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "template directory is empty")
		return result, nil
	}

	checkManifest(stagedPath, result)

	logger.Debug().
		Str("path", stagedPath).
		Bool("valid", result.Valid).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("template validated")

	return result, nil
}

func checkManifest(stagedPath string, result *types.ValidationResult) {
	// Schema validation runs against the raw JSON manifest. YAML manifests
	// only get the struct-level checks below.
	if raw, err := os.ReadFile(filepath.Join(stagedPath, manifest.FileName)); err == nil {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("manifest is not valid JSON: %v", err))
			return
		}
		if err := schema.Validate(doc); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("manifest does not match schema: %v", err))
			return
		}
	}

	meta, err := manifest.Load(stagedPath)
	if err != nil {
		if manifest.IsMissing(err) {
			result.Warnings = append(result.Warnings, "no template manifest found, defaults will be applied")
			return
		}
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return
	}

	if meta.Name == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "manifest name must not be empty")
	}

	if meta.Version != "" && !manifest.IsSemver(meta.Version) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("version %q is not a semantic version", meta.Version))
	}

	for _, v := range meta.Variables {
		checkVariable(v, result)
	}
}

func checkVariable(v types.TemplateVariable, result *types.ValidationResult) {
	fail := func(format string, args ...interface{}) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if v.Name == "" {
		fail("variable with empty name declared")
		return
	}
	if v.Description == "" {
		fail("variable %q must have a description", v.Name)
	}

	switch v.Type {
	case types.VariableString, types.VariableBoolean, types.VariableNumber:
	case types.VariableSelect:
		if len(v.Options) == 0 {
			fail("select variable %q must declare at least one option", v.Name)
		}
	default:
		fail("variable %q has unknown type %q", v.Name, v.Type)
	}

	if v.Pattern != "" {
		if v.Type != types.VariableString {
			fail("variable %q declares a pattern but is not a string", v.Name)
		} else if _, err := regexp.Compile(v.Pattern); err != nil {
			fail("variable %q has an invalid pattern: %v", v.Name, err)
		}
	}
}
