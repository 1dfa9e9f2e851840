// Package manifest reads and writes the template manifest that describes a
// template's identity and its customizable variables. The canonical manifest
// is template.json at the template root; template.yaml is accepted as a
// fallback for hand-authored templates.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/types"
)

const (
	// FileName is the canonical manifest filename within a template root
	FileName = "template.json"

	// YAMLFileName is the accepted fallback manifest filename
	YAMLFileName = "template.yaml"

	// DefaultVersion is applied when a manifest declares no version
	DefaultVersion = "1.0.0"
)

// Load reads the manifest from a template directory. A missing manifest is
// reported with ErrManifestMissing so callers can choose to default instead
// of failing.
func Load(dir string) (*types.TemplateMetadata, error) {
	jsonPath := filepath.Join(dir, FileName)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var meta types.TemplateMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, errors.Wrapf(err, errors.ErrManifestParse, "failed to parse %s", FileName)
		}
		return &meta, nil
	}

	yamlPath := filepath.Join(dir, YAMLFileName)
	if data, err := os.ReadFile(yamlPath); err == nil {
		var meta types.TemplateMetadata
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return nil, errors.Wrapf(err, errors.ErrManifestParse, "failed to parse %s", YAMLFileName)
		}
		return &meta, nil
	}

	return nil, errors.Newf(errors.ErrManifestMissing, "no template manifest found in %s", dir)
}

// IsMissing reports whether err indicates an absent manifest.
func IsMissing(err error) bool {
	return errors.IsErrorCode(err, errors.ErrManifestMissing)
}

// Save writes the manifest as template.json with two-space indentation and a
// trailing newline.
func Save(dir string, meta *types.TemplateMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode template manifest")
	}
	data = append(data, '\n')

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", path)
	}
	return nil
}

// ApplyDefaults fills in the defaulted manifest fields: a missing name is
// derived from the fallback (typically the output directory's base name) and
// a missing version becomes DefaultVersion.
func ApplyDefaults(meta *types.TemplateMetadata, fallbackName string) {
	if meta.Name == "" {
		meta.Name = filepath.Base(fallbackName)
	}
	if meta.Version == "" {
		meta.Version = DefaultVersion
	}
}

// IsSemver reports whether v parses as a semantic version. A non-semver
// version is never fatal; validators surface it as a warning only.
func IsSemver(v string) bool {
	_, err := semver.NewVersion(v)
	return err == nil
}

// ResolveContext merges caller-provided values with declared variable
// defaults and enforces the declared constraints: required variables must be
// present, string patterns must match, and select values must be members of
// the declared options.
func ResolveContext(meta *types.TemplateMetadata, provided map[string]interface{}) (map[string]interface{}, error) {
	ctx := make(map[string]interface{}, len(provided))
	for k, v := range provided {
		ctx[k] = v
	}

	for _, v := range meta.Variables {
		value, ok := ctx[v.Name]
		if !ok {
			if v.Default != nil {
				ctx[v.Name] = v.Default
				continue
			}
			if v.Required {
				return nil, errors.Newf(errors.ErrVariableInvalid,
					"required variable %q was not provided", v.Name)
			}
			continue
		}

		if err := checkConstraints(v, value); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

func checkConstraints(v types.TemplateVariable, value interface{}) error {
	switch v.Type {
	case types.VariableString:
		s, ok := value.(string)
		if !ok {
			return errors.Newf(errors.ErrVariableInvalid,
				"variable %q must be a string, got %T", v.Name, value)
		}
		if v.Pattern != "" {
			re, err := regexp.Compile(v.Pattern)
			if err != nil {
				return errors.Wrapf(err, errors.ErrVariableInvalid,
					"variable %q has an invalid pattern", v.Name)
			}
			if !re.MatchString(s) {
				return errors.Newf(errors.ErrVariableInvalid,
					"variable %q value %q does not match pattern %s", v.Name, s, v.Pattern)
			}
		}

	case types.VariableBoolean:
		if _, ok := value.(bool); !ok {
			return errors.Newf(errors.ErrVariableInvalid,
				"variable %q must be a boolean, got %T", v.Name, value)
		}

	case types.VariableNumber:
		switch value.(type) {
		case int, int64, float64:
		default:
			return errors.Newf(errors.ErrVariableInvalid,
				"variable %q must be a number, got %T", v.Name, value)
		}

	case types.VariableSelect:
		s := fmt.Sprintf("%v", value)
		for _, opt := range v.Options {
			if s == opt {
				return nil
			}
		}
		return errors.Newf(errors.ErrVariableInvalid,
			"variable %q value %q is not one of %v", v.Name, s, v.Options)
	}

	return nil
}
