// Package config loads pipeline configuration by layering, in order of
// increasing precedence: embedded defaults, a project config file in the
// working directory, and STENCIL_* environment variables.
package config

import (
	_ "embed"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/types"
)

// Project config file names, tried in order. The first one found wins.
var configFileNames = []string{".stencil.toml", "stencil.toml"}

//go:embed embedded/defaults.toml
var defaultConfig []byte

// rawBytesProvider implements the koanf provider interface for raw bytes.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, stderrors.New("not implemented")
}

// envKeys maps environment variables to their config keys. Anything not
// listed here is ignored.
var envKeys = map[string]string{
	"STENCIL_CACHE_ENABLED":   "cache_enabled",
	"STENCIL_CACHE_TTL":       "cache_ttl",
	"STENCIL_VERBOSE":         "verbose",
	"STENCIL_DRY_RUN":         "dry_run",
	"STENCIL_DELIMITER_START": "delimiters.start",
	"STENCIL_DELIMITER_END":   "delimiters.end",
}

// Load builds the effective pipeline configuration for a working directory.
func Load(workDir string) (types.PipelineConfig, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return types.PipelineConfig{}, errors.Wrap(err, errors.ErrConfigLoad, "failed to load default config")
	}

	// 2. Project config file, if present
	for _, name := range configFileNames {
		path := filepath.Join(workDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return types.PipelineConfig{}, errors.Wrapf(err, errors.ErrConfigParse,
				"failed to parse config file %s", path)
		}
		break
	}

	// 3. Environment variables
	err := k.Load(env.Provider("STENCIL_", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		return types.PipelineConfig{}, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment config")
	}

	cfg := types.DefaultPipelineConfig()
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return types.PipelineConfig{}, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal config")
	}

	if cfg.CacheTTL < 0 {
		return types.PipelineConfig{}, errors.New(errors.ErrInvalidInput, "cache_ttl must not be negative")
	}

	return cfg, nil
}

// DefaultContent renders the default configuration as a TOML document, used
// by the config generation command.
func DefaultContent() (string, error) {
	data, err := gotoml.Marshal(types.DefaultPipelineConfig())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to marshal default config")
	}
	return string(data), nil
}

// Generate writes the default configuration to a project config file. It
// refuses to overwrite an existing file.
func Generate(workDir string) (string, error) {
	path := filepath.Join(workDir, configFileNames[0])
	if _, err := os.Stat(path); err == nil {
		return "", errors.Newf(errors.ErrAlreadyExists, "config file already exists: %s", path)
	}

	content, err := DefaultContent()
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to write config file %s", path)
	}
	return path, nil
}
