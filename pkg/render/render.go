// Package render computes the file operations needed to materialize a staged
// template into an output directory. It honors ignore patterns and template
// file extensions and performs no writes of its own; callers apply the
// returned operations (or discard them in dry-run mode).
package render

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/logging"
	"github.com/stencil-dev/stencil/pkg/manifest"
	"github.com/stencil-dev/stencil/pkg/types"
)

// Process walks the staged template and returns the ordered list of file
// operations required to scaffold it into outputDir with the given variable
// context. Traversal order is the lexical walk order of the template tree.
func Process(ctx context.Context, stagedPath, outputDir string, vars map[string]interface{}, cfg types.PipelineConfig) ([]types.FileOperation, error) {
	logger := logging.GetLogger("render")
	defer logging.LogDuration(time.Now(), "render")

	var ops []types.FileOperation

	err := filepath.WalkDir(stagedPath, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(stagedPath, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if MatchAny(cfg.IgnorePatterns, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		// The manifest describes the template; it is not part of the
		// scaffolded project.
		if rel == manifest.FileName || rel == manifest.YAMLFileName {
			return nil
		}

		if ext := templateExtension(rel, cfg.TemplateExtensions); ext != "" {
			op, err := renderFile(path, rel, ext, outputDir, vars, cfg.Delimiters)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		}

		// Copy content is captured eagerly so the operation list stays
		// usable after the staged directory is torn down.
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", rel)
		}
		ops = append(ops, types.FileOperation{
			Type:    types.OperationCopy,
			Source:  path,
			Target:  filepath.Join(outputDir, filepath.FromSlash(rel)),
			Content: string(raw),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrRender, "failed to process template")
	}

	logger.Debug().
		Str("template", stagedPath).
		Str("output", outputDir).
		Int("operations", len(ops)).
		Msg("computed file operations")

	return ops, nil
}

// Apply executes a list of file operations against the filesystem. The
// pipeline never calls this; it exists for callers that want the plan
// carried out.
func Apply(ops []types.FileOperation) error {
	for _, op := range ops {
		if err := os.MkdirAll(filepath.Dir(op.Target), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory for %s", op.Target)
		}

		switch op.Type {
		case types.OperationCreate:
			if err := os.WriteFile(op.Target, []byte(op.Content), 0644); err != nil {
				return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", op.Target)
			}
		case types.OperationCopy:
			if _, err := os.Stat(op.Source); err == nil {
				if err := copyFile(op.Source, op.Target); err != nil {
					return errors.Wrapf(err, errors.ErrFileCreate, "failed to copy %s", op.Source)
				}
			} else if err := os.WriteFile(op.Target, []byte(op.Content), 0644); err != nil {
				return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", op.Target)
			}
		default:
			return errors.Newf(errors.ErrInvalidInput, "unknown operation type %q", op.Type)
		}
	}
	return nil
}

func renderFile(path, rel, ext, outputDir string, vars map[string]interface{}, delims types.Delimiters) (types.FileOperation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.FileOperation{}, errors.Wrapf(err, errors.ErrFileAccess, "failed to read template file %s", rel)
	}

	tmpl, err := template.New(rel).
		Delims(delims.Start, delims.End).
		Option("missingkey=zero").
		Parse(string(raw))
	if err != nil {
		return types.FileOperation{}, errors.Wrapf(err, errors.ErrRender, "failed to parse template file %s", rel)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return types.FileOperation{}, errors.Wrapf(err, errors.ErrRender, "failed to render template file %s", rel)
	}

	target := strings.TrimSuffix(rel, ext)
	return types.FileOperation{
		Type:    types.OperationCreate,
		Target:  filepath.Join(outputDir, filepath.FromSlash(target)),
		Content: buf.String(),
	}, nil
}

func templateExtension(rel string, extensions []string) string {
	for _, ext := range extensions {
		if strings.HasSuffix(rel, ext) {
			return ext
		}
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
