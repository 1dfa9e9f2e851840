package commands

import (
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stencil-dev/stencil/pkg/config"
	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/pipeline"
	"github.com/stencil-dev/stencil/pkg/render"
)

func newNewCmd() *cobra.Command {
	var (
		dryRun    bool
		noCache   bool
		outputDir string
		varFlags  []string
	)

	cmd := &cobra.Command{
		Use:   "new TEMPLATE [OUTPUT_DIR]",
		Short: "Create a project from a template",
		Long: `Create a project from a template. TEMPLATE may be a built-in name
(see "stencil templates"), a local directory, a GitHub owner/repo
shorthand, a github: reference or an archive URL.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier := args[0]
			if len(args) > 1 {
				outputDir = args[1]
			}
			if outputDir == "" {
				outputDir = "."
			}

			vars, err := parseVars(varFlags)
			if err != nil {
				return err
			}

			workDir, err := os.Getwd()
			if err != nil {
				return errors.Wrap(err, errors.ErrFileAccess, "failed to determine working directory")
			}
			cfg, err := config.Load(workDir)
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}
			if noCache {
				cfg.CacheEnabled = false
			}

			p := pipeline.Default(cfg.AsPatch())

			result, err := p.Execute(cmd.Context(), identifier, pipeline.ExecuteOptions{
				OutputDir: outputDir,
				Context:   vars,
				OnProgress: func(stage string) {
					pterm.Info.Printfln("%s %s", pterm.Gray("stage:"), stage)
				},
			})
			if err != nil {
				pterm.Error.Println(err.Error())
				return err
			}

			if cfg.DryRun {
				pterm.Success.Printfln("Dry run: %d file(s) would be created in %s",
					result.Stats.FilesProcessed, outputDir)
				return nil
			}

			if err := render.Apply(result.Operations); err != nil {
				pterm.Error.Println(err.Error())
				return err
			}

			pterm.Success.Printfln("Created %s from template %q (%d files, %s)",
				outputDir, result.Template.Metadata.Name,
				result.Stats.FilesProcessed, result.Stats.TotalTime.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute operations without writing any files")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the template cache")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default current directory)")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Template variable as name=value (repeatable)")

	return cmd
}

// parseVars turns repeated name=value flags into a render context.
func parseVars(flags []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(flags))
	for _, flag := range flags {
		name, value, ok := strings.Cut(flag, "=")
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"invalid --var %q, expected name=value", flag)
		}
		switch value {
		case "true":
			vars[name] = true
		case "false":
			vars[name] = false
		default:
			vars[name] = value
		}
	}
	return vars, nil
}
