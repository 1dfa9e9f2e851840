package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stencil-dev/stencil/pkg/source"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := source.BuiltinTemplates()
			if len(names) == 0 {
				pterm.Warning.Println("No built-in templates available")
				return nil
			}

			rows := pterm.TableData{{"NAME", "DESCRIPTION"}}
			for _, name := range names {
				rows = append(rows, []string{name, source.BuiltinDescription(name)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}
