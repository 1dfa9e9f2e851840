package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/validate"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate TEMPLATE_DIR",
		Short: "Check a template directory for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := validate.Template(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				pterm.Warning.Println(w)
			}
			for _, e := range result.Errors {
				pterm.Error.Println(e)
			}

			if !result.Valid {
				return errors.Newf(errors.ErrValidate,
					"template %s is invalid (%d error(s))", args[0], len(result.Errors))
			}
			pterm.Success.Printfln("Template %s is valid", args[0])
			return nil
		},
	}
}
