package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/source"
)

func newResolveCmd() *cobra.Command {
	var normalize bool

	cmd := &cobra.Command{
		Use:   "resolve IDENTIFIER",
		Short: "Show how a template identifier is interpreted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := source.Resolve(args[0])
			if normalize {
				src = source.Normalize(src)
			}

			data, err := json.MarshalIndent(src, "", "  ")
			if err != nil {
				return errors.Wrap(err, errors.ErrInternal, "failed to encode source")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&normalize, "normalize", false, "Canonicalize the source before printing")
	return cmd
}
