package main

import (
	"os"

	"github.com/stencil-dev/stencil/cmd/stencil/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
