package main

import (
	"fmt"
	"runtime"

	"github.com/Siasom1/devnet/params"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (%s)\n", params.ClientName, params.Version, runtime.Version())
		},
	}
}
