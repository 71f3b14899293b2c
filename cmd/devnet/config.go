package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	var selectedOnly bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved, validated configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, network, err := opts.load()
			if err != nil {
				return err
			}

			var v any = cfg
			if selectedOnly {
				v = network
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().BoolVar(&selectedOnly, "selected", false, "print only the selected network")
	return cmd
}
