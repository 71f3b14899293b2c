package main

import (
	"github.com/Siasom1/devnet/wallet"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	var showKeys bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Print the accounts derived from the network's mnemonic",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, network, err := opts.load()
			if err != nil {
				return err
			}
			accs, err := wallet.DeriveAccounts(network.Accounts)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)

			header := table.Row{"#", "Address", "Path"}
			if showKeys {
				header = append(header, "Private Key")
			}
			t.AppendHeader(header)

			for _, a := range accs {
				row := table.Row{a.Index, a.Address.Hex(), a.Path.String()}
				if showKeys {
					row = append(row, a.PrivateKeyHex())
				}
				t.AppendRow(row)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&showKeys, "keys", false, "also print private keys")
	return cmd
}
