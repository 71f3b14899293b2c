package main

import (
	"context"
	"fmt"

	"github.com/Siasom1/devnet/config"
	"github.com/Siasom1/devnet/params"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	cfgFile string
	network string
}

// newRootCommand builds the command tree. It is a constructor so tests get a
// fresh tree with fresh flags.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "devnet",
		Short:         "A local Ethereum development network",
		Long:          `devnet runs a single-node Ethereum development chain configured like a Hardhat network.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "",
		"network config file, YAML or JSON (env "+config.ConfigPathEnv+")")
	root.PersistentFlags().StringVar(&opts.network, "network", "",
		"network to run (default: the config's defaultNetwork)")

	root.AddCommand(
		newNodeCommand(opts),
		newAccountsCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with a fresh context.
func Execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}

// load resolves the config record and the selected network.
func (o *rootOptions) load() (*params.Config, *params.NetworkConfig, error) {
	cfg, err := config.Load(config.GetConfigPath(o.cfgFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	name := o.network
	if name == "" {
		name = cfg.DefaultNetwork
	}
	network, err := cfg.Network(name)
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateNetwork(name, network); err != nil {
		return nil, nil, err
	}
	return cfg, network, nil
}
