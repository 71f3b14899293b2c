package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Siasom1/devnet/config"
	"github.com/Siasom1/devnet/node"
	"github.com/spf13/cobra"
)

func newNodeCommand(opts *rootOptions) *cobra.Command {
	nodeCfg := node.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run the development network",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, network, err := opts.load()
			if err != nil {
				return err
			}

			// env fills whatever flags left at their defaults
			if err := applyNodeEnv(cmd, nodeCfg); err != nil {
				return err
			}

			n, err := node.New(nodeCfg, network)
			if err != nil {
				return err
			}
			n.Out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := n.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return n.Stop()
		},
	}

	f := cmd.Flags()
	f.StringVar(&nodeCfg.DataDir, "datadir", nodeCfg.DataDir, "data directory (default: in memory)")
	f.StringVar(&nodeCfg.RPCHost, "host", nodeCfg.RPCHost, "JSON-RPC listen host")
	f.IntVar(&nodeCfg.RPCPort, "port", nodeCfg.RPCPort, "JSON-RPC listen port")
	f.IntVar(&nodeCfg.ExplorerPort, "explorer-port", nodeCfg.ExplorerPort, "explorer REST port (0 disables)")
	f.BoolVar(&nodeCfg.WriteAccounts, "write-accounts", nodeCfg.WriteAccounts, "write derived accounts to <datadir>/accounts.json")
	f.StringVar(&nodeCfg.Log.Level, "log-level", nodeCfg.Log.Level, "log level: debug, info, warn, error")
	f.StringVar(&nodeCfg.Log.Format, "log-format", nodeCfg.Log.Format, "log format: console or json")
	return cmd
}

// applyNodeEnv applies DEVNET_* variables, then restores any flag the user
// set explicitly so flags win over the environment.
func applyNodeEnv(cmd *cobra.Command, cfg *node.Config) error {
	explicit := *cfg
	if err := config.ApplyEnv(cfg); err != nil {
		return fmt.Errorf("node config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("datadir") {
		cfg.DataDir = explicit.DataDir
	}
	if flags.Changed("host") {
		cfg.RPCHost = explicit.RPCHost
	}
	if flags.Changed("port") {
		cfg.RPCPort = explicit.RPCPort
	}
	if flags.Changed("explorer-port") {
		cfg.ExplorerPort = explicit.ExplorerPort
	}
	if flags.Changed("write-accounts") {
		cfg.WriteAccounts = explicit.WriteAccounts
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = explicit.Log.Level
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = explicit.Log.Format
	}
	return nil
}
