package node

import (
	"fmt"

	"github.com/Siasom1/devnet/log"
)

// Config holds the process-level settings. The simulated network itself is
// described by params.NetworkConfig.
type Config struct {
	// DataDir persists chain and state. Empty keeps everything in memory.
	DataDir string `yaml:"datadir" env:"DEVNET_DATADIR"`

	RPCHost string `yaml:"rpc_host" env:"DEVNET_RPC_HOST"`
	RPCPort int    `yaml:"rpc_port" env:"DEVNET_RPC_PORT"`

	// ExplorerPort serves the REST explorer. Zero disables it.
	ExplorerPort int `yaml:"explorer_port" env:"DEVNET_EXPLORER_PORT"`

	// WriteAccounts writes the derived accounts to <datadir>/accounts.json,
	// encrypted when AccountsPassword is set.
	WriteAccounts    bool   `yaml:"write_accounts" env:"DEVNET_WRITE_ACCOUNTS"`
	AccountsPassword string `yaml:"-" env:"DEVNET_ACCOUNTS_PASSWORD"`

	Log log.Config `yaml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:      "",
		RPCHost:      "127.0.0.1",
		RPCPort:      8545,
		ExplorerPort: 9500,
		Log: log.Config{
			Level:  log.DefaultLevel,
			Format: log.DefaultFormat,
		},
	}
}

// Validate checks the process settings.
func (c *Config) Validate() error {
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc port %d out of range", c.RPCPort)
	}
	if c.ExplorerPort < 0 || c.ExplorerPort > 65535 {
		return fmt.Errorf("explorer port %d out of range", c.ExplorerPort)
	}
	if c.WriteAccounts && c.DataDir == "" {
		return fmt.Errorf("writing the accounts file requires a data directory")
	}
	if c.Log.Level != "" && !log.ValidLevel(c.Log.Level) {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
