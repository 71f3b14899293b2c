package params

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the top level record: a set of named networks and the one the
// node runs by default.
type Config struct {
	DefaultNetwork string                    `yaml:"defaultNetwork" json:"defaultNetwork" env:"DEVNET_NETWORK"`
	Networks       map[string]*NetworkConfig `yaml:"networks" json:"networks"`
}

// NetworkConfig describes one simulated network.
type NetworkConfig struct {
	ChainID              uint64         `yaml:"chainId" json:"chainId" env:"DEVNET_CHAIN_ID"`
	Hardfork             string         `yaml:"hardfork" json:"hardfork" env:"DEVNET_HARDFORK"`
	InitialBaseFeePerGas uint64         `yaml:"initialBaseFeePerGas" json:"initialBaseFeePerGas" env:"DEVNET_INITIAL_BASE_FEE"`
	LoggingEnabled       bool           `yaml:"loggingEnabled" json:"loggingEnabled" env:"DEVNET_LOGGING_ENABLED"`
	Accounts             AccountsConfig `yaml:"accounts" json:"accounts"`

	BlockGasLimit uint64         `yaml:"blockGasLimit" json:"blockGasLimit" env:"DEVNET_BLOCK_GAS_LIMIT"`
	Coinbase      common.Address `yaml:"coinbase" json:"coinbase"`
	Mining        MiningConfig   `yaml:"mining" json:"mining"`
}

// AccountsConfig drives deterministic test account generation.
type AccountsConfig struct {
	Mnemonic        string `yaml:"mnemonic" json:"mnemonic" env:"DEVNET_MNEMONIC"`
	Path            string `yaml:"path" json:"path" env:"DEVNET_HD_PATH"`
	Count           int    `yaml:"count" json:"count" env:"DEVNET_ACCOUNTS_COUNT"`
	InitialIndex    int    `yaml:"initialIndex" json:"initialIndex" env:"DEVNET_ACCOUNTS_INITIAL_INDEX"`
	Passphrase      string `yaml:"passphrase" json:"passphrase" env:"DEVNET_ACCOUNTS_PASSPHRASE"`
	AccountsBalance string `yaml:"accountsBalance" json:"accountsBalance" env:"DEVNET_ACCOUNTS_BALANCE"`
}

// MiningConfig selects when blocks are produced.
type MiningConfig struct {
	Auto     bool          `yaml:"auto" json:"auto" env:"DEVNET_AUTOMINE"`
	Interval time.Duration `yaml:"interval" json:"interval" env:"DEVNET_MINING_INTERVAL"`
}

// Network returns a copy of the named network.
func (c *Config) Network(name string) (*NetworkConfig, error) {
	n, ok := c.Networks[name]
	if !ok || n == nil {
		return nil, fmt.Errorf("network %q is not configured", name)
	}
	return n.Clone(), nil
}

// Default returns a copy of the default network.
func (c *Config) Default() (*NetworkConfig, error) {
	return c.Network(c.DefaultNetwork)
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	out := &Config{
		DefaultNetwork: c.DefaultNetwork,
		Networks:       make(map[string]*NetworkConfig, len(c.Networks)),
	}
	for name, n := range c.Networks {
		if n != nil {
			out.Networks[name] = n.Clone()
		}
	}
	return out
}

// Clone returns a copy of the network. All fields are values, so a shallow
// copy is already independent of the original.
func (n *NetworkConfig) Clone() *NetworkConfig {
	cp := *n
	return &cp
}

// AccountsBalanceWei parses accounts.accountsBalance.
func (n *NetworkConfig) AccountsBalanceWei() (*big.Int, error) {
	bal, ok := new(big.Int).SetString(n.Accounts.AccountsBalance, 10)
	if !ok {
		return nil, fmt.Errorf("invalid accountsBalance %q", n.Accounts.AccountsBalance)
	}
	if bal.Sign() < 0 {
		return nil, fmt.Errorf("accountsBalance must not be negative")
	}
	return bal, nil
}

// InitialBaseFee returns the genesis base fee, or nil before london.
func (n *NetworkConfig) InitialBaseFee() *big.Int {
	if !n.IsLondon() {
		return nil
	}
	return new(big.Int).SetUint64(n.InitialBaseFeePerGas)
}
