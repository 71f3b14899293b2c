package params

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ------------------------------------------------------------
// DEFAULT NETWORK
// ------------------------------------------------------------

const (
	// DefaultNetworkName is the network the node runs when none is selected.
	DefaultNetworkName = "hardhat"

	// DefaultMnemonic is the well known development seed phrase.
	// Never fund these accounts on a public network.
	DefaultMnemonic = "test test test test test test test test test test test junk"

	DefaultHDPath        = "m/44'/60'/0'"
	DefaultAccountsCount = 10
	DefaultChainID       = 1
	DefaultHardfork      = "london"
	DefaultBlockGasLimit = 30_000_000
)

var (
	// DefaultCoinbase receives priority fees of mined blocks.
	DefaultCoinbase = common.HexToAddress("0xc014ba5ec014ba5ec014ba5ec014ba5ec014ba5e")

	ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// DefaultAccountsBalance is 10000 ETH per derived account.
	DefaultAccountsBalance = new(big.Int).Mul(big.NewInt(10_000), ether)
)

// DefaultNetworkConfig returns the network the devnet simulates out of the box.
func DefaultNetworkConfig() *NetworkConfig {
	return &NetworkConfig{
		ChainID:  DefaultChainID,
		Hardfork: DefaultHardfork,
		// A base fee of 0 allows transactions with a gas price of 0.
		InitialBaseFeePerGas: 0,
		LoggingEnabled:       true,
		Accounts: AccountsConfig{
			Mnemonic:        DefaultMnemonic,
			Path:            DefaultHDPath,
			Count:           DefaultAccountsCount,
			InitialIndex:    0,
			Passphrase:      "",
			AccountsBalance: DefaultAccountsBalance.String(),
		},
		BlockGasLimit: DefaultBlockGasLimit,
		Coinbase:      DefaultCoinbase,
		Mining: MiningConfig{
			Auto:     true,
			Interval: 0,
		},
	}
}

// DefaultConfig returns a fresh copy of the built-in configuration record.
func DefaultConfig() *Config {
	return &Config{
		DefaultNetwork: DefaultNetworkName,
		Networks: map[string]*NetworkConfig{
			DefaultNetworkName: DefaultNetworkConfig(),
		},
	}
}
