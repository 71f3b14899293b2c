package blockchain

import (
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/params"
	"github.com/ethereum/go-ethereum/common"
)

// Config defines how a blockchain instance should behave.
type Config struct {
	// DataDir holds chaindata/ and state/. Empty keeps everything in memory.
	DataDir string

	Network *params.NetworkConfig

	// Alloc lists the accounts funded with accountsBalance at genesis.
	Alloc []common.Address

	Logger log.Logger
}

func DefaultConfig(network *params.NetworkConfig, alloc []common.Address) Config {
	return Config{
		Network: network,
		Alloc:   alloc,
		Logger:  log.NewNop(),
	}
}
