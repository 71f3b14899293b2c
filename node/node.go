// Package node wires the devnet together: state and chain, derived accounts,
// the block producer, the JSON-RPC server and the explorer.
package node

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Siasom1/devnet/config"
	"github.com/Siasom1/devnet/consensus/producer"
	"github.com/Siasom1/devnet/core/blockchain"
	"github.com/Siasom1/devnet/events"
	"github.com/Siasom1/devnet/explorer"
	"github.com/Siasom1/devnet/log"
	"github.com/Siasom1/devnet/metrics"
	"github.com/Siasom1/devnet/params"
	"github.com/Siasom1/devnet/rpc"
	"github.com/Siasom1/devnet/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 5 * time.Second

type Node struct {
	Config  *Config
	Network *params.NetworkConfig
	Logger  log.Logger

	// Out receives the account banner.
	Out io.Writer

	Registry      *prometheus.Registry
	Metrics       *metrics.Metrics
	Events        *events.EventBus
	Accounts      []wallet.Account
	Keyring       *wallet.Keyring
	Chain         *blockchain.Blockchain
	BlockProducer *producer.BlockProducer
	RPCServer     *rpc.Server
	ExplorerAPI   *explorer.ExplorerAPI

	stopOnce sync.Once
}

// New validates both configurations and builds the logger. Nothing is
// opened until Start.
func New(cfg *Config, network *params.NetworkConfig) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := config.ValidateNetwork("selected", network); err != nil {
		return nil, err
	}

	logger, err := log.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	return &Node{
		Config:  cfg,
		Network: network.Clone(),
		Logger:  logger,
		Out:     os.Stdout,
	}, nil
}

func (n *Node) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.Logger.Info("Starting devnet node",
		log.String("version", params.Version),
		log.Uint64("chain_id", n.Network.ChainID),
		log.String("hardfork", n.Network.Hardfork),
		log.String("datadir", dataDirLabel(n.Config.DataDir)),
	)

	if err := n.start(ctx); err != nil {
		n.Logger.Error("Failed to start node", log.Err(err))
		_ = n.Stop()
		return err
	}
	n.Logger.Info("Node started successfully")
	return nil
}

func (n *Node) start(ctx context.Context) error {
	// ------------------------------------------------
	// 1. Metrics and event bus
	// ------------------------------------------------
	n.Registry = prometheus.NewRegistry()
	n.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	n.Metrics = metrics.NewMetrics(n.Registry)
	n.Events = events.NewEventBus()

	// ------------------------------------------------
	// 2. Accounts
	// ------------------------------------------------
	accs, err := wallet.DeriveAccounts(n.Network.Accounts)
	if err != nil {
		return fmt.Errorf("derive accounts: %w", err)
	}
	n.Accounts = accs
	n.Keyring = wallet.NewKeyring(accs)

	if n.Config.WriteAccounts {
		path, err := wallet.WriteAccountsFile(n.Config.DataDir, accs, n.Config.AccountsPassword)
		if err != nil {
			return fmt.Errorf("write accounts file: %w", err)
		}
		n.Logger.Info("Wrote accounts file", log.String("path", path))
	}

	// ------------------------------------------------
	// 3. Blockchain
	// ------------------------------------------------
	alloc := make([]common.Address, len(accs))
	for i, a := range accs {
		alloc[i] = a.Address
	}
	chainCfg := blockchain.DefaultConfig(n.Network, alloc)
	chainCfg.DataDir = n.Config.DataDir
	chainCfg.Logger = n.Logger

	bc, err := blockchain.NewBlockchain(chainCfg)
	if err != nil {
		return fmt.Errorf("init blockchain: %w", err)
	}
	n.Chain = bc

	head := n.Chain.Head()
	n.Logger.Info("Loaded chain head",
		log.Uint64("number", head.Number()),
		log.Stringer("hash", head.Hash()),
	)
	if err := ctx.Err(); err != nil {
		return err
	}

	// ------------------------------------------------
	// 4. Block producer
	// ------------------------------------------------
	n.BlockProducer = producer.NewBlockProducer(n.Chain, n.Events, n.Logger, n.Metrics, producer.Config{
		Automine: n.Network.Mining.Auto,
		Interval: n.Network.Mining.Interval,
		Verbose:  n.Network.LoggingEnabled,
	})
	n.BlockProducer.Start()

	// ------------------------------------------------
	// 5. RPC server
	// ------------------------------------------------
	n.RPCServer = rpc.NewServer(rpc.Backend{
		Chain:    n.Chain,
		Producer: n.BlockProducer,
		Keyring:  n.Keyring,
	}, n.Events, n.Logger, n.Metrics, rpc.Config{
		Host:     n.Config.RPCHost,
		Port:     n.Config.RPCPort,
		Verbose:  n.Network.LoggingEnabled,
		Gatherer: n.Registry,
	})
	if err := n.RPCServer.Start(); err != nil {
		return err
	}

	// ------------------------------------------------
	// 6. Explorer API (REST + live streams)
	// ------------------------------------------------
	if n.Config.ExplorerPort > 0 {
		n.ExplorerAPI = explorer.NewExplorerAPI(n.Chain, n.Events, n.Keyring, n.Logger)
		if err := n.ExplorerAPI.Start(n.Config.RPCHost, n.Config.ExplorerPort); err != nil {
			return err
		}
	}

	balance, err := n.Network.AccountsBalanceWei()
	if err != nil {
		return err
	}
	printBanner(n.Out, n.RPCURL(), n.Network, n.Accounts, balance)
	return nil
}

// RPCURL is the HTTP endpoint, valid after Start.
func (n *Node) RPCURL() string {
	if n.RPCServer == nil || n.RPCServer.Addr() == "" {
		return ""
	}
	return "http://" + n.RPCServer.Addr() + "/"
}

// Stop shuts everything down in reverse start order. It is safe to call more
// than once.
func (n *Node) Stop() error {
	var firstErr error
	n.stopOnce.Do(func() {
		n.Logger.Info("Stopping devnet node")

		keep := func(err error) {
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		// each server gets its own deadline
		shutdown := func(fn func(context.Context) error) {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			keep(fn(ctx))
		}

		if n.ExplorerAPI != nil {
			shutdown(n.ExplorerAPI.Shutdown)
		}
		if n.RPCServer != nil {
			shutdown(n.RPCServer.Shutdown)
		}
		if n.BlockProducer != nil {
			n.BlockProducer.Stop()
		}
		if n.Chain != nil {
			keep(n.Chain.Close())
		}

		n.Logger.Info("Node stopped")
		_ = n.Logger.Sync()
	})
	return firstErr
}

func dataDirLabel(dir string) string {
	if dir == "" {
		return "(in memory)"
	}
	return dir
}
