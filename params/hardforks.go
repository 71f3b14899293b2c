package params

import (
	"fmt"
	"math/big"

	gethparams "github.com/ethereum/go-ethereum/params"
)

// Hardfork names, in activation order.
const (
	Chainstart       = "chainstart"
	Homestead        = "homestead"
	DAO              = "dao"
	TangerineWhistle = "tangerineWhistle"
	SpuriousDragon   = "spuriousDragon"
	Byzantium        = "byzantium"
	Constantinople   = "constantinople"
	Petersburg       = "petersburg"
	Istanbul         = "istanbul"
	MuirGlacier      = "muirGlacier"
	Berlin           = "berlin"
	London           = "london"
	ArrowGlacier     = "arrowGlacier"
	GrayGlacier      = "grayGlacier"
	Merge            = "merge"
	Shanghai         = "shanghai"
	Cancun           = "cancun"
)

var hardforkOrder = []string{
	Chainstart,
	Homestead,
	DAO,
	TangerineWhistle,
	SpuriousDragon,
	Byzantium,
	Constantinople,
	Petersburg,
	Istanbul,
	MuirGlacier,
	Berlin,
	London,
	ArrowGlacier,
	GrayGlacier,
	Merge,
	Shanghai,
	Cancun,
}

// Hardforks returns the supported hardfork names in activation order.
func Hardforks() []string {
	out := make([]string, len(hardforkOrder))
	copy(out, hardforkOrder)
	return out
}

// HardforkIndex returns the position of name in the activation order.
func HardforkIndex(name string) (int, bool) {
	for i, h := range hardforkOrder {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// IsHardforkActive reports whether fork is enabled when running hardfork.
// Unknown names are never active.
func IsHardforkActive(hardfork, fork string) bool {
	cur, ok := HardforkIndex(hardfork)
	if !ok {
		return false
	}
	idx, ok := HardforkIndex(fork)
	if !ok {
		return false
	}
	return idx <= cur
}

func (n *NetworkConfig) IsLondon() bool { return IsHardforkActive(n.Hardfork, London) }
func (n *NetworkConfig) IsBerlin() bool { return IsHardforkActive(n.Hardfork, Berlin) }
func (n *NetworkConfig) IsMerge() bool  { return IsHardforkActive(n.Hardfork, Merge) }

// ChainConfig builds the go-ethereum chain configuration with every fork up to
// and including the selected hardfork active from genesis.
func (n *NetworkConfig) ChainConfig() (*gethparams.ChainConfig, error) {
	if _, ok := HardforkIndex(n.Hardfork); !ok {
		return nil, fmt.Errorf("unknown hardfork %q", n.Hardfork)
	}

	active := func(fork string) *big.Int {
		if IsHardforkActive(n.Hardfork, fork) {
			return big.NewInt(0)
		}
		return nil
	}
	activeAt := func(fork string) *uint64 {
		if IsHardforkActive(n.Hardfork, fork) {
			zero := uint64(0)
			return &zero
		}
		return nil
	}

	cfg := &gethparams.ChainConfig{
		ChainID:             new(big.Int).SetUint64(n.ChainID),
		HomesteadBlock:      active(Homestead),
		DAOForkBlock:        active(DAO),
		DAOForkSupport:      IsHardforkActive(n.Hardfork, DAO),
		EIP150Block:         active(TangerineWhistle),
		EIP155Block:         active(SpuriousDragon),
		EIP158Block:         active(SpuriousDragon),
		ByzantiumBlock:      active(Byzantium),
		ConstantinopleBlock: active(Constantinople),
		PetersburgBlock:     active(Petersburg),
		IstanbulBlock:       active(Istanbul),
		MuirGlacierBlock:    active(MuirGlacier),
		BerlinBlock:         active(Berlin),
		LondonBlock:         active(London),
		ArrowGlacierBlock:   active(ArrowGlacier),
		GrayGlacierBlock:    active(GrayGlacier),
		ShanghaiTime:        activeAt(Shanghai),
		CancunTime:          activeAt(Cancun),
	}
	if n.IsMerge() {
		cfg.TerminalTotalDifficulty = big.NewInt(0)
		cfg.MergeNetsplitBlock = big.NewInt(0)
	}
	return cfg, nil
}
