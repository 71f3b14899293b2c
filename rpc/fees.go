package rpc

import (
	"math/big"

	gethparams "github.com/ethereum/go-ethereum/params"
)

// DefaultPriorityFee is the tip suggested by eth_maxPriorityFeePerGas and
// used by eth_sendTransaction when none is given.
var DefaultPriorityFee = big.NewInt(gethparams.GWei)

// suggestGasPrice is the legacy gas price: the next base fee plus the default
// tip, or just the tip before london.
func suggestGasPrice(nextBaseFee *big.Int) *big.Int {
	price := new(big.Int).Set(DefaultPriorityFee)
	if nextBaseFee != nil {
		price.Add(price, nextBaseFee)
	}
	return price
}

// defaultFeeCap leaves room for the base fee to double before the
// transaction stops being includable.
func defaultFeeCap(nextBaseFee, tip *big.Int) *big.Int {
	feeCap := new(big.Int).Mul(bigOrZero(nextBaseFee), big.NewInt(2))
	return feeCap.Add(feeCap, tip)
}
