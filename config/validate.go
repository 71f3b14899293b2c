package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Siasom1/devnet/params"
	"github.com/Siasom1/devnet/wallet"
	gethparams "github.com/ethereum/go-ethereum/params"
)

// ValidationError is a structural problem with the configuration record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the whole record: the default network must exist and every
// network must be well formed.
func Validate(cfg *params.Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Message: "is required"}
	}
	if cfg.DefaultNetwork == "" {
		return &ValidationError{Field: "defaultNetwork", Message: "is required"}
	}
	if _, ok := cfg.Networks[cfg.DefaultNetwork]; !ok {
		return &ValidationError{
			Field:   "defaultNetwork",
			Message: fmt.Sprintf("network %q is not configured", cfg.DefaultNetwork),
		}
	}
	for _, name := range cfg.NetworkNames() {
		if err := ValidateNetwork(name, cfg.Networks[name]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNetwork checks a single network definition.
func ValidateNetwork(name string, n *params.NetworkConfig) error {
	prefix := "networks." + name
	if n == nil {
		return &ValidationError{Field: prefix, Message: "is empty"}
	}

	if n.ChainID == 0 {
		return &ValidationError{Field: prefix + ".chainId", Message: "must be a positive integer"}
	}

	if _, ok := params.HardforkIndex(n.Hardfork); !ok {
		return &ValidationError{
			Field:   prefix + ".hardfork",
			Message: fmt.Sprintf("unknown hardfork %q, expected one of: %s", n.Hardfork, strings.Join(params.Hardforks(), ", ")),
		}
	}

	if n.InitialBaseFeePerGas != 0 && !n.IsLondon() {
		return &ValidationError{
			Field:   prefix + ".initialBaseFeePerGas",
			Message: "requires london or a later hardfork",
		}
	}

	if n.BlockGasLimit < gethparams.TxGas {
		return &ValidationError{
			Field:   prefix + ".blockGasLimit",
			Message: fmt.Sprintf("must be at least %d", gethparams.TxGas),
		}
	}

	if n.Mining.Interval < 0 {
		return &ValidationError{Field: prefix + ".mining.interval", Message: "must not be negative"}
	}

	return validateAccounts(prefix+".accounts", n.Accounts)
}

func validateAccounts(prefix string, a params.AccountsConfig) error {
	if a.Count <= 0 {
		return &ValidationError{
			Field:   prefix + ".count",
			Message: fmt.Sprintf("must be a positive integer, got %d", a.Count),
		}
	}
	if a.InitialIndex < 0 {
		return &ValidationError{Field: prefix + ".initialIndex", Message: "must not be negative"}
	}
	if strings.TrimSpace(a.Mnemonic) == "" {
		return &ValidationError{Field: prefix + ".mnemonic", Message: "is required"}
	}
	if err := wallet.ValidateMnemonic(a.Mnemonic); err != nil {
		return &ValidationError{Field: prefix + ".mnemonic", Message: "is not a valid BIP-39 phrase"}
	}
	if _, err := wallet.ParsePath(a.Path); err != nil {
		return &ValidationError{Field: prefix + ".path", Message: err.Error()}
	}

	n := params.NetworkConfig{Accounts: a}
	if _, err := n.AccountsBalanceWei(); err != nil {
		return &ValidationError{Field: prefix + ".accountsBalance", Message: err.Error()}
	}
	return nil
}
