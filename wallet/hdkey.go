package wallet

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidPath     = errors.New("invalid derivation path")
)

// NormalizeMnemonic collapses whitespace between words.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

// ValidateMnemonic checks word list membership and the BIP-39 checksum.
func ValidateMnemonic(mnemonic string) error {
	if !bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic)) {
		return ErrInvalidMnemonic
	}
	return nil
}

// Seed turns a mnemonic and optional passphrase into a 64 byte BIP-39 seed.
func Seed(mnemonic, passphrase string) []byte {
	return pbkdf2.Key(
		[]byte(NormalizeMnemonic(mnemonic)),
		[]byte("mnemonic"+passphrase),
		2048,
		64,
		sha512.New,
	)
}

// ParsePath parses an absolute HD path such as m/44'/60'/0'. A trailing slash
// is accepted.
func ParsePath(path string) (accounts.DerivationPath, error) {
	p := strings.TrimSpace(path)
	if p != "m/" {
		p = strings.TrimSuffix(p, "/")
	}
	if !strings.HasPrefix(p, "m/") {
		return nil, fmt.Errorf("%w: %q must start with m/", ErrInvalidPath, path)
	}
	dp, err := accounts.ParseDerivationPath(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return dp, nil
}

// DeriveKey walks path from the BIP-32 master key of seed.
func DeriveKey(seed []byte, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, index := range path {
		if key, err = key.NewChildKey(index); err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
	}
	return gethcrypto.ToECDSA(key.Key)
}
