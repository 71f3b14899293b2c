// Package wallet derives the deterministic development accounts from the
// configured mnemonic and signs on their behalf.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/Siasom1/devnet/params"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
)

var ErrUnknownAccount = errors.New("unknown account")

// Account is one derived development account.
type Account struct {
	Index      int
	Path       accounts.DerivationPath
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// PrivateKeyHex returns the 0x-prefixed private key.
func (a Account) PrivateKeyHex() string {
	return hexutil.Encode(gethcrypto.FromECDSA(a.PrivateKey))
}

// DeriveAccounts derives cfg.Count accounts. Account i lives at
// <path>/<initialIndex+i>.
func DeriveAccounts(cfg params.AccountsConfig) ([]Account, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("accounts count must be positive, got %d", cfg.Count)
	}
	if cfg.InitialIndex < 0 {
		return nil, fmt.Errorf("accounts initialIndex must not be negative, got %d", cfg.InitialIndex)
	}

	base, err := ParsePath(cfg.Path)
	if err != nil {
		return nil, err
	}
	seed := Seed(cfg.Mnemonic, cfg.Passphrase)

	out := make([]Account, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		index := cfg.InitialIndex + i
		if uint64(index) >= uint64(bip32.FirstHardenedChild) {
			return nil, fmt.Errorf("account index %d out of range", index)
		}

		path := make(accounts.DerivationPath, len(base), len(base)+1)
		copy(path, base)
		path = append(path, uint32(index))

		key, err := DeriveKey(seed, path)
		if err != nil {
			return nil, err
		}
		out = append(out, Account{
			Index:      index,
			Path:       path,
			Address:    gethcrypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		})
	}
	return out, nil
}

// ------------------------------------------------------------
// Keyring
// ------------------------------------------------------------

// Keyring holds the unlocked development accounts. It is read-only after
// construction and safe for concurrent use.
type Keyring struct {
	order []common.Address
	keys  map[common.Address]*ecdsa.PrivateKey
}

func NewKeyring(accs []Account) *Keyring {
	kr := &Keyring{
		order: make([]common.Address, 0, len(accs)),
		keys:  make(map[common.Address]*ecdsa.PrivateKey, len(accs)),
	}
	for _, a := range accs {
		if _, dup := kr.keys[a.Address]; dup {
			continue
		}
		kr.order = append(kr.order, a.Address)
		kr.keys[a.Address] = a.PrivateKey
	}
	return kr
}

// Addresses returns the accounts in derivation order.
func (k *Keyring) Addresses() []common.Address {
	out := make([]common.Address, len(k.order))
	copy(out, k.order)
	return out
}

func (k *Keyring) Has(addr common.Address) bool {
	_, ok := k.keys[addr]
	return ok
}

// SignTx signs tx as addr.
func (k *Keyring) SignTx(addr common.Address, tx *gethtypes.Transaction, signer gethtypes.Signer) (*gethtypes.Transaction, error) {
	key, ok := k.keys[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	return gethtypes.SignTx(tx, signer, key)
}

// SignText produces an eth_sign style signature over the prefixed message hash.
func (k *Keyring) SignText(addr common.Address, msg []byte) ([]byte, error) {
	key, ok := k.keys[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	sig, err := gethcrypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return nil, err
	}
	sig[gethcrypto.RecoveryIDOffset] += 27
	return sig, nil
}
