package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// AccountsFileName is the file the node writes derived accounts to.
const AccountsFileName = "accounts.json"

// AccountEntry is one account in the accounts file. Encrypted entries carry a
// Web3 Secret Storage document in Keystore instead of a plain PrivateKey.
type AccountEntry struct {
	Index      int             `json:"index"`
	Path       string          `json:"path"`
	Address    string          `json:"address"`
	PrivateKey string          `json:"privateKey,omitempty"`
	Keystore   json.RawMessage `json:"keystore,omitempty"`
}

var errNoKey = errors.New("entry has neither privateKey nor keystore")

// WriteAccountsFile writes accs to dir/accounts.json. When pass is set, each
// key is stored as keystore JSON (scrypt, light parameters) that wallets and
// geth can import.
func WriteAccountsFile(dir string, accs []Account, pass string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	entries := make([]AccountEntry, 0, len(accs))
	for _, a := range accs {
		e := AccountEntry{
			Index:   a.Index,
			Path:    a.Path.String(),
			Address: a.Address.Hex(),
		}
		if pass == "" {
			e.PrivateKey = a.PrivateKeyHex()
		} else {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			key := &keystore.Key{Id: id, Address: a.Address, PrivateKey: a.PrivateKey}
			enc, err := keystore.EncryptKey(key, pass, keystore.LightScryptN, keystore.LightScryptP)
			if err != nil {
				return "", fmt.Errorf("encrypt key %d: %w", a.Index, err)
			}
			e.Keystore = enc
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, AccountsFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// ReadAccountsFile loads an accounts file. Keystore entries are decrypted with
// pass and returned with PrivateKey filled in.
func ReadAccountsFile(path string, pass string) ([]AccountEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []AccountEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range entries {
		e := &entries[i]
		if len(e.Keystore) == 0 {
			if e.PrivateKey == "" {
				return nil, fmt.Errorf("account %d: %w", e.Index, errNoKey)
			}
			continue
		}
		key, err := keystore.DecryptKey(e.Keystore, pass)
		if err != nil {
			return nil, fmt.Errorf("decrypt key %d: %w", e.Index, err)
		}
		e.PrivateKey = hexutil.Encode(gethcrypto.FromECDSA(key.PrivateKey))
	}
	return entries, nil
}
