package wallet

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Siasom1/devnet/params"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well known accounts of the development mnemonic under m/44'/60'/0'/0.
var (
	wellKnown0    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	wellKnown0Key = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	wellKnown1    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	wellKnown2    = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func accountsConfig(path string, count int) params.AccountsConfig {
	cfg := params.DefaultNetworkConfig().Accounts
	cfg.Path = path
	cfg.Count = count
	return cfg
}

func TestDeriveAccounts_KnownVectors(t *testing.T) {
	accs, err := DeriveAccounts(accountsConfig("m/44'/60'/0'/0", 3))
	require.NoError(t, err)
	require.Len(t, accs, 3)

	assert.Equal(t, wellKnown0, accs[0].Address)
	assert.Equal(t, wellKnown0Key, accs[0].PrivateKeyHex())
	assert.Equal(t, wellKnown1, accs[1].Address)
	assert.Equal(t, wellKnown2, accs[2].Address)
	assert.Equal(t, "m/44'/60'/0'/0/2", accs[2].Path.String())
}

func TestDeriveAccounts_InitialIndex(t *testing.T) {
	cfg := accountsConfig("m/44'/60'/0'/0", 1)
	cfg.InitialIndex = 1

	accs, err := DeriveAccounts(cfg)
	require.NoError(t, err)
	require.Len(t, accs, 1)
	assert.Equal(t, 1, accs[0].Index)
	assert.Equal(t, wellKnown1, accs[0].Address)
}

func TestDeriveAccounts_DefaultNetwork(t *testing.T) {
	cfg := params.DefaultNetworkConfig().Accounts

	accs, err := DeriveAccounts(cfg)
	require.NoError(t, err)
	require.Len(t, accs, 10)

	seen := map[common.Address]bool{}
	for i, a := range accs {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, "m/44'/60'/0'/"+strconv.Itoa(i), a.Path.String())
		assert.False(t, seen[a.Address], "duplicate address %s", a.Address)
		seen[a.Address] = true
		assert.Equal(t, a.Address, gethcrypto.PubkeyToAddress(a.PrivateKey.PublicKey))
	}

	again, err := DeriveAccounts(cfg)
	require.NoError(t, err)
	for i := range accs {
		assert.Equal(t, accs[i].Address, again[i].Address)
	}
}

func TestDeriveAccounts_PassphraseChangesKeys(t *testing.T) {
	cfg := accountsConfig("m/44'/60'/0'/0", 1)
	cfg.Passphrase = "secret"

	accs, err := DeriveAccounts(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, wellKnown0, accs[0].Address)
}

func TestDeriveAccounts_Rejects(t *testing.T) {
	_, err := DeriveAccounts(accountsConfig("m/44'/60'/0'", 0))
	require.Error(t, err)

	_, err = DeriveAccounts(accountsConfig("m/44'/60'/0'", -3))
	require.Error(t, err)

	_, err = DeriveAccounts(accountsConfig("44'/60'/0'", 1))
	require.ErrorIs(t, err, ErrInvalidPath)

	cfg := accountsConfig("m/44'/60'/0'", 1)
	cfg.InitialIndex = -1
	_, err = DeriveAccounts(cfg)
	require.Error(t, err)
}

func TestDeriveKey_BIP32Vector(t *testing.T) {
	seed := common.FromHex("000102030405060708090a0b0c0d0e0f")

	master, err := DeriveKey(seed, accounts.DerivationPath{})
	require.NoError(t, err)
	assert.Equal(t, "0xe8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35", hexutil.Encode(gethcrypto.FromECDSA(master)))

	child, err := DeriveKey(seed, accounts.DerivationPath{0x80000000})
	require.NoError(t, err)
	assert.Equal(t, "0xedb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea", hexutil.Encode(gethcrypto.FromECDSA(child)))
}

func TestDeriveAccounts_IndexOutOfRange(t *testing.T) {
	cfg := accountsConfig("m/44'/60'/0'/0", 2)
	cfg.InitialIndex = 0x7fffffff
	_, err := DeriveAccounts(cfg)
	require.Error(t, err)
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("m/44'/60'/0'/")
	require.NoError(t, err)
	assert.Equal(t, accounts.DerivationPath{0x80000000 + 44, 0x80000000 + 60, 0x80000000}, p)

	for _, bad := range []string{"", "m", "m/", "m/x", "n/44'", "m/44'//0"} {
		_, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestValidateMnemonic(t *testing.T) {
	require.NoError(t, ValidateMnemonic(params.DefaultMnemonic))
	require.NoError(t, ValidateMnemonic("  test test test test test test\ttest test test test test junk "))
	assert.ErrorIs(t, ValidateMnemonic("test test test test test test test test test test junk"), ErrInvalidMnemonic)
	assert.ErrorIs(t, ValidateMnemonic("test test test test test test test test test test test qwzx"), ErrInvalidMnemonic)
	assert.ErrorIs(t, ValidateMnemonic("not a mnemonic"), ErrInvalidMnemonic)
}

func TestSeed_Deterministic(t *testing.T) {
	a := Seed(params.DefaultMnemonic, "")
	b := Seed(params.DefaultMnemonic, "")
	require.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Seed(params.DefaultMnemonic, "x"))
}

func TestKeyring_Sign(t *testing.T) {
	accs, err := DeriveAccounts(accountsConfig("m/44'/60'/0'/0", 2))
	require.NoError(t, err)
	kr := NewKeyring(append(accs, accs[0]))

	require.Equal(t, []common.Address{wellKnown0, wellKnown1}, kr.Addresses())
	assert.True(t, kr.Has(wellKnown1))
	assert.False(t, kr.Has(wellKnown2))

	signer := gethtypes.LatestSignerForChainID(big.NewInt(1))
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Gas:       21000,
		GasTipCap: big.NewInt(0),
		GasFeeCap: big.NewInt(0),
		To:        &wellKnown2,
		Value:     big.NewInt(1),
	})
	signed, err := kr.SignTx(wellKnown1, tx, signer)
	require.NoError(t, err)
	from, err := gethtypes.Sender(signer, signed)
	require.NoError(t, err)
	assert.Equal(t, wellKnown1, from)

	_, err = kr.SignTx(wellKnown2, tx, signer)
	require.ErrorIs(t, err, ErrUnknownAccount)

	msg := []byte("hello devnet")
	sig, err := kr.SignText(wellKnown0, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	sig[64] -= 27
	pub, err := gethcrypto.SigToPub(accounts.TextHash(msg), sig)
	require.NoError(t, err)
	assert.Equal(t, wellKnown0, gethcrypto.PubkeyToAddress(*pub))
}

func TestAccountsFile_RoundTrip(t *testing.T) {
	accs, err := DeriveAccounts(accountsConfig("m/44'/60'/0'/0", 2))
	require.NoError(t, err)
	dir := t.TempDir()

	path, err := WriteAccountsFile(dir, accs, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, AccountsFileName), path)

	entries, err := ReadAccountsFile(path, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, wellKnown0.Hex(), entries[0].Address)
	assert.Equal(t, wellKnown0Key, entries[0].PrivateKey)

	path, err = WriteAccountsFile(dir, accs, "pw")
	require.NoError(t, err)
	entries, err = ReadAccountsFile(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, wellKnown0Key, entries[0].PrivateKey)

	_, err = ReadAccountsFile(path, "wrong")
	require.ErrorIs(t, err, keystore.ErrDecrypt)
}

func TestAccountsFile_KeystoreEntries(t *testing.T) {
	accs, err := DeriveAccounts(accountsConfig("m/44'/60'/0'/0", 1))
	require.NoError(t, err)

	path, err := WriteAccountsFile(t.TempDir(), accs, "pw")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), wellKnown0Key[2:])

	var entries []AccountEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].PrivateKey)

	// each entry is a standalone keystore document
	key, err := keystore.DecryptKey(entries[0].Keystore, "pw")
	require.NoError(t, err)
	assert.Equal(t, wellKnown0, key.Address)
	assert.Equal(t, wellKnown0, gethcrypto.PubkeyToAddress(key.PrivateKey.PublicKey))
}
