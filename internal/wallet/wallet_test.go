package wallet

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// Well-known development key (hardhat account #0).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestLoad_RawKey(t *testing.T) {
	key, err := Load(Source{PrivateKey: devKey})
	require.NoError(t, err)
	assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(key.PublicKey))
}

func TestLoad_NoSource(t *testing.T) {
	_, err := Load(Source{})
	require.ErrorIs(t, err, domain.ErrNoWallet)
	assert.False(t, Source{}.Configured())
}

func TestEncryptDecrypt(t *testing.T) {
	blob, err := Encrypt(devKey, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, string(blob), devAddress.Hex())

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := Load(Source{EncryptedKeyPath: path, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(key.PublicKey))

	_, err = Decrypt(blob, "wrong")
	require.Error(t, err)
	_, err = Decrypt(blob, "")
	require.Error(t, err)
}

func TestSigner_SignTx(t *testing.T) {
	key, err := Load(Source{PrivateKey: devKey})
	require.NoError(t, err)

	chainID := big.NewInt(61)
	s, err := NewSigner(key, chainID)
	require.NoError(t, err)
	assert.Equal(t, devAddress, s.Address())

	to := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    3,
		GasPrice: big.NewInt(1_000_000),
		Gas:      domain.DefaultGasLimit,
		To:       &to,
		Value:    big.NewInt(0),
	})
	signed, err := s.SignTx(tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, devAddress, sender)
	assert.Zero(t, chainID.Cmp(signed.ChainId()))

	_, err = NewSigner(key, big.NewInt(0))
	require.Error(t, err)
}
