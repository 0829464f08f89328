// Package wallet resolves the trader's signing key and signs chain
// transactions with it.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

const (
	// kdfIterations is the OWASP minimum for PBKDF2-HMAC-SHA256.
	kdfIterations = 480_000
	saltLen       = 16
	aesKeyLen     = 32
	keyfileV1     = 1
)

// keyfile is the on-disk format of an encrypted private key. Binary fields
// use standard base64.
type keyfile struct {
	Version    int    `json:"version"`
	Address    string `json:"address,omitempty"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Source says where the trader's key comes from. A raw key wins over an
// encrypted file.
type Source struct {
	PrivateKey       string // hex, optional 0x prefix
	EncryptedKeyPath string
	Password         string
}

// Configured reports whether any key source is set.
func (s Source) Configured() bool {
	return s.PrivateKey != "" || s.EncryptedKeyPath != ""
}

// Load resolves the private key described by s. It returns
// domain.ErrNoWallet when no source is configured.
func Load(s Source) (*ecdsa.PrivateKey, error) {
	switch {
	case s.PrivateKey != "":
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(s.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("wallet: invalid private key: %w", err)
		}
		return key, nil
	case s.EncryptedKeyPath != "":
		data, err := os.ReadFile(s.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("wallet: read key file: %w", err)
		}
		return Decrypt(data, s.Password)
	default:
		return nil, domain.ErrNoWallet
	}
}

// Encrypt seals a hex private key under password. The result is the JSON
// key file accepted by Decrypt.
func Encrypt(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("wallet: password must not be empty")
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: generate salt: %w", err)
	}
	gcm, err := sealer(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: generate nonce: %w", err)
	}

	return json.MarshalIndent(keyfile{
		Version:    keyfileV1,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, ethcrypto.FromECDSA(key), nil)),
	}, "", "  ")
}

// Decrypt opens a key file produced by Encrypt.
func Decrypt(data []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("wallet: password must not be empty")
	}
	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("wallet: parse key file: %w", err)
	}
	if kf.Version != keyfileV1 {
		return nil, fmt.Errorf("wallet: unsupported key file version %d", kf.Version)
	}

	var salt, nonce, ciphertext []byte
	for _, f := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", kf.Salt, &salt},
		{"nonce", kf.Nonce, &nonce},
		{"ciphertext", kf.Ciphertext, &ciphertext},
	} {
		b, err := base64.StdEncoding.DecodeString(f.in)
		if err != nil {
			return nil, fmt.Errorf("wallet: decode %s: %w", f.name, err)
		}
		*f.out = b
	}

	gcm, err := sealer(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: decryption failed (wrong password?): %w", err)
	}
	key, err := ethcrypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("wallet: decrypted key is invalid: %w", err)
	}
	return key, nil
}

func sealer(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, kdfIterations, aesKeyLen, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("wallet: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: create GCM: %w", err)
	}
	return gcm, nil
}
