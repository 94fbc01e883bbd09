package deal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 100000

// SecretCipher encrypts/decrypts reservation codes with AES-GCM, grounded on
// core/compliance.go's EncryptAES/DecryptAES (nonce prefixed to ciphertext).
// The key is taken as an opaque []byte at construction so a future key
// rotation scheme can wrap construction without touching lock/check logic.
type SecretCipher struct {
	key []byte
}

// NewSecretCipher accepts a raw 16-, 24- or 32-byte AES key directly.
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	switch len(key) {
	case 16, 24, 32:
		return &SecretCipher{key: key}, nil
	default:
		return nil, fmt.Errorf("deal: secret cipher key must be 16, 24 or 32 bytes, got %d", len(key))
	}
}

// NewSecretCipherFromPassphrase derives a 32-byte AES-256 key from an
// operator-supplied passphrase and salt via PBKDF2, grounded on
// cmd/cli/wallet.go's PBKDF2-AES-256-GCM wallet-file scheme.
func NewSecretCipherFromPassphrase(passphrase string, salt []byte) *SecretCipher {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, 32, sha256.New)
	return &SecretCipher{key: key}
}

func (c *SecretCipher) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *SecretCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("deal: ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	data := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, data, nil)
}
