// Package sealer encrypts credential envelopes with a key derived from the master password.
// Sealed payloads are AES-256-GCM ciphertexts; the IV travels next to them, hex-encoded.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ppp/pppctl/internal/constants"
)

const (
	// IVSize is the GCM nonce size in bytes.
	IVSize = 12
	// KeySize selects AES-256.
	KeySize = 32
	// Iterations is the PBKDF2 work factor.
	Iterations = 100_000
)

// ErrEmptyPassword is returned when no master password is available.
var ErrEmptyPassword = errors.New("master password is empty")

// Sealed is one encrypted payload.
type Sealed struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// Sealer encrypts and decrypts payloads with one derived key.
type Sealer struct {
	aead cipher.AEAD
}

// New derives the sealing key from password. The protocol tag is the salt,
// so every consumer holding the master password can derive the same key.
func New(password string) (*Sealer, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	key := pbkdf2.Key([]byte(password), []byte(constants.Tag), Iterations, KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// GenerateIV returns a fresh random IV.
func GenerateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

// Encrypt seals plaintext under iv.
func (s *Sealer) Encrypt(iv, plaintext []byte) (Sealed, error) {
	if len(iv) != IVSize {
		return Sealed{}, fmt.Errorf("IV must be %d bytes, got %d", IVSize, len(iv))
	}
	ciphertext := s.aead.Seal(nil, iv, plaintext, nil)
	return Sealed{
		IV:   hex.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Seal encrypts plaintext under a freshly generated IV.
func (s *Sealer) Seal(plaintext []byte) (Sealed, error) {
	iv, err := GenerateIV()
	if err != nil {
		return Sealed{}, err
	}
	return s.Encrypt(iv, plaintext)
}

// Decrypt opens a sealed payload.
func (s *Sealer) Decrypt(sealed Sealed) ([]byte, error) {
	iv, err := hex.DecodeString(sealed.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid IV: %w", err)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("IV must be %d bytes, got %d", IVSize, len(iv))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	plaintext, err := s.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	return plaintext, nil
}
