package kvstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Sealer encrypts values before they reach disk. The storage key is bound to
// the ciphertext so a value copied under another key fails to open.
type Sealer interface {
	Seal(key string, plaintext []byte) (string, error)
	Open(key string, sealed string) ([]byte, error)
}

const (
	// Versioned prefix to allow future key/algorithm rotations without data migrations.
	sealedPrefixV1 = "v1:"
	plainPrefix    = "plain:"

	hkdfInfo = "nexoai-pos-client/kvstore/v1"
)

// AESGCMSealer implements Sealer using AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer derives a 32-byte key from secret with HKDF-SHA256.
func NewAESGCMSealer(secret string) (*AESGCMSealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("encryption secret cannot be empty")
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMSealer{aead: aead}, nil
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (s *AESGCMSealer) Seal(key string, plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// Store nonce||ciphertext
	buf := s.aead.Seal(nonce, nonce, plaintext, []byte(key))
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value produced by Seal. Values written without a sealer are
// accepted so a store can be upgraded to encryption in place.
func (s *AESGCMSealer) Open(key string, sealed string) ([]byte, error) {
	if strings.HasPrefix(sealed, plainPrefix) {
		return PlainSealer{}.Open(key, sealed)
	}
	if !strings.HasPrefix(sealed, sealedPrefixV1) {
		return nil, errors.New("unknown sealed value version")
	}

	data, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefixV1):])
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("sealed value too short")
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	pt, err := s.aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return pt, nil
}

// PlainSealer stores values unencrypted with a prefix marker.
type PlainSealer struct{}

func (PlainSealer) Seal(_ string, plaintext []byte) (string, error) {
	return plainPrefix + string(plaintext), nil
}

func (PlainSealer) Open(_ string, sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, plainPrefix) {
		return nil, errors.New("value is sealed; configure the encryption key")
	}
	return []byte(sealed[len(plainPrefix):]), nil
}
