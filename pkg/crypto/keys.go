package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	encryptionInfo = "bantay Generated Encryption Key"
	signingInfo    = "bantay Generated Signing Key"
)

// DeriveKey expands secret into a length-byte key with HKDF-SHA256.
// The same (secret, info) pair always yields the same key.
func DeriveKey(secret, info string, length int) ([]byte, error) {
	key := make([]byte, length)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptionKey derives the 32-byte session token encryption key.
func EncryptionKey(secret string) ([]byte, error) {
	return DeriveKey(secret, encryptionInfo, 32)
}

// SigningKey derives the 32-byte session token signing key.
func SigningKey(secret string) ([]byte, error) {
	return DeriveKey(secret, signingInfo, 32)
}
