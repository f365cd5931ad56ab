package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var (
	ErrTooManyArgs = errors.New("too many arguments. expected only 1")
)

const (
	DefaultTokenLength = 32 // 256 bits
)

// TokenPair is a random token and its secret-bound hash.
type TokenPair struct {
	Token string // value returned to client
	Hash  string // value in storage
}

func randomBytes(byteLength int) ([]byte, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenLength
	}

	bytes := make([]byte, byteLength)

	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}

	return bytes, nil
}

func lengthArg(byteLength []int) (int, error) {
	if len(byteLength) > 1 {
		return 0, ErrTooManyArgs
	}
	if len(byteLength) > 0 && byteLength[0] > 0 {
		return byteLength[0], nil
	}
	return DefaultTokenLength, nil
}

// RandomHex returns byteLength random bytes, hex encoded.
func RandomHex(byteLength ...int) (string, error) {
	length, err := lengthArg(byteLength)
	if err != nil {
		return "", err
	}
	b, err := randomBytes(length)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomToken returns byteLength random bytes, base64url encoded without padding.
func RandomToken(byteLength ...int) (string, error) {
	length, err := lengthArg(byteLength)
	if err != nil {
		return "", err
	}
	b, err := randomBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns hex(sha256(token + secret)).
func HashToken(token, secret string) string {
	hash := sha256.Sum256([]byte(token + secret))
	return hex.EncodeToString(hash[:])
}

// SHA256Hex returns hex(sha256(value)).
func SHA256Hex(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:])
}

// GenerateHashedToken mints a hex token and its HashToken under secret.
func GenerateHashedToken(secret string, byteLength ...int) (*TokenPair, error) {
	token, err := RandomHex(byteLength...)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Token: token,
		Hash:  HashToken(token, secret),
	}, nil
}

// VerifyToken reports whether token hashes to storedHash under secret.
func VerifyToken(token, secret, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, errors.New("token and hash cannot be empty")
	}

	// Constant-time comparison to prevent timing attacks
	return Equal(HashToken(token, secret), storedHash), nil
}

// Equal compares two strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
