// Package jwt encodes session payloads as HS256-signed JWTs sealed with
// XChaCha20-Poly1305. Both keys are derived from the secret with HKDF.
package jwt

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

const DefaultLeeway = 15 * time.Second

var (
	ErrMalformed     = errors.New("malformed session token")
	ErrDecrypt       = errors.New("session token decryption failed")
	ErrExpired       = errors.New("session token expired")
	ErrInvalid       = errors.New("invalid session token")
	ErrMissingMaxAge = errors.New("maxAge must be positive")
)

// Codec implements core.JWTConfig's Encode and Decode.
type Codec struct {
	now    func() time.Time
	leeway time.Duration
}

type Option func(*Codec)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithLeeway(d time.Duration) Option {
	return func(c *Codec) { c.leeway = d }
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now, leeway: DefaultLeeway}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = NewCodec()

func Encode(ctx context.Context, p core.JWTEncodeParams) (string, error) {
	return defaultCodec.Encode(ctx, p)
}

func Decode(ctx context.Context, p core.JWTDecodeParams) (core.JWT, error) {
	return defaultCodec.Decode(ctx, p)
}

// Encode sets iat, exp and a fresh jti on a copy of p.Token, signs it and
// seals the result.
func (c *Codec) Encode(_ context.Context, p core.JWTEncodeParams) (string, error) {
	if p.MaxAge <= 0 {
		return "", ErrMissingMaxAge
	}
	signKey, err := crypto.SigningKey(p.Secret)
	if err != nil {
		return "", err
	}
	encKey, err := crypto.EncryptionKey(p.Secret)
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := gojwt.MapClaims{}
	for k, v := range p.Token {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(p.MaxAge).Unix()
	claims["jti"] = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(signed)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(signed), nil)

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens and verifies a token produced by Encode. Any failure means
// there is no usable session.
func (c *Codec) Decode(_ context.Context, p core.JWTDecodeParams) (core.JWT, error) {
	if p.Token == "" {
		return nil, ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(p.Token)
	if err != nil {
		return nil, ErrMalformed
	}

	encKey, err := crypto.EncryptionKey(p.Secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	signed, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecrypt
	}

	signKey, err := crypto.SigningKey(p.Secret)
	if err != nil {
		return nil, err
	}
	claims := gojwt.MapClaims{}
	_, err = gojwt.ParseWithClaims(string(signed), claims,
		func(*gojwt.Token) (any, error) { return signKey, nil },
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithLeeway(c.leeway),
		gojwt.WithTimeFunc(c.now),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return core.JWT(claims), nil
}
