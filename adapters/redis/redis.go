// Package redis stores users, accounts, sessions and verification tokens in
// Redis. Sessions and verification tokens carry a TTL matching their expiry,
// so Redis drops them on its own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

const defaultPrefix = "bantay:"

type Adapter struct {
	client redis.UniversalClient
	prefix string
	newID  func() string
}

// Ensure Adapter implements core.Adapter
var _ core.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithPrefix sets the key prefix. Default: "bantay:".
func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		a.prefix = prefix
	}
}

func New(client redis.UniversalClient, opts ...Option) *Adapter {
	a := &Adapter{
		client: client,
		prefix: defaultPrefix,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ============================================
// KEYS
// ============================================

func (a *Adapter) userKey(id string) string         { return a.prefix + "user:" + id }
func (a *Adapter) emailKey(email string) string     { return a.prefix + "user:email:" + email }
func (a *Adapter) userAccountsKey(id string) string { return a.prefix + "user:accounts:" + id }
func (a *Adapter) userSessionsKey(id string) string { return a.prefix + "user:sessions:" + id }
func (a *Adapter) sessionKey(token string) string   { return a.prefix + "session:" + token }

func (a *Adapter) accountKey(provider, providerAccountID string) string {
	return a.prefix + "account:" + provider + ":" + providerAccountID
}

func (a *Adapter) verificationKey(identifier, token string) string {
	return a.prefix + "verification:" + identifier + ":" + token
}

// ============================================
// JSON HELPERS
// ============================================

// getJSON loads key into v. It reports false when the key does not exist.
func (a *Adapter) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// ttlUntil is the time left before t, or zero when t has passed.
func ttlUntil(t time.Time) time.Duration {
	ttl := time.Until(t)
	if ttl <= 0 {
		return 0
	}
	return ttl
}
