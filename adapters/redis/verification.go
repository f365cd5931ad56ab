package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) CreateVerificationToken(ctx context.Context, t *core.VerificationToken) error {
	ttl := ttlUntil(t.Expires)
	if ttl == 0 {
		return nil
	}
	data, err := json.Marshal(verificationRecord{Identifier: t.Identifier, Token: t.Token, Expires: t.Expires})
	if err != nil {
		return err
	}
	return a.client.Set(ctx, a.verificationKey(t.Identifier, t.Token), data, ttl).Err()
}

// UseVerificationToken consumes the token with GETDEL, so only one caller
// ever receives it.
func (a *Adapter) UseVerificationToken(ctx context.Context, identifier, token string) (*core.VerificationToken, error) {
	data, err := a.client.GetDel(ctx, a.verificationKey(identifier, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec verificationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &core.VerificationToken{Identifier: rec.Identifier, Token: rec.Token, Expires: rec.Expires}, nil
}
