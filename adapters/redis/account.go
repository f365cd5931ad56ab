package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) LinkAccount(ctx context.Context, acc *core.Account) error {
	exists, err := a.client.Exists(ctx, a.userKey(acc.UserID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return core.ErrUserNotFound
	}

	rec := newAccountRecord(acc)
	if rec.ID == "" {
		rec.ID = a.newID()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := a.accountKey(acc.Provider, acc.ProviderAccountID)
	ok, err := a.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrAccountExists
	}
	return a.client.SAdd(ctx, a.userAccountsKey(acc.UserID), key).Err()
}

func (a *Adapter) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	key := a.accountKey(provider, providerAccountID)
	var rec accountRecord
	found, err := a.getJSON(ctx, key, &rec)
	if err != nil || !found {
		return err
	}
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, a.userAccountsKey(rec.UserID), key)
		return nil
	})
	return err
}
