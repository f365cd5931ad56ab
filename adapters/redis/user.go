package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	created := *u
	if created.ID == "" {
		created.ID = a.newID()
	}
	data, err := json.Marshal(&created)
	if err != nil {
		return nil, err
	}

	ok, err := a.client.SetNX(ctx, a.userKey(created.ID), data, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrUserExists
	}
	if created.Email != "" {
		claimed, err := a.client.SetNX(ctx, a.emailKey(created.Email), created.ID, 0).Result()
		if err != nil || !claimed {
			a.client.Del(ctx, a.userKey(created.ID))
			if err != nil {
				return nil, err
			}
			return nil, core.ErrUserExists
		}
	}
	return &created, nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	u := &core.User{}
	found, err := a.getJSON(ctx, a.userKey(id), u)
	if err != nil || !found {
		return nil, err
	}
	return u, nil
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	id, err := a.client.Get(ctx, a.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a.GetUser(ctx, id)
}

func (a *Adapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*core.User, error) {
	var acc accountRecord
	found, err := a.getJSON(ctx, a.accountKey(provider, providerAccountID), &acc)
	if err != nil || !found {
		return nil, err
	}
	return a.GetUser(ctx, acc.UserID)
}

// UpdateUser overwrites the non-empty fields of u.
func (a *Adapter) UpdateUser(ctx context.Context, u *core.User) (*core.User, error) {
	existing, err := a.GetUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, core.ErrUserNotFound
	}

	oldEmail := existing.Email
	if u.Name != "" {
		existing.Name = u.Name
	}
	if u.Email != "" {
		existing.Email = u.Email
	}
	if u.Image != "" {
		existing.Image = u.Image
	}
	if u.EmailVerified != nil {
		existing.EmailVerified = u.EmailVerified
	}

	if existing.Email != oldEmail {
		claimed, err := a.client.SetNX(ctx, a.emailKey(existing.Email), existing.ID, 0).Result()
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, core.ErrUserExists
		}
	}

	data, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, a.userKey(existing.ID), data, 0)
		if oldEmail != "" && oldEmail != existing.Email {
			pipe.Del(ctx, a.emailKey(oldEmail))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteUser removes the user with its accounts and sessions.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	existing, err := a.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return core.ErrUserNotFound
	}

	accountKeys, err := a.client.SMembers(ctx, a.userAccountsKey(id)).Result()
	if err != nil {
		return err
	}
	tokens, err := a.client.SMembers(ctx, a.userSessionsKey(id)).Result()
	if err != nil {
		return err
	}

	keys := []string{a.userKey(id), a.userAccountsKey(id), a.userSessionsKey(id)}
	if existing.Email != "" {
		keys = append(keys, a.emailKey(existing.Email))
	}
	keys = append(keys, accountKeys...)
	for _, token := range tokens {
		keys = append(keys, a.sessionKey(token))
	}
	return a.client.Del(ctx, keys...).Err()
}
