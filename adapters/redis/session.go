package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

// saveSession writes rec with a TTL matching its expiry. An already expired
// session is deleted instead.
func (a *Adapter) saveSession(ctx context.Context, rec sessionRecord) error {
	ttl := ttlUntil(rec.Expires)
	if ttl == 0 {
		return a.DeleteSession(ctx, rec.SessionToken)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, a.sessionKey(rec.SessionToken), data, ttl)
		pipe.SAdd(ctx, a.userSessionsKey(rec.UserID), rec.SessionToken)
		return nil
	})
	return err
}

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) (*core.Session, error) {
	rec := sessionRecord{ID: s.ID, SessionToken: s.SessionToken, UserID: s.UserID, Expires: s.Expires}
	if rec.ID == "" {
		rec.ID = a.newID()
	}
	if err := a.saveSession(ctx, rec); err != nil {
		return nil, err
	}
	return rec.session(), nil
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.Session, *core.User, error) {
	var rec sessionRecord
	found, err := a.getJSON(ctx, a.sessionKey(sessionToken), &rec)
	if err != nil || !found {
		return nil, nil, err
	}
	u, err := a.GetUser(ctx, rec.UserID)
	if err != nil || u == nil {
		return nil, nil, err
	}
	return rec.session(), u, nil
}

// UpdateSession moves the expiry of the session named by s.SessionToken and
// resets its TTL. It returns nil when no such session exists.
func (a *Adapter) UpdateSession(ctx context.Context, s *core.Session) (*core.Session, error) {
	var rec sessionRecord
	found, err := a.getJSON(ctx, a.sessionKey(s.SessionToken), &rec)
	if err != nil || !found {
		return nil, err
	}
	if !s.Expires.IsZero() {
		rec.Expires = s.Expires
	}
	if err := a.saveSession(ctx, rec); err != nil {
		return nil, err
	}
	return rec.session(), nil
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	var rec sessionRecord
	found, err := a.getJSON(ctx, a.sessionKey(sessionToken), &rec)
	if err != nil || !found {
		return err
	}
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, a.sessionKey(sessionToken))
		pipe.SRem(ctx, a.userSessionsKey(rec.UserID), sessionToken)
		return nil
	})
	return err
}
