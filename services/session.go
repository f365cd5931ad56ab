package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/cookie"
)

// emptySession is the body of a session response without a session. It is
// never a 401 so clients can poll it.
func emptySession(cookies ...core.Cookie) *core.Response {
	return &core.Response{Status: http.StatusOK, Body: map[string]any{}, Cookies: cookies}
}

func (r *Router) session(ctx context.Context, opts *core.Options, req *core.Request) *core.Response {
	data, cookies := r.readSession(ctx, opts, req)
	if data == nil {
		return emptySession(cookies...)
	}
	return &core.Response{Status: http.StatusOK, Body: data, Cookies: cookies}
}

// readSession loads the session and rolls its expiry forward. It returns
// the cookies that carry the refreshed session, or clear a dead one.
func (r *Router) readSession(ctx context.Context, opts *core.Options, req *core.Request) (*core.SessionData, []core.Cookie) {
	store := cookie.NewStore(opts.Cookies.SessionToken, req)
	raw := store.Value()
	if raw == "" {
		return nil, nil
	}

	// Bearer clients keep their token; there is no cookie to refresh.
	write := func(cookies []core.Cookie) []core.Cookie {
		if store.FromBearer() {
			return nil
		}
		return cookies
	}

	if opts.UseJWT() {
		data, token, err := jwtSession(ctx, opts, raw)
		if err != nil {
			opts.Logger.Error("JWT_SESSION_ERROR", err)
			return nil, write(store.Clean())
		}
		expires := data.Expires
		encoded, err := opts.EncodeJWT(ctx, token)
		if err != nil {
			opts.Logger.Error("JWT_SESSION_ERROR", err)
			return nil, write(store.Clean())
		}
		core.Emit(ctx, opts, "session", opts.Events.Session, core.SessionEvent{Session: data, Token: token})
		return data, write(store.Chunk(encoded, expires))
	}

	data, expires, err := databaseSession(ctx, opts, raw)
	switch {
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrSessionExpired):
		opts.Logger.Debug("SESSION_INVALID", zap.Error(err))
		return nil, write(store.Clean())
	case err != nil:
		opts.Logger.Error("SESSION_ERROR", err)
		return nil, nil
	}
	core.Emit(ctx, opts, "session", opts.Events.Session, core.SessionEvent{Session: data})
	return data, write(store.Chunk(raw, expires))
}

// jwtSession decodes raw and runs the JWT and Session callbacks.
func jwtSession(ctx context.Context, opts *core.Options, raw string) (*core.SessionData, core.JWT, error) {
	decoded, err := opts.DecodeJWT(ctx, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	token, err := runJWTCallback(ctx, opts, core.JWTParams{Token: decoded})
	if err != nil {
		return nil, nil, err
	}

	data := &core.SessionData{
		User: &core.SessionUser{
			Name:  token.Name(),
			Email: token.Email(),
			Image: token.Picture(),
		},
		Expires: opts.NowTime().Add(opts.Session.MaxAge),
	}
	data, err = runSessionCallback(ctx, opts, core.SessionParams{Session: data, Token: token})
	if err != nil {
		return nil, nil, err
	}
	return data, token, nil
}

// databaseSession looks up the session row. Expired rows are deleted on
// sight and reported as ErrSessionExpired; the expiry is only written back
// once UpdateAge has passed since it was last extended.
func databaseSession(ctx context.Context, opts *core.Options, raw string) (*core.SessionData, time.Time, error) {
	s, u, err := opts.Adapter.GetSessionAndUser(ctx, raw)
	if err != nil {
		return nil, time.Time{}, err
	}
	if s == nil || u == nil {
		return nil, time.Time{}, core.ErrSessionNotFound
	}

	now := opts.NowTime()
	if !s.Expires.After(now) {
		if err := opts.Adapter.DeleteSession(ctx, raw); err != nil {
			return nil, time.Time{}, err
		}
		return nil, time.Time{}, core.ErrSessionExpired
	}

	expires := s.Expires
	dueAt := s.Expires.Add(-opts.Session.MaxAge).Add(opts.Session.UpdateAge)
	if !now.Before(dueAt) {
		expires = now.Add(opts.Session.MaxAge)
		if _, err := opts.Adapter.UpdateSession(ctx, &core.Session{SessionToken: raw, Expires: expires}); err != nil {
			return nil, time.Time{}, err
		}
	}

	data := &core.SessionData{
		User:    &core.SessionUser{Name: u.Name, Email: u.Email, Image: u.Image},
		Expires: expires,
	}
	data, err = runSessionCallback(ctx, opts, core.SessionParams{Session: data, User: u})
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, expires, nil
}

func runJWTCallback(ctx context.Context, opts *core.Options, p core.JWTParams) (core.JWT, error) {
	if opts.Callbacks.JWT == nil {
		return p.Token, nil
	}
	p.Token = p.Token.Clone()
	token, err := opts.Callbacks.JWT(ctx, p)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return core.JWT{}, nil
	}
	return token, nil
}

func runSessionCallback(ctx context.Context, opts *core.Options, p core.SessionParams) (*core.SessionData, error) {
	if opts.Callbacks.Session == nil {
		return p.Session, nil
	}
	data, err := opts.Callbacks.Session(ctx, p)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return p.Session, nil
	}
	return data, nil
}

// signOut ends the session and clears its cookies. A missing or broken
// session still signs out.
func (r *Router) signOut(ctx context.Context, opts *core.Options, req *core.Request) *core.Response {
	store := cookie.NewStore(opts.Cookies.SessionToken, req)
	raw := store.Value()
	res := &core.Response{Redirect: opts.CallbackURL}
	if raw == "" {
		return res
	}

	if opts.UseJWT() {
		token, err := opts.DecodeJWT(ctx, raw)
		if err != nil {
			opts.Logger.Error("SIGNOUT_ERROR", err)
		} else {
			core.Emit(ctx, opts, "signOut", opts.Events.SignOut, core.SignOutEvent{Token: token})
		}
	} else {
		s, _, err := opts.Adapter.GetSessionAndUser(ctx, raw)
		if err == nil {
			err = opts.Adapter.DeleteSession(ctx, raw)
		}
		if err != nil {
			opts.Logger.Error("SIGNOUT_ERROR", err)
		} else if s != nil {
			core.Emit(ctx, opts, "signOut", opts.Events.SignOut, core.SignOutEvent{Session: s})
		}
	}

	if !store.FromBearer() {
		res.Cookies = store.Clean()
	}
	return res
}

// GetServerSession reads the session for server-side code. It returns nil
// when the request is not signed in; the cookies refresh or clear the
// session and should be written back when possible.
func (r *Router) GetServerSession(ctx context.Context, req *core.Request) (*core.SessionData, []core.Cookie, error) {
	opts, _, err := r.init(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	data, cookies := r.readSession(ctx, opts, req)
	if data == nil {
		opts.Logger.Debug("NO_SESSION", zap.String("action", string(req.Action)))
	}
	return data, cookies, nil
}
