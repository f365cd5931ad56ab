package core

import (
	"context"

	"go.uber.org/zap"
)

// errorAdapter decorates an Adapter so every failure leaves it as an
// *AdapterError naming the method, and is logged once under ADAPTER_ERROR.
type errorAdapter struct {
	next   Adapter
	logger *Logger
}

// Ensure errorAdapter implements Adapter
var _ Adapter = (*errorAdapter)(nil)

// WrapAdapter returns a with error reclassification applied. Wrapping an
// already wrapped adapter is a no-op.
func WrapAdapter(a Adapter, logger *Logger) Adapter {
	if a == nil {
		return nil
	}
	if _, ok := a.(*errorAdapter); ok {
		return a
	}
	return &errorAdapter{next: a, logger: logger}
}

func (w *errorAdapter) fail(method string, err error) error {
	w.logger.Error("ADAPTER_ERROR", err, zap.String("method", method))
	return &AdapterError{Method: method, Err: err}
}

func call[T any](w *errorAdapter, method string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err != nil {
		var zero T
		return zero, w.fail(method, err)
	}
	return v, nil
}

func exec(w *errorAdapter, method string, fn func() error) error {
	if err := fn(); err != nil {
		return w.fail(method, err)
	}
	return nil
}

func (w *errorAdapter) CreateUser(ctx context.Context, u *User) (*User, error) {
	return call(w, "CreateUser", func() (*User, error) { return w.next.CreateUser(ctx, u) })
}

func (w *errorAdapter) GetUser(ctx context.Context, id string) (*User, error) {
	return call(w, "GetUser", func() (*User, error) { return w.next.GetUser(ctx, id) })
}

func (w *errorAdapter) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return call(w, "GetUserByEmail", func() (*User, error) { return w.next.GetUserByEmail(ctx, email) })
}

func (w *errorAdapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error) {
	return call(w, "GetUserByAccount", func() (*User, error) {
		return w.next.GetUserByAccount(ctx, provider, providerAccountID)
	})
}

func (w *errorAdapter) UpdateUser(ctx context.Context, u *User) (*User, error) {
	return call(w, "UpdateUser", func() (*User, error) { return w.next.UpdateUser(ctx, u) })
}

func (w *errorAdapter) DeleteUser(ctx context.Context, id string) error {
	return exec(w, "DeleteUser", func() error { return w.next.DeleteUser(ctx, id) })
}

func (w *errorAdapter) LinkAccount(ctx context.Context, a *Account) error {
	return exec(w, "LinkAccount", func() error { return w.next.LinkAccount(ctx, a) })
}

func (w *errorAdapter) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	return exec(w, "UnlinkAccount", func() error { return w.next.UnlinkAccount(ctx, provider, providerAccountID) })
}

func (w *errorAdapter) CreateSession(ctx context.Context, s *Session) (*Session, error) {
	return call(w, "CreateSession", func() (*Session, error) { return w.next.CreateSession(ctx, s) })
}

func (w *errorAdapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*Session, *User, error) {
	type pair struct {
		s *Session
		u *User
	}
	p, err := call(w, "GetSessionAndUser", func() (pair, error) {
		s, u, err := w.next.GetSessionAndUser(ctx, sessionToken)
		return pair{s, u}, err
	})
	return p.s, p.u, err
}

func (w *errorAdapter) UpdateSession(ctx context.Context, s *Session) (*Session, error) {
	return call(w, "UpdateSession", func() (*Session, error) { return w.next.UpdateSession(ctx, s) })
}

func (w *errorAdapter) DeleteSession(ctx context.Context, sessionToken string) error {
	return exec(w, "DeleteSession", func() error { return w.next.DeleteSession(ctx, sessionToken) })
}

func (w *errorAdapter) CreateVerificationToken(ctx context.Context, t *VerificationToken) error {
	return exec(w, "CreateVerificationToken", func() error { return w.next.CreateVerificationToken(ctx, t) })
}

func (w *errorAdapter) UseVerificationToken(ctx context.Context, identifier, token string) (*VerificationToken, error) {
	return call(w, "UseVerificationToken", func() (*VerificationToken, error) {
		return w.next.UseVerificationToken(ctx, identifier, token)
	})
}
