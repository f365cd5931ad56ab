// Package adaptertest is a conformance suite every storage adapter runs
// from its own tests.
package adaptertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lborres/bantay/core"
)

// Factory returns a fresh, empty adapter for one subtest.
type Factory func(t *testing.T) core.Adapter

// Run exercises the whole core.Adapter contract against adapters made by
// newAdapter.
func Run(t *testing.T, newAdapter Factory) {
	t.Helper()
	t.Run("NotFoundIsNil", func(t *testing.T) { notFoundIsNil(t, newAdapter(t)) })
	t.Run("UserLifecycle", func(t *testing.T) { userLifecycle(t, newAdapter(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { duplicateEmail(t, newAdapter(t)) })
	t.Run("Accounts", func(t *testing.T) { accounts(t, newAdapter(t)) })
	t.Run("Sessions", func(t *testing.T) { sessions(t, newAdapter(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { deleteUserCascades(t, newAdapter(t)) })
	t.Run("VerificationTokenSingleUse", func(t *testing.T) { verificationTokenSingleUse(t, newAdapter(t)) })
	t.Run("DeleteExpiredSessions", func(t *testing.T) {
		a := newAdapter(t)
		sweeper, ok := a.(core.SessionSweeper)
		if !ok {
			t.Skip("adapter does not sweep sessions")
		}
		deleteExpiredSessions(t, a, sweeper)
	})
}

// now is truncated so every backend round-trips it exactly.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func mustCreateUser(t *testing.T, a core.Adapter, u *core.User) *core.User {
	t.Helper()
	created, err := a.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if created == nil || created.ID == "" {
		t.Fatalf("CreateUser() = %+v, want a user with an id", created)
	}
	return created
}

func notFoundIsNil(t *testing.T, a core.Adapter) {
	ctx := context.Background()

	u1, err1 := a.GetUser(ctx, "missing")
	u2, err2 := a.GetUserByEmail(ctx, "nobody@example.com")
	u3, err3 := a.GetUserByAccount(ctx, "github", "1")
	s, u4, err4 := a.GetSessionAndUser(ctx, "missing")
	vt, err5 := a.UseVerificationToken(ctx, "a@example.com", "h")
	us, err6 := a.UpdateSession(ctx, &core.Session{SessionToken: "missing", Expires: now()})

	for i, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			t.Errorf("lookup %d error = %v", i, err)
		}
	}
	if u1 != nil || u2 != nil || u3 != nil || s != nil || u4 != nil || vt != nil || us != nil {
		t.Error("lookups returned non-nil values")
	}
}

func userLifecycle(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	verified := now()
	created := mustCreateUser(t, a, &core.User{Name: "Alice", Email: "alice@example.com", Image: "https://img/a.png"})

	byID, err := a.GetUser(ctx, created.ID)
	if err != nil || byID == nil || byID.Email != "alice@example.com" || byID.Name != "Alice" {
		t.Fatalf("GetUser() = %+v, %v", byID, err)
	}
	if byID.EmailVerified != nil {
		t.Errorf("EmailVerified = %v, want nil", byID.EmailVerified)
	}
	byEmail, err := a.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail == nil || byEmail.ID != created.ID {
		t.Fatalf("GetUserByEmail() = %+v, %v", byEmail, err)
	}

	updated, err := a.UpdateUser(ctx, &core.User{ID: created.ID, Name: "Alice B", EmailVerified: &verified})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.Name != "Alice B" || updated.Email != "alice@example.com" || updated.Image != "https://img/a.png" {
		t.Errorf("UpdateUser() = %+v, want only name changed", updated)
	}
	if updated.EmailVerified == nil || !updated.EmailVerified.Equal(verified) {
		t.Errorf("EmailVerified = %v, want %v", updated.EmailVerified, verified)
	}
	if _, err := a.UpdateUser(ctx, &core.User{ID: "missing", Name: "x"}); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("UpdateUser(missing) error = %v, want ErrUserNotFound", err)
	}

	if err := a.DeleteUser(ctx, created.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	gone, err := a.GetUser(ctx, created.ID)
	if err != nil || gone != nil {
		t.Errorf("GetUser() after delete = %+v, %v", gone, err)
	}
	if err := a.DeleteUser(ctx, created.ID); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("DeleteUser(missing) error = %v, want ErrUserNotFound", err)
	}
}

func duplicateEmail(t *testing.T, a core.Adapter) {
	mustCreateUser(t, a, &core.User{Email: "dup@example.com"})
	if _, err := a.CreateUser(context.Background(), &core.User{Email: "dup@example.com"}); !errors.Is(err, core.ErrUserExists) {
		t.Errorf("CreateUser() error = %v, want ErrUserExists", err)
	}
	// Users without an email never collide.
	mustCreateUser(t, a, &core.User{Name: "no email 1"})
	mustCreateUser(t, a, &core.User{Name: "no email 2"})
}

func accounts(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a, &core.User{Email: "bob@example.com"})
	acc := &core.Account{
		UserID:            u.ID,
		Type:              core.ProviderTypeOAuth,
		Provider:          "github",
		ProviderAccountID: "42",
		AccessToken:       "at",
		RefreshToken:      "rt",
		ExpiresAt:         now().Add(time.Hour).Unix(),
		TokenType:         "bearer",
		Scope:             "read:user",
	}

	if err := a.LinkAccount(ctx, acc); err != nil {
		t.Fatalf("LinkAccount() error = %v", err)
	}
	got, err := a.GetUserByAccount(ctx, "github", "42")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetUserByAccount() = %+v, %v", got, err)
	}
	if err := a.LinkAccount(ctx, acc); !errors.Is(err, core.ErrAccountExists) {
		t.Errorf("LinkAccount() twice error = %v, want ErrAccountExists", err)
	}

	if err := a.UnlinkAccount(ctx, "github", "42"); err != nil {
		t.Fatalf("UnlinkAccount() error = %v", err)
	}
	got, err = a.GetUserByAccount(ctx, "github", "42")
	if err != nil || got != nil {
		t.Errorf("GetUserByAccount() after unlink = %+v, %v", got, err)
	}
	if err := a.UnlinkAccount(ctx, "github", "42"); err != nil {
		t.Errorf("UnlinkAccount() of a missing account error = %v", err)
	}
}

func sessions(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a, &core.User{Email: "carol@example.com"})
	expires := now().Add(time.Hour)

	created, err := a.CreateSession(ctx, &core.Session{SessionToken: "tok-1", UserID: u.ID, Expires: expires})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if created.SessionToken != "tok-1" || !created.Expires.Equal(expires) {
		t.Errorf("CreateSession() = %+v", created)
	}

	s, su, err := a.GetSessionAndUser(ctx, "tok-1")
	if err != nil || s == nil || su == nil {
		t.Fatalf("GetSessionAndUser() = %+v, %+v, %v", s, su, err)
	}
	if s.UserID != u.ID || su.Email != "carol@example.com" || !s.Expires.Equal(expires) {
		t.Errorf("GetSessionAndUser() = %+v, %+v", s, su)
	}

	later := expires.Add(24 * time.Hour)
	updated, err := a.UpdateSession(ctx, &core.Session{SessionToken: "tok-1", Expires: later})
	if err != nil || updated == nil || !updated.Expires.Equal(later) {
		t.Fatalf("UpdateSession() = %+v, %v", updated, err)
	}
	s, _, _ = a.GetSessionAndUser(ctx, "tok-1")
	if s == nil || !s.Expires.Equal(later) {
		t.Errorf("expiry after update = %+v, want %v", s, later)
	}

	if err := a.DeleteSession(ctx, "tok-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	s, su, err = a.GetSessionAndUser(ctx, "tok-1")
	if err != nil || s != nil || su != nil {
		t.Errorf("GetSessionAndUser() after delete = %+v, %+v, %v", s, su, err)
	}
}

func deleteUserCascades(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a, &core.User{Email: "dave@example.com"})
	if err := a.LinkAccount(ctx, &core.Account{UserID: u.ID, Type: core.ProviderTypeOAuth, Provider: "google", ProviderAccountID: "g1"}); err != nil {
		t.Fatalf("LinkAccount() error = %v", err)
	}
	if _, err := a.CreateSession(ctx, &core.Session{SessionToken: "tok-d", UserID: u.ID, Expires: now().Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := a.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if got, _ := a.GetUserByAccount(ctx, "google", "g1"); got != nil {
		t.Errorf("account survived user deletion: %+v", got)
	}
	if s, _, _ := a.GetSessionAndUser(ctx, "tok-d"); s != nil {
		t.Errorf("session survived user deletion: %+v", s)
	}
}

func verificationTokenSingleUse(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	expires := now().Add(24 * time.Hour)
	if err := a.CreateVerificationToken(ctx, &core.VerificationToken{Identifier: "erin@example.com", Token: "hash", Expires: expires}); err != nil {
		t.Fatalf("CreateVerificationToken() error = %v", err)
	}

	if vt, err := a.UseVerificationToken(ctx, "erin@example.com", "other"); err != nil || vt != nil {
		t.Errorf("UseVerificationToken(wrong token) = %+v, %v", vt, err)
	}
	vt, err := a.UseVerificationToken(ctx, "erin@example.com", "hash")
	if err != nil || vt == nil {
		t.Fatalf("UseVerificationToken() = %+v, %v", vt, err)
	}
	if vt.Identifier != "erin@example.com" || !vt.Expires.Equal(expires) {
		t.Errorf("UseVerificationToken() = %+v", vt)
	}
	again, err := a.UseVerificationToken(ctx, "erin@example.com", "hash")
	if err != nil || again != nil {
		t.Errorf("second UseVerificationToken() = %+v, %v", again, err)
	}
}

func deleteExpiredSessions(t *testing.T, a core.Adapter, sweeper core.SessionSweeper) {
	ctx := context.Background()
	at := now()
	u := mustCreateUser(t, a, &core.User{Email: "frank@example.com"})
	for token, expires := range map[string]time.Time{
		"old":  at.Add(-time.Minute),
		"live": at.Add(time.Hour),
	} {
		if _, err := a.CreateSession(ctx, &core.Session{SessionToken: token, UserID: u.ID, Expires: expires}); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	n, err := sweeper.DeleteExpiredSessions(ctx, at)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions() = %d, %v, want 1", n, err)
	}
	if s, _, _ := a.GetSessionAndUser(ctx, "live"); s == nil {
		t.Error("live session was removed")
	}
	if s, _, _ := a.GetSessionAndUser(ctx, "old"); s != nil {
		t.Error("expired session survived")
	}
}
