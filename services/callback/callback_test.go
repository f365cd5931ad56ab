package callback

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	sessionjwt "github.com/lborres/bantay/pkg/jwt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Adapter
	opts   *core.Options
	events []string
}

func newFixture(strategy core.SessionStrategy, providers ...core.Provider) *fixture {
	u, _ := url.Parse("https://app.example.com/api/auth")
	f := &fixture{store: memory.New()}
	codec := sessionjwt.NewCodec(sessionjwt.WithClock(func() time.Time { return testNow }))
	f.opts = &core.Options{
		Secret:    testSecret,
		URL:       u,
		Providers: providers,
		Adapter:   core.WrapAdapter(f.store, nil),
		Session:   core.SessionConfig{Strategy: strategy, MaxAge: core.DefaultSessionMaxAge, UpdateAge: core.DefaultSessionUpdateAge},
		JWT:       core.JWTConfig{Encode: codec.Encode, Decode: codec.Decode},
		Logger:    core.NewLogger(nil),
		Now:       func() time.Time { return testNow },
		Events: core.Events{
			CreateUser: func(context.Context, *core.User) error {
				f.events = append(f.events, "createUser")
				return nil
			},
			UpdateUser: func(context.Context, *core.User) error {
				f.events = append(f.events, "updateUser")
				return nil
			},
			LinkAccount: func(context.Context, core.LinkAccountEvent) error {
				f.events = append(f.events, "linkAccount")
				return nil
			},
		},
	}
	return f
}

func (f *fixture) user(t *testing.T, email string) *core.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), &core.User{Email: email})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) link(t *testing.T, u *core.User, provider, id string) {
	t.Helper()
	if err := f.store.LinkAccount(context.Background(), &core.Account{
		UserID: u.ID, Type: core.ProviderTypeOAuth, Provider: provider, ProviderAccountID: id,
	}); err != nil {
		t.Fatal(err)
	}
}

// dbSession signs u in under the database strategy.
func (f *fixture) dbSession(t *testing.T, u *core.User) string {
	t.Helper()
	_, err := f.store.CreateSession(context.Background(), &core.Session{
		SessionToken: "current-" + u.ID, UserID: u.ID, Expires: testNow.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	return "current-" + u.ID
}

// jwtSession signs u in under the jwt strategy.
func (f *fixture) jwtSession(t *testing.T, u *core.User) string {
	t.Helper()
	token, err := f.opts.EncodeJWT(context.Background(), core.JWT{"sub": u.ID})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func oauthParams(provider, id, email, sessionToken string) Params {
	return Params{
		SessionToken: sessionToken,
		Profile:      &core.Profile{ID: id, Email: email, Name: "Name"},
		Account:      &core.Account{Type: core.ProviderTypeOAuth, Provider: provider, ProviderAccountID: id, AccessToken: "at"},
	}
}

func emailParams(address, sessionToken string) Params {
	return Params{
		SessionToken: sessionToken,
		Profile:      &core.Profile{ID: address, Email: address},
		Account:      &core.Account{Type: core.ProviderTypeEmail, Provider: "email", ProviderAccountID: address},
	}
}

// Requirement: an OAuth identity linked to U1 cannot be used while signed
// in as U2, and U2's accounts are not touched.
func TestHandle_OAuthLinkConflict(t *testing.T) {
	strategies := []core.SessionStrategy{core.SessionStrategyDatabase, core.SessionStrategyJWT}

	for _, strategy := range strategies {
		strategy := strategy
		t.Run(string(strategy), func(t *testing.T) {
			// Arrange
			f := newFixture(strategy)
			u1 := f.user(t, "u1@example.com")
			u2 := f.user(t, "u2@example.com")
			f.link(t, u1, "github", "id1")
			token := f.dbSession(t, u2)
			if strategy == core.SessionStrategyJWT {
				token = f.jwtSession(t, u2)
			}

			// Act
			_, err := Handle(context.Background(), f.opts, oauthParams("github", "id1", "u1@example.com", token))

			// Assert
			if !errors.Is(err, core.ErrAccountNotLinked) {
				t.Fatalf("Handle() error = %v, want ErrAccountNotLinked", err)
			}
			if n := len(f.store.Accounts(u2.ID)); n != 0 {
				t.Errorf("U2 has %d accounts, want 0", n)
			}
		})
	}
}

// Requirement: an unlinked OAuth profile whose email belongs to an existing
// user is rejected and no duplicate user is created.
func TestHandle_OAuthEmailCollision(t *testing.T) {
	// Arrange
	f := newFixture(core.SessionStrategyDatabase)
	existing := f.user(t, "taken@example.com")

	// Act
	_, err := Handle(context.Background(), f.opts, oauthParams("github", "gh-7", "taken@example.com", ""))

	// Assert
	if !errors.Is(err, core.ErrAccountNotLinked) {
		t.Fatalf("Handle() error = %v, want ErrAccountNotLinked", err)
	}
	byEmail, _ := f.store.GetUserByEmail(context.Background(), "taken@example.com")
	if byEmail == nil || byEmail.ID != existing.ID {
		t.Errorf("user by email = %+v, want %s", byEmail, existing.ID)
	}
	if n := len(f.store.Accounts(existing.ID)); n != 0 {
		t.Errorf("existing user has %d accounts, want 0", n)
	}
	if len(f.events) != 0 {
		t.Errorf("events = %v, want none", f.events)
	}
}

// Requirement: the email collision may be relaxed per provider.
func TestHandle_OAuthEmailCollisionAllowed(t *testing.T) {
	// Arrange
	gh := &core.OAuthProvider{ID: "github", AllowDangerousEmailAccountLinking: true}
	f := newFixture(core.SessionStrategyDatabase, gh)
	existing := f.user(t, "taken@example.com")

	// Act
	res, err := Handle(context.Background(), f.opts, oauthParams("github", "gh-7", "taken@example.com", ""))

	// Assert
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.User.ID != existing.ID || res.IsNewUser {
		t.Errorf("result = %+v, want existing user", res)
	}
	if n := len(f.store.Accounts(existing.ID)); n != 1 {
		t.Errorf("existing user has %d accounts, want 1", n)
	}
}

// Requirement: the OAuth branches of the linking state machine.
func TestHandle_OAuthOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T, f *fixture) (sessionToken string, wantUser *core.User)
		wantNew     bool
		wantSession bool
		wantEvents  []string
		wantLinks   int
	}{
		{
			name: "linked and not signed in signs in",
			setup: func(t *testing.T, f *fixture) (string, *core.User) {
				u := f.user(t, "a@example.com")
				f.link(t, u, "github", "gh-1")
				return "", u
			},
			wantSession: true,
			wantLinks:   1,
		},
		{
			name: "linked to the signed-in user is a no-op",
			setup: func(t *testing.T, f *fixture) (string, *core.User) {
				u := f.user(t, "a@example.com")
				f.link(t, u, "github", "gh-1")
				return f.dbSession(t, u), u
			},
			wantSession: true,
			wantLinks:   1,
		},
		{
			name: "unlinked and signed in links to the current user",
			setup: func(t *testing.T, f *fixture) (string, *core.User) {
				u := f.user(t, "other@example.com")
				return f.dbSession(t, u), u
			},
			wantSession: true,
			wantEvents:  []string{"linkAccount"},
			wantLinks:   1,
		},
		{
			name: "unknown identity creates and links a user",
			setup: func(t *testing.T, f *fixture) (string, *core.User) {
				return "", nil
			},
			wantNew:     true,
			wantSession: true,
			wantEvents:  []string{"createUser", "linkAccount"},
			wantLinks:   1,
		},
		{
			name: "expired session counts as signed out",
			setup: func(t *testing.T, f *fixture) (string, *core.User) {
				u := f.user(t, "old@example.com")
				_, _ = f.store.CreateSession(context.Background(), &core.Session{
					SessionToken: "stale", UserID: u.ID, Expires: testNow.Add(-time.Minute),
				})
				return "stale", nil
			},
			wantNew:     true,
			wantSession: true,
			wantEvents:  []string{"createUser", "linkAccount"},
			wantLinks:   1,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			f := newFixture(core.SessionStrategyDatabase)
			token, wantUser := test.setup(t, f)

			// Act
			res, err := Handle(context.Background(), f.opts, oauthParams("github", "gh-1", "a@example.com", token))

			// Assert
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if wantUser != nil && res.User.ID != wantUser.ID {
				t.Errorf("User.ID = %q, want %q", res.User.ID, wantUser.ID)
			}
			if res.IsNewUser != test.wantNew {
				t.Errorf("IsNewUser = %v, want %v", res.IsNewUser, test.wantNew)
			}
			if (res.Session != nil) != test.wantSession {
				t.Errorf("Session = %+v, wantSession %v", res.Session, test.wantSession)
			}
			if got := len(f.store.Accounts(res.User.ID)); got != test.wantLinks {
				t.Errorf("linked accounts = %d, want %d", got, test.wantLinks)
			}
			if len(f.events) != len(test.wantEvents) {
				t.Fatalf("events = %v, want %v", f.events, test.wantEvents)
			}
			for i := range f.events {
				if f.events[i] != test.wantEvents[i] {
					t.Errorf("events = %v, want %v", f.events, test.wantEvents)
				}
			}
		})
	}
}

// Requirement: the email branches of the linking state machine.
func TestHandle_EmailOutcomes(t *testing.T) {
	// Case 1: already signed in as the same user keeps the session.
	t.Run("same user keeps session", func(t *testing.T) {
		// Arrange
		f := newFixture(core.SessionStrategyDatabase)
		u := f.user(t, "a@example.com")
		token := f.dbSession(t, u)

		// Act
		res, err := Handle(context.Background(), f.opts, emailParams("a@example.com", token))

		// Assert
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if res.Session == nil || res.Session.SessionToken != token {
			t.Errorf("Session = %+v, want existing %q", res.Session, token)
		}
		if len(f.events) != 0 {
			t.Errorf("events = %v, want none", f.events)
		}
	})

	// Case 2: signed in as someone else switches accounts.
	t.Run("different user switches", func(t *testing.T) {
		// Arrange
		f := newFixture(core.SessionStrategyDatabase)
		target := f.user(t, "a@example.com")
		other := f.user(t, "b@example.com")
		token := f.dbSession(t, other)

		// Act
		res, err := Handle(context.Background(), f.opts, emailParams("a@example.com", token))

		// Assert
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if res.User.ID != target.ID {
			t.Errorf("User.ID = %q, want %q", res.User.ID, target.ID)
		}
		if old, _, _ := f.store.GetSessionAndUser(context.Background(), token); old != nil {
			t.Error("old session was not destroyed")
		}
		if res.Session == nil || res.Session.SessionToken == token {
			t.Errorf("Session = %+v, want a new one", res.Session)
		}
		if res.User.EmailVerified == nil || !res.User.EmailVerified.Equal(testNow) {
			t.Errorf("EmailVerified = %v, want %v", res.User.EmailVerified, testNow)
		}
	})

	// Case 3: not signed in, known address.
	t.Run("existing user signs in", func(t *testing.T) {
		// Arrange
		f := newFixture(core.SessionStrategyDatabase)
		u := f.user(t, "a@example.com")

		// Act
		res, err := Handle(context.Background(), f.opts, emailParams("a@example.com", ""))

		// Assert
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if res.User.ID != u.ID || res.IsNewUser {
			t.Errorf("result = %+v", res)
		}
		if len(f.events) != 1 || f.events[0] != "updateUser" {
			t.Errorf("events = %v, want [updateUser]", f.events)
		}
	})

	// Case 4: unknown address creates a verified user.
	t.Run("unknown address creates user", func(t *testing.T) {
		// Arrange
		f := newFixture(core.SessionStrategyJWT)

		// Act
		res, err := Handle(context.Background(), f.opts, emailParams("new@example.com", ""))

		// Assert
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if !res.IsNewUser || res.User.ID == "" || res.User.ID == "new@example.com" {
			t.Errorf("result = %+v", res)
		}
		if res.Session != nil {
			t.Errorf("jwt strategy created a database session: %+v", res.Session)
		}
		if res.User.EmailVerified == nil {
			t.Error("EmailVerified not set")
		}
	})
}

// Requirement: adapter failures surface as *core.AdapterError naming the
// method.
func TestHandle_CreateUserFailure(t *testing.T) {
	// Arrange
	f := newFixture(core.SessionStrategyDatabase)
	f.opts.Adapter = core.WrapAdapter(failingCreate{f.store}, nil)

	// Act
	_, err := Handle(context.Background(), f.opts, oauthParams("github", "gh-1", "a@example.com", ""))

	// Assert
	if !core.IsAdapterError(err, "CreateUser") {
		t.Fatalf("Handle() error = %v, want CreateUser adapter error", err)
	}
}

func TestHandle_NoAdapter(t *testing.T) {
	// Arrange
	f := newFixture(core.SessionStrategyJWT)
	f.opts.Adapter = nil

	// Act
	res, err := Handle(context.Background(), f.opts, oauthParams("github", "gh-1", "a@example.com", ""))

	// Assert
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.User.ID != "gh-1" || res.User.Email != "a@example.com" {
		t.Errorf("User = %+v", res.User)
	}
}

type failingCreate struct {
	*memory.Adapter
}

func (failingCreate) CreateUser(context.Context, *core.User) (*core.User, error) {
	return nil, errors.New("disk full")
}
