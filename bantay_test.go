package bantay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
)

const testSecret = "01234567890123456789012345678901"

// recordingHTTP captures the handler it is asked to mount.
type recordingHTTP struct {
	handler core.Handler
	err     error
}

func (r *recordingHTTP) RegisterRoutes(h core.Handler) error {
	r.handler = h
	return r.err
}

func credentials() *CredentialsProvider {
	return &CredentialsProvider{
		ID: "credentials",
		Authorize: func(context.Context, map[string]string, *core.Request) (*User, error) {
			return &User{ID: "1", Email: "a@example.com"}, nil
		},
	}
}

func email() *EmailProvider {
	return &EmailProvider{
		ID:                      "email",
		SendVerificationRequest: func(context.Context, core.VerificationRequest) error { return nil },
	}
}

func github() *OAuthProvider {
	return &OAuthProvider{
		ID:            "github",
		ClientID:      "cid",
		Authorization: core.ProviderEndpoint{URL: "https://github.com/login/oauth/authorize"},
		Profile:       func(map[string]any, *core.TokenSet) (*Profile, error) { return &Profile{ID: "1"}, nil },
	}
}

// Requirement: New rejects configurations that cannot serve a request, with
// a ConfigurationError wrapping the matching sentinel.
func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "missing secret", mutate: func(c *Config) { c.Secret = "" }, wantErr: ErrSecretRequired},
		{name: "short secret", mutate: func(c *Config) { c.Secret = "short-secret" }, wantErr: ErrSecretTooShort},
		{name: "relative url", mutate: func(c *Config) { c.URL = "/app" }, wantErr: ErrInvalidURL},
		{name: "email without adapter", mutate: func(c *Config) { c.Providers = []Provider{email()} }, wantErr: ErrAdapterRequired},
		{
			name: "credentials without authorize",
			mutate: func(c *Config) {
				c.Providers = []Provider{&CredentialsProvider{ID: "credentials"}}
			},
			wantErr: ErrAuthorizeRequired,
		},
		{
			name: "database strategy with credentials only",
			mutate: func(c *Config) {
				c.Adapter = memory.New()
				c.Session.Strategy = SessionStrategyDatabase
			},
			wantErr: ErrUnsupportedStrategy,
		},
		{
			name: "database strategy without adapter",
			mutate: func(c *Config) {
				c.Session.Strategy = SessionStrategyDatabase
			},
			wantErr: ErrDatabaseAdapter,
		},
		{
			name: "duplicate provider id",
			mutate: func(c *Config) {
				c.Providers = []Provider{credentials(), credentials()}
			},
			wantErr: ErrDuplicateProvider,
		},
		{
			name: "oauth without client id",
			mutate: func(c *Config) {
				p := github()
				p.ClientID = ""
				c.Providers = []Provider{p}
			},
			wantErr: ErrInvalidProvider,
		},
		{
			name: "oauth without endpoints",
			mutate: func(c *Config) {
				p := github()
				p.Authorization.URL = ""
				c.Providers = []Provider{p}
			},
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Session.Strategy = "cookie" },
			wantErr: core.ErrUnknownSessionConfig,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			cfg := Config{
				Secret:    testSecret,
				URL:       "https://app.example.com",
				Providers: []Provider{credentials()},
				Logger:    zap.NewNop(),
			}
			test.mutate(&cfg)

			// Act
			_, err := New(cfg)

			// Assert
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, test.wantErr)
			}
			var ce *core.ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("New() error = %T, want *core.ConfigurationError", err)
			}
		})
	}
}

func TestNewShouldReturnErrSecretTooShort(t *testing.T) {
	_, err := New(Config{Secret: "short-secret", Logger: zap.NewNop()})
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort sentinel (errors.Is), got %v", err)
	}
	// Message should include the minimum length
	if !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected error message to include minimum length, got %v", err)
	}
}

// Requirement: New mounts itself on the HTTP adapter and reports its base
// path.
func TestNew_RegistersRoutes(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		basePath     string
		wantBasePath string
	}{
		{name: "default base path", url: "https://app.example.com", wantBasePath: "/api/auth"},
		{name: "path from url", url: "https://app.example.com/auth/", wantBasePath: "/auth"},
		{name: "explicit base path", url: "https://app.example.com/ignored", basePath: "/login/", wantBasePath: "/login"},
		{name: "no url", wantBasePath: "/api/auth"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			transport := &recordingHTTP{}

			// Act
			b, err := New(Config{
				Secret:   testSecret,
				URL:      test.url,
				BasePath: test.basePath,
				HTTP:     transport,
				Logger:   zap.NewNop(),
			})

			// Assert
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if transport.handler != b {
				t.Error("RegisterRoutes was not given the instance")
			}
			if b.BasePath() != test.wantBasePath {
				t.Errorf("BasePath() = %q, want %q", b.BasePath(), test.wantBasePath)
			}
		})
	}
}

// Requirement: a failing route registration fails New.
func TestNew_RegisterRoutesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(Config{Secret: testSecret, HTTP: &recordingHTTP{err: boom}, Logger: zap.NewNop()})
	if !errors.Is(err, boom) {
		t.Errorf("New() error = %v, want %v", err, boom)
	}
}

// Requirement: the strategy defaults to database with an adapter and jwt
// without one; secure cookie names follow the URL scheme.
func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		adapter    Adapter
		wantCookie string
	}{
		{name: "https jwt", url: "https://app.example.com", wantCookie: "__Secure-next-auth.session-token"},
		{name: "http database", url: "http://localhost:3000", adapter: memory.New(), wantCookie: "next-auth.session-token"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			cfg := Config{
				Secret:    testSecret,
				URL:       test.url,
				Adapter:   test.adapter,
				Providers: []Provider{github()},
				Logger:    zap.NewNop(),
			}

			// Act
			opts, err := buildOptions(cfg)

			// Assert
			if err != nil {
				t.Fatalf("buildOptions() error = %v", err)
			}
			wantStrategy := SessionStrategyJWT
			if test.adapter != nil {
				wantStrategy = SessionStrategyDatabase
			}
			if opts.Session.Strategy != wantStrategy {
				t.Errorf("Strategy = %q, want %q", opts.Session.Strategy, wantStrategy)
			}
			if opts.Cookies.SessionToken.Name != test.wantCookie {
				t.Errorf("session cookie = %q, want %q", opts.Cookies.SessionToken.Name, test.wantCookie)
			}
			if opts.Session.MaxAge != core.DefaultSessionMaxAge || opts.Session.UpdateAge != core.DefaultSessionUpdateAge {
				t.Errorf("Session = %+v", opts.Session)
			}
			p := opts.Providers[0].(*OAuthProvider)
			if !p.HasCheck(core.CheckState) {
				t.Errorf("Checks = %v, want state by default", p.Checks)
			}
			if len(cfg.Providers[0].(*OAuthProvider).Checks) != 0 {
				t.Error("caller's provider was modified")
			}
		})
	}
}

// Requirement: SessionRequired sends anonymous users to sign in with the
// SessionRequired error and their return URL.
func TestSessionRequired(t *testing.T) {
	// Arrange
	b, err := New(Config{Secret: testSecret, URL: "https://app.example.com", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	req := &core.Request{Method: http.MethodGet}

	// Act
	res := b.SessionRequired(req, "https://app.example.com/account")

	// Assert
	want := "https://app.example.com/api/auth/signin?callbackUrl=https%3A%2F%2Fapp.example.com%2Faccount&error=SessionRequired"
	if res.Redirect != want {
		t.Errorf("Redirect = %q, want %q", res.Redirect, want)
	}
}

// Requirement: GetServerSession reads a JWT session issued by credentials
// sign-in through the public instance.
func TestGetServerSession(t *testing.T) {
	// Arrange
	b, err := New(Config{
		Secret:    testSecret,
		URL:       "https://app.example.com",
		Providers: []Provider{credentials()},
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	csrfRes, _ := b.Handle(ctx, &core.Request{Method: http.MethodGet, Action: core.ActionCSRF})
	jar := map[string]string{}
	for _, c := range csrfRes.Cookies {
		jar[c.Name] = c.Value
	}
	token := csrfRes.Body.(map[string]string)["csrfToken"]

	signIn, _ := b.Handle(ctx, &core.Request{
		Method:     http.MethodPost,
		Action:     core.ActionCallback,
		ProviderID: "credentials",
		Cookies:    jar,
		Body:       map[string][]string{"csrfToken": {token}},
	})
	for _, c := range signIn.Cookies {
		jar[c.Name] = c.Value
	}

	// Act
	data, _, err := b.GetServerSession(ctx, &core.Request{Method: http.MethodGet, Cookies: jar})

	// Assert
	if err != nil {
		t.Fatalf("GetServerSession() error = %v", err)
	}
	if data == nil || data.User.Email != "a@example.com" {
		t.Errorf("data = %+v", data)
	}
}
