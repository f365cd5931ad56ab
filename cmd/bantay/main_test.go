package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/config"
)

const testSecret = "01234567890123456789012345678901"

// Requirement: the CLI exposes serve, migrate and secret.
func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "secret"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not found: %v", name, err)
		}
	}
}

func TestSecretCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantLen int
		wantErr bool
	}{
		{name: "default size", args: []string{"secret"}, wantLen: 43},
		{name: "larger", args: []string{"secret", "--bytes", "48"}, wantLen: 64},
		{name: "too small", args: []string{"secret", "--bytes", "16"}, wantErr: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			root := newRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs(test.args)

			// Act
			err := root.Execute()

			// Assert
			if (err != nil) != test.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, test.wantErr)
			}
			if !test.wantErr && len(strings.TrimSpace(out.String())) != test.wantLen {
				t.Errorf("secret = %q, want %d characters", out.String(), test.wantLen)
			}
		})
	}
}

// Requirement: a provider is enabled only when its credentials are set.
func TestBuildProviders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AppConfig
		wantIDs []string
	}{
		{name: "none"},
		{name: "github", cfg: config.AppConfig{GitHubClientID: "id"}, wantIDs: []string{"github"}},
		{
			name:    "all",
			cfg:     config.AppConfig{GitHubClientID: "a", GoogleClientID: "b", TwitterConsumerKey: "c", SMTPServer: "smtp://h", EmailFrom: "f@example.com"},
			wantIDs: []string{"github", "google", "twitter", "email"},
		},
		{name: "email needs a sender address", cfg: config.AppConfig{SMTPServer: "smtp://h"}},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got := buildProviders(test.cfg)
			if len(got) != len(test.wantIDs) {
				t.Fatalf("buildProviders() returned %d providers, want %d", len(got), len(test.wantIDs))
			}
			for i, p := range got {
				if p.Info().ID != test.wantIDs[i] {
					t.Errorf("provider %d = %q, want %q", i, p.Info().ID, test.wantIDs[i])
				}
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	adapter, closeStore, err := openStore(context.Background(), config.AppConfig{Store: config.StoreMemory})
	if err != nil || adapter == nil {
		t.Fatalf("openStore(memory) = %v, %v", adapter, err)
	}
	closeStore()

	if _, _, err := openStore(context.Background(), config.AppConfig{Store: "mongo"}); err == nil {
		t.Error("expected an error for an unknown store")
	}
	if _, _, err := openStore(context.Background(), config.AppConfig{Store: config.StorePostgres}); err == nil {
		t.Error("expected an error without DATABASE_URL")
	}
}

// Requirement: the server answers health, metrics, auth and protected
// routes.
func TestNewServer_Routes(t *testing.T) {
	// Arrange
	cfg := config.AppConfig{Secret: testSecret, URL: "http://localhost:3000", SessionMaxAge: time.Hour}
	_, handler, err := newServer(cfg, memory.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantIn     string
	}{
		{name: "health", path: "/healthz", wantStatus: http.StatusNoContent},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantIn: "go_goroutines"},
		{name: "csrf", path: "/api/auth/csrf", wantStatus: http.StatusOK, wantIn: "csrfToken"},
		{name: "me without session", path: "/me", wantStatus: http.StatusFound},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost:3000"+test.path, nil))

			// Assert
			if rec.Code != test.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, test.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), test.wantIn) {
				t.Errorf("body missing %q", test.wantIn)
			}
		})
	}
}

func TestNewServer_ConfigError(t *testing.T) {
	_, _, err := newServer(config.AppConfig{Secret: "short"}, memory.New(), zap.NewNop())
	if err == nil {
		t.Fatal("expected a configuration error")
	}
}

type countingSweeper struct {
	calls chan time.Time
}

func (s *countingSweeper) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	select {
	case s.calls <- now:
	default:
	}
	return 1, nil
}

var _ core.SessionSweeper = (*countingSweeper)(nil)

func TestSweepSessions(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := &countingSweeper{calls: make(chan time.Time, 4)}

	// Act
	go sweepSessions(ctx, sweeper, 5*time.Millisecond, zap.NewNop())

	// Assert
	select {
	case <-sweeper.calls:
	case <-time.After(time.Second):
		t.Fatal("sweeper was never called")
	}
}
