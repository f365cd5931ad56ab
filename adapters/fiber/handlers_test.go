package fiber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	auth, err := bantay.New(bantay.Config{
		Secret: "01234567890123456789012345678901",
		URL:    "http://localhost:3000",
		HTTP:   New(app),
		Logger: zap.NewNop(),
		Providers: []bantay.Provider{&bantay.CredentialsProvider{
			ID: "credentials",
			Authorize: func(_ context.Context, c map[string]string, _ *core.Request) (*bantay.User, error) {
				if c["password"] != "s3cret" {
					return nil, nil
				}
				return &bantay.User{ID: "1", Email: "a@example.com"}, nil
			},
		}},
	})
	if err != nil {
		t.Fatalf("bantay.New() error = %v", err)
	}
	app.Get("/sensitive", Protected(auth), func(c fiber.Ctx) error {
		return c.SendString(Session(c).User.Email)
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return res, string(body)
}

// Requirement: auth routes are mounted under the base path, provider routes
// included.
func TestAdapter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantIn     string
	}{
		{name: "csrf", method: http.MethodGet, path: "/api/auth/csrf", wantStatus: http.StatusOK, wantIn: "csrfToken"},
		{name: "session", method: http.MethodGet, path: "/api/auth/session", wantStatus: http.StatusOK, wantIn: "{}"},
		{name: "signin page", method: http.MethodGet, path: "/api/auth/signin", wantStatus: http.StatusOK, wantIn: "<!DOCTYPE html>"},
		{name: "error page", method: http.MethodGet, path: "/api/auth/error?error=Verification", wantStatus: http.StatusForbidden, wantIn: "no longer valid"},
		{name: "signin provider without csrf", method: http.MethodPost, path: "/api/auth/signin/credentials", wantStatus: http.StatusFound},
		{name: "protected without session", method: http.MethodGet, path: "/sensitive", wantStatus: http.StatusFound},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			app := newApp(t)
			req := httptest.NewRequest(test.method, "http://localhost:3000"+test.path, nil)

			// Act
			res, body := do(t, app, req)

			// Assert
			if res.StatusCode != test.wantStatus {
				t.Errorf("status = %d, want %d", res.StatusCode, test.wantStatus)
			}
			if !strings.Contains(body, test.wantIn) {
				t.Errorf("body = %q, want it to contain %q", body, test.wantIn)
			}
		})
	}
}

// Requirement: credentials sign-in through fiber sets a session cookie that
// unlocks protected routes.
func TestAdapter_CredentialsFlow(t *testing.T) {
	// Arrange
	app := newApp(t)
	csrfRes, csrfBody := do(t, app, httptest.NewRequest(http.MethodGet, "http://localhost:3000/api/auth/csrf", nil))
	var csrf map[string]string
	if err := json.Unmarshal([]byte(csrfBody), &csrf); err != nil {
		t.Fatalf("decode csrf: %v", err)
	}

	form := url.Values{"csrfToken": {csrf["csrfToken"]}, "password": {"s3cret"}}
	signIn := httptest.NewRequest(http.MethodPost, "http://localhost:3000/api/auth/callback/credentials", strings.NewReader(form.Encode()))
	signIn.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range csrfRes.Cookies() {
		signIn.AddCookie(c)
	}

	// Act
	signInRes, _ := do(t, app, signIn)
	sensitive := httptest.NewRequest(http.MethodGet, "http://localhost:3000/sensitive", nil)
	for _, c := range signInRes.Cookies() {
		if c.Value != "" {
			sensitive.AddCookie(c)
		}
	}
	res, body := do(t, app, sensitive)

	// Assert
	if signInRes.StatusCode != http.StatusFound {
		t.Errorf("signin status = %d, want 302", signInRes.StatusCode)
	}
	if res.StatusCode != http.StatusOK || body != "a@example.com" {
		t.Errorf("/sensitive = %d %q", res.StatusCode, body)
	}
}

// Requirement: JSON clients get 401 from protected routes instead of a
// redirect.
func TestProtected_JSONClient(t *testing.T) {
	// Arrange
	app := newApp(t)
	req := httptest.NewRequest(http.MethodGet, "http://localhost:3000/sensitive", nil)
	req.Header.Set("Accept", "application/json")

	// Act
	res, body := do(t, app, req)

	// Assert
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", res.StatusCode)
	}
	if !strings.Contains(body, "SessionRequired") {
		t.Errorf("body = %q", body)
	}
}

// Requirement: deleting cookies uses an expiry in the past.
func TestFiberCookie(t *testing.T) {
	tests := []struct {
		name        string
		in          core.Cookie
		wantMaxAge  int
		wantExpired bool
		wantSame    string
	}{
		{
			name:       "session cookie",
			in:         core.Cookie{Name: "s", Value: "v", Options: core.CookieOptions{MaxAge: 60, SameSite: http.SameSiteLaxMode}},
			wantMaxAge: 60,
			wantSame:   fiber.CookieSameSiteLaxMode,
		},
		{
			name:        "deletion",
			in:          core.Cookie{Name: "s", Options: core.CookieOptions{MaxAge: -1, SameSite: http.SameSiteStrictMode}},
			wantExpired: true,
			wantSame:    fiber.CookieSameSiteStrictMode,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			got := fiberCookie(test.in)

			// Assert
			if got.MaxAge != test.wantMaxAge {
				t.Errorf("MaxAge = %d, want %d", got.MaxAge, test.wantMaxAge)
			}
			if test.wantExpired && !got.Expires.Before(time.Now()) {
				t.Errorf("Expires = %v, want a past time", got.Expires)
			}
			if got.SameSite != test.wantSame {
				t.Errorf("SameSite = %q, want %q", got.SameSite, test.wantSame)
			}
		})
	}
}

func TestFiberPath(t *testing.T) {
	if got := fiberPath("/callback/{provider}"); got != "/callback/:provider" {
		t.Errorf("fiberPath() = %q", got)
	}
}
