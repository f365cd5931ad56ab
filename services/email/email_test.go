package email

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testOptions(now time.Time) *core.Options {
	u, _ := url.Parse("https://app.example.com/api/auth")
	return &core.Options{
		Secret:      testSecret,
		URL:         u,
		BasePath:    "/api/auth",
		Adapter:     core.WrapAdapter(memory.New(), nil),
		Logger:      core.NewLogger(nil),
		Now:         func() time.Time { return now },
		CallbackURL: "https://app.example.com/dashboard",
	}
}

// Requirement: identifiers are normalized before storage and lookup.
func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "lower-cases and trims", in: "  Alice@Example.COM ", want: "alice@example.com"},
		{name: "keeps first domain", in: "bob@a.com,evil.com", want: "bob@a.com"},
		{name: "missing at", in: "bob", wantErr: true},
		{name: "empty local", in: "@example.com", wantErr: true},
		{name: "empty domain", in: "bob@", wantErr: true},
		{name: "two ats", in: "a@b@c.com", wantErr: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			got, err := NormalizeIdentifier(test.in)

			// Assert
			if (err != nil) != test.wantErr {
				t.Fatalf("NormalizeIdentifier(%q) error = %v, wantErr %v", test.in, err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("NormalizeIdentifier(%q) = %q, want %q", test.in, got, test.want)
			}
		})
	}
}

// Requirement: the mailed link carries the cleartext token while only its
// hash is stored, and the link redeems exactly once.
func TestSendVerificationRequest_ThenVerifyOnce(t *testing.T) {
	// Arrange
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	opts := testOptions(now)
	var sent core.VerificationRequest
	p := &core.EmailProvider{
		ID: "email",
		SendVerificationRequest: func(_ context.Context, req core.VerificationRequest) error {
			sent = req
			return nil
		},
	}

	// Act
	err := SendVerificationRequest(context.Background(), opts, p, "alice@example.com")

	// Assert
	if err != nil {
		t.Fatalf("SendVerificationRequest() error = %v", err)
	}
	link, err := url.Parse(sent.URL)
	if err != nil {
		t.Fatalf("bad link %q", sent.URL)
	}
	if !strings.HasPrefix(sent.URL, "https://app.example.com/api/auth/callback/email?") {
		t.Errorf("link = %q", sent.URL)
	}
	q := link.Query()
	if q.Get("token") != sent.Token || q.Get("email") != "alice@example.com" {
		t.Errorf("link query = %v", q)
	}
	if q.Get("callbackUrl") != "https://app.example.com/dashboard" {
		t.Errorf("callbackUrl = %q", q.Get("callbackUrl"))
	}
	if !sent.Expires.Equal(now.Add(DefaultMaxAge)) {
		t.Errorf("Expires = %v, want %v", sent.Expires, now.Add(DefaultMaxAge))
	}

	if err := Verify(context.Background(), opts, "alice@example.com", sent.Token); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	if err := Verify(context.Background(), opts, "alice@example.com", sent.Token); !errors.Is(err, core.ErrVerification) {
		t.Errorf("second Verify() error = %v, want ErrVerification", err)
	}
}

// Requirement: expired, unknown and incomplete links are rejected with
// Verification.
func TestVerify_Rejects(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		stored     *core.VerificationToken
		identifier string
		token      string
	}{
		{name: "missing token", identifier: "a@example.com"},
		{name: "missing email", token: "abc"},
		{name: "unknown token", identifier: "a@example.com", token: "abc"},
		{
			name:       "expired",
			stored:     &core.VerificationToken{Identifier: "a@example.com", Token: crypto.HashToken("abc", testSecret), Expires: now.Add(-time.Second)},
			identifier: "a@example.com",
			token:      "abc",
		},
		{
			name:       "other identifier",
			stored:     &core.VerificationToken{Identifier: "b@example.com", Token: crypto.HashToken("abc", testSecret), Expires: now.Add(time.Hour)},
			identifier: "a@example.com",
			token:      "abc",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			opts := testOptions(now)
			if test.stored != nil {
				_ = opts.Adapter.CreateVerificationToken(context.Background(), test.stored)
			}

			// Act
			err := Verify(context.Background(), opts, test.identifier, test.token)

			// Assert
			if !errors.Is(err, core.ErrVerification) {
				t.Errorf("Verify() error = %v, want ErrVerification", err)
			}
		})
	}
}

// Requirement: a sender failure surfaces to the caller after the token is
// stored.
func TestSendVerificationRequest_SenderFails(t *testing.T) {
	// Arrange
	opts := testOptions(time.Now())
	p := &core.EmailProvider{
		ID:                        "email",
		GenerateVerificationToken: func() (string, error) { return "fixed", nil },
		SendVerificationRequest: func(context.Context, core.VerificationRequest) error {
			return errors.New("smtp down")
		},
	}

	// Act
	err := SendVerificationRequest(context.Background(), opts, p, "a@example.com")

	// Assert
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("SendVerificationRequest() error = %v", err)
	}
}

func TestVerifyRequestURL(t *testing.T) {
	opts := testOptions(time.Now())
	got := VerifyRequestURL(opts, &core.EmailProvider{ID: "email"})
	want := "https://app.example.com/api/auth/verify-request?provider=email&type=email"
	if got != want {
		t.Errorf("VerifyRequestURL() = %q, want %q", got, want)
	}
}
