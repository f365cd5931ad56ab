package pages

import (
	"strings"
	"testing"

	"github.com/lborres/bantay/core"
)

// Requirement: each built-in page renders a full document with the values
// the flow needs.
func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		page     *core.Page
		contains []string
		excludes []string
	}{
		{
			name: "sign-in page lists every provider with the csrf token",
			page: &core.Page{
				Kind:        core.PageSignIn,
				BaseURL:     "https://app.example.com/api/auth",
				CSRFToken:   "tok123",
				CallbackURL: "https://app.example.com/home",
				Providers: []core.PageProvider{
					{
						PublicProvider: core.PublicProvider{ID: "credentials", Name: "Password", Type: core.ProviderTypeCredentials, CallbackURL: "https://app.example.com/api/auth/callback/credentials"},
						Credentials:    map[string]core.CredentialInput{"username": {Label: "Username"}, "password": {Type: "password"}},
					},
					{PublicProvider: core.PublicProvider{ID: "github", Name: "GitHub", Type: core.ProviderTypeOAuth, SignInURL: "https://app.example.com/api/auth/signin/github"}},
					{PublicProvider: core.PublicProvider{ID: "email", Name: "Email", Type: core.ProviderTypeEmail, SignInURL: "https://app.example.com/api/auth/signin/email"}},
				},
			},
			contains: []string{
				"<!DOCTYPE html>",
				`action="https://app.example.com/api/auth/signin/github"`,
				`action="https://app.example.com/api/auth/callback/credentials"`,
				`name="csrfToken" value="tok123"`,
				"Sign in with GitHub",
				"Username",
				`type="password"`,
			},
			excludes: []string{`class="error"`},
		},
		{
			name: "sign-in page shows the error message",
			page: &core.Page{
				Kind:    core.PageSignIn,
				BaseURL: "https://app.example.com/api/auth",
				Error:   core.CodeOAuthAccountNotLinked,
			},
			contains: []string{"sign in with the same account you used originally"},
		},
		{
			name:     "unknown sign-in error falls back",
			page:     &core.Page{Kind: core.PageSignIn, Error: "Bogus"},
			contains: []string{"Unable to sign in."},
		},
		{
			name: "values are escaped",
			page: &core.Page{
				Kind:  core.PageSignIn,
				Email: `"><script>alert(1)</script>`,
				Providers: []core.PageProvider{
					{PublicProvider: core.PublicProvider{ID: "email", Name: "Email", Type: core.ProviderTypeEmail}},
				},
			},
			excludes: []string{"<script>alert(1)</script>"},
		},
		{
			name:     "sign-out page posts the csrf token",
			page:     &core.Page{Kind: core.PageSignOut, BaseURL: "https://app.example.com/api/auth", CSRFToken: "tok"},
			contains: []string{`action="https://app.example.com/api/auth/signout"`, `value="tok"`},
		},
		{
			name:     "verify request links home",
			page:     &core.Page{Kind: core.PageVerifyRequest, BaseURL: "https://app.example.com/api/auth", Host: "app.example.com"},
			contains: []string{"Check your email", `href="https://app.example.com"`},
		},
		{
			name:     "verification error offers sign in",
			page:     &core.Page{Kind: core.PageError, BaseURL: "https://app.example.com/api/auth", Error: core.CodeVerification},
			contains: []string{"no longer valid", `href="https://app.example.com/api/auth/signin"`},
		},
		{
			name:     "configuration error hides details",
			page:     &core.Page{Kind: core.PageError, Error: core.CodeConfiguration},
			contains: []string{"Server error"},
			excludes: []string{"/signin"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			var sb strings.Builder

			// Act
			err := Render(&sb, test.page)

			// Assert
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			html := sb.String()
			for _, want := range test.contains {
				if !strings.Contains(html, want) {
					t.Errorf("output missing %q", want)
				}
			}
			for _, bad := range test.excludes {
				if strings.Contains(html, bad) {
					t.Errorf("output contains %q", bad)
				}
			}
		})
	}
}

// Requirement: OAuth providers come first without reordering the caller's
// slice.
func TestRender_ProviderOrder(t *testing.T) {
	// Arrange
	providers := []core.PageProvider{
		{PublicProvider: core.PublicProvider{ID: "credentials", Name: "Password", Type: core.ProviderTypeCredentials}},
		{PublicProvider: core.PublicProvider{ID: "github", Name: "GitHub", Type: core.ProviderTypeOAuth}},
	}
	var sb strings.Builder

	// Act
	err := Render(&sb, &core.Page{Kind: core.PageSignIn, Providers: providers})

	// Assert
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := sb.String()
	if strings.Index(html, "Sign in with GitHub") > strings.Index(html, "Sign in with Password") {
		t.Error("OAuth provider rendered after credentials")
	}
	if providers[0].ID != "credentials" {
		t.Error("caller's providers were reordered")
	}
}

func TestRender_UnknownKind(t *testing.T) {
	var sb strings.Builder
	if err := Render(&sb, &core.Page{Kind: "nope"}); err == nil {
		t.Error("expected an error for an unknown page")
	}
}
