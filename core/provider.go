package core

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ProviderType string

const (
	ProviderTypeOAuth       ProviderType = "oauth"
	ProviderTypeEmail       ProviderType = "email"
	ProviderTypeCredentials ProviderType = "credentials"
)

// Provider is a closed set: *OAuthProvider, *EmailProvider and
// *CredentialsProvider. Call sites switch on the concrete type.
type Provider interface {
	Info() ProviderInfo
	isProvider()
}

// ProviderInfo is the part every provider shares. Empty SignInURL and
// CallbackURL are derived from the base URL per request.
type ProviderInfo struct {
	ID          string
	Name        string
	Type        ProviderType
	SignInURL   string
	CallbackURL string
}

// PublicProvider is what the providers endpoint exposes.
type PublicProvider struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        ProviderType `json:"type"`
	SignInURL   string       `json:"signinUrl"`
	CallbackURL string       `json:"callbackUrl"`
}

func (i ProviderInfo) Public() PublicProvider {
	return PublicProvider{
		ID:          i.ID,
		Name:        i.Name,
		Type:        i.Type,
		SignInURL:   i.SignInURL,
		CallbackURL: i.CallbackURL,
	}
}

// ============================================
// OAUTH
// ============================================

type Check string

const (
	CheckPKCE  Check = "pkce"
	CheckState Check = "state"
	CheckNone  Check = "none"
)

// ProviderEndpoint is a provider URL plus fixed query parameters.
type ProviderEndpoint struct {
	URL    string
	Params url.Values
}

type TokenRequestParams struct {
	Provider     *OAuthProvider
	Code         string
	CodeVerifier string
	Client       *http.Client
}

type TokenEndpoint struct {
	ProviderEndpoint
	// Request replaces the standard code exchange when set.
	Request func(ctx context.Context, p TokenRequestParams) (*TokenSet, error)
}

type UserinfoRequestParams struct {
	Provider *OAuthProvider
	Tokens   *TokenSet
	Client   *http.Client
}

type UserinfoEndpoint struct {
	ProviderEndpoint
	// Request replaces the standard bearer GET when set.
	Request func(ctx context.Context, p UserinfoRequestParams) (map[string]any, error)
}

// ProfileFunc maps a raw provider profile into a Profile. Returning a nil
// Profile or an empty ID is treated as a cancelled sign-in.
type ProfileFunc func(profile map[string]any, tokens *TokenSet) (*Profile, error)

const DefaultOAuthTimeout = 3500 * time.Millisecond

type OAuthProvider struct {
	ID      string
	Name    string
	Version string // "2.0" when empty; anything starting with "1." selects OAuth 1.0a

	ClientID     string
	ClientSecret string

	Authorization ProviderEndpoint
	Token         TokenEndpoint
	Userinfo      UserinfoEndpoint

	// OAuth 1.0a temporary credentials endpoint
	RequestTokenURL string

	// OIDC
	Issuer    string
	WellKnown string
	IDToken   bool

	Checks      []Check
	Profile     ProfileFunc
	HTTPTimeout time.Duration

	// AllowDangerousEmailAccountLinking links a new identity to an existing
	// user with the same email instead of rejecting the sign-in. Only safe
	// for providers that verify email ownership.
	AllowDangerousEmailAccountLinking bool

	SignInURL   string
	CallbackURL string
}

func (p *OAuthProvider) Info() ProviderInfo {
	return ProviderInfo{
		ID:          p.ID,
		Name:        p.Name,
		Type:        ProviderTypeOAuth,
		SignInURL:   p.SignInURL,
		CallbackURL: p.CallbackURL,
	}
}

func (*OAuthProvider) isProvider() {}

// IsOAuth1 reports whether the provider speaks OAuth 1.0a.
func (p *OAuthProvider) IsOAuth1() bool {
	return strings.HasPrefix(p.Version, "1.")
}

func (p *OAuthProvider) HasCheck(c Check) bool {
	for _, have := range p.Checks {
		if have == c {
			return true
		}
	}
	return false
}

// ============================================
// EMAIL
// ============================================

type VerificationRequest struct {
	Identifier string
	URL        string
	Token      string
	Expires    time.Time
	Provider   *EmailProvider
}

type EmailProvider struct {
	ID     string
	Name   string
	Server string
	From   string
	MaxAge time.Duration

	SendVerificationRequest   func(ctx context.Context, req VerificationRequest) error
	GenerateVerificationToken func() (string, error)
	// NormalizeIdentifier defaults to trimming and lower-casing the address.
	NormalizeIdentifier func(identifier string) (string, error)

	SignInURL   string
	CallbackURL string
}

func (p *EmailProvider) Info() ProviderInfo {
	return ProviderInfo{
		ID:          p.ID,
		Name:        p.Name,
		Type:        ProviderTypeEmail,
		SignInURL:   p.SignInURL,
		CallbackURL: p.CallbackURL,
	}
}

func (*EmailProvider) isProvider() {}

// ============================================
// CREDENTIALS
// ============================================

type CredentialInput struct {
	Label       string `json:"label,omitempty"`
	Type        string `json:"type,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// AuthorizeFunc validates submitted credentials. A nil user or an error both
// mean the sign-in is rejected.
type AuthorizeFunc func(ctx context.Context, credentials map[string]string, req *Request) (*User, error)

type CredentialsProvider struct {
	ID          string
	Name        string
	Credentials map[string]CredentialInput
	Authorize   AuthorizeFunc

	SignInURL   string
	CallbackURL string
}

func (p *CredentialsProvider) Info() ProviderInfo {
	return ProviderInfo{
		ID:          p.ID,
		Name:        p.Name,
		Type:        ProviderTypeCredentials,
		SignInURL:   p.SignInURL,
		CallbackURL: p.CallbackURL,
	}
}

func (*CredentialsProvider) isProvider() {}
