// Package oauth talks to OAuth 1.0a and OAuth 2 / OpenID Connect
// providers: it builds authorization URLs, verifies callbacks and turns the
// provider's answer into a normalized profile and account.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

var (
	ErrMissingCode       = errors.New("authorization code missing from callback")
	ErrStateMismatch     = errors.New("state mismatch")
	ErrMissingState      = errors.New("state missing from callback")
	ErrMissingPKCECookie = errors.New("pkce code_verifier cookie missing")
	ErrMissingEndpoint   = errors.New("provider endpoint not configured")
	ErrInvalidIDToken    = errors.New("invalid id_token")
)

// ProviderError is an error the provider reported in the callback itself
// (e.g. ?error=access_denied).
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "provider returned error: " + e.Code
	}
	return fmt.Sprintf("provider returned error: %s (%s)", e.Code, e.Description)
}

type AuthorizationResult struct {
	URL     string
	Cookies []core.Cookie
}

// CallbackResult carries the verified identity. A nil Profile with a nil
// error means the flow could not be completed, most likely because the
// user cancelled at the provider.
type CallbackResult struct {
	Profile    *core.Profile
	Account    *core.Account
	RawProfile map[string]any
	Cookies    []core.Cookie
}

// AuthorizationClient is one provider protocol.
type AuthorizationClient interface {
	AuthorizationURL(ctx context.Context, req *core.Request) (*AuthorizationResult, error)
	Callback(ctx context.Context, req *core.Request) (*CallbackResult, error)
	FetchProfile(ctx context.Context, tokens *core.TokenSet) (map[string]any, error)
}

// NewClient picks the protocol from the provider's version.
func NewClient(p *core.OAuthProvider, opts *core.Options) AuthorizationClient {
	if p.IsOAuth1() {
		return newOAuth1Client(p, opts)
	}
	return newOAuth2Client(p, opts)
}

// httpClient applies the provider timeout on top of the configured client.
func httpClient(p *core.OAuthProvider, opts *core.Options) *http.Client {
	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.Timeout = p.HTTPTimeout
	if c.Timeout <= 0 {
		c.Timeout = core.DefaultOAuthTimeout
	}
	return &c
}

// callbackParams returns the parameters the provider sent back: the query
// for redirects, the form body for response_mode=form_post.
func callbackParams(req *core.Request) map[string]string {
	src := req.Query
	if strings.EqualFold(req.Method, http.MethodPost) {
		src = req.Body
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// normalize maps the raw profile through the provider's Profile function.
// Mapping failures are logged and reported as a cancelled flow.
func normalize(opts *core.Options, p *core.OAuthProvider, raw map[string]any, tokens *core.TokenSet) (*core.Profile, *core.Account) {
	if raw == nil || p.Profile == nil {
		return nil, nil
	}
	profile, err := p.Profile(raw, tokens)
	if err != nil || profile == nil || profile.ID == "" {
		if err == nil {
			err = errors.New("profile id missing")
		}
		opts.Logger.Error("OAUTH_PARSE_PROFILE_ERROR", err, zap.String("providerId", p.ID))
		return nil, nil
	}
	out := *profile
	out.Email = strings.ToLower(out.Email)

	account := &core.Account{
		Type:              core.ProviderTypeOAuth,
		Provider:          p.ID,
		ProviderAccountID: out.ID,
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		IDToken:           tokens.IDToken,
		ExpiresAt:         tokens.ExpiresAt,
		TokenType:         tokens.TokenType,
		Scope:             tokens.Scope,
		SessionState:      tokens.SessionState,
		OAuthToken:        tokens.OAuthToken,
		OAuthTokenSecret:  tokens.OAuthTokenSecret,
	}
	return &out, account
}
