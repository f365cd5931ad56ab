package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dghubble/oauth1"

	"github.com/lborres/bantay/core"
)

var (
	ErrMissingOAuth1Token  = errors.New("oauth_token or oauth_verifier missing from callback")
	ErrMissingOAuth1Secret = errors.New("oauth token secret cookie missing")
)

type oauth1Client struct {
	p      *core.OAuthProvider
	opts   *core.Options
	client *http.Client
	config *oauth1.Config
}

func newOAuth1Client(p *core.OAuthProvider, opts *core.Options) *oauth1Client {
	client := httpClient(p, opts)
	return &oauth1Client{
		p:      p,
		opts:   opts,
		client: client,
		config: &oauth1.Config{
			ConsumerKey:    p.ClientID,
			ConsumerSecret: p.ClientSecret,
			CallbackURL:    opts.PublicProvider(p).CallbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: p.RequestTokenURL,
				AuthorizeURL:    core.AppendQuery(p.Authorization.URL, p.Authorization.Params),
				AccessTokenURL:  p.Token.URL,
			},
			HTTPClient: client,
		},
	}
}

// AuthorizationURL obtains temporary credentials and sends the user to the
// provider with them. The request token secret rides along in a sealed
// cookie until the callback.
func (c *oauth1Client) AuthorizationURL(ctx context.Context, _ *core.Request) (*AuthorizationResult, error) {
	if c.p.RequestTokenURL == "" || c.p.Authorization.URL == "" || c.p.Token.URL == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, c.p.ID)
	}

	token, secret, err := c.config.RequestToken()
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	target, err := c.config.AuthorizationURL(token)
	if err != nil {
		return nil, err
	}
	cookie, err := sealCookie(ctx, c.opts, c.opts.Cookies.OAuthTokenSecret, secret)
	if err != nil {
		return nil, fmt.Errorf("encode token secret: %w", err)
	}
	return &AuthorizationResult{URL: target.String(), Cookies: []core.Cookie{*cookie}}, nil
}

// Callback trades the verifier for token credentials and loads the profile.
func (c *oauth1Client) Callback(ctx context.Context, req *core.Request) (*CallbackResult, error) {
	params := callbackParams(req)
	result := &CallbackResult{}

	secret, clearCookie, secretErr := openCookie(ctx, c.opts, req, c.opts.Cookies.OAuthTokenSecret, ErrMissingOAuth1Secret)
	result.Cookies = append(result.Cookies, clearCookie)

	if denied := params["denied"]; denied != "" {
		return result, &ProviderError{Code: "access_denied"}
	}
	token, verifier := params["oauth_token"], params["oauth_verifier"]
	if token == "" || verifier == "" {
		return result, ErrMissingOAuth1Token
	}
	if secretErr != nil {
		return result, secretErr
	}

	accessToken, accessSecret, err := c.config.AccessToken(token, secret, verifier)
	if err != nil {
		return result, fmt.Errorf("access token: %w", err)
	}
	tokens := &core.TokenSet{
		OAuthToken:       accessToken,
		OAuthTokenSecret: accessSecret,
		Raw:              map[string]any{},
	}

	raw, err := c.FetchProfile(ctx, tokens)
	if err != nil {
		return result, err
	}

	result.RawProfile = raw
	result.Profile, result.Account = normalize(c.opts, c.p, raw, tokens)
	return result, nil
}

// FetchProfile makes a signed GET to the userinfo URL. A custom userinfo
// request receives the signing client.
func (c *oauth1Client) FetchProfile(ctx context.Context, tokens *core.TokenSet) (map[string]any, error) {
	signed := c.config.Client(context.WithValue(ctx, oauth1.HTTPClient, c.client),
		oauth1.NewToken(tokens.OAuthToken, tokens.OAuthTokenSecret))
	signed.Timeout = c.client.Timeout

	if c.p.Userinfo.Request != nil {
		return c.p.Userinfo.Request(ctx, core.UserinfoRequestParams{Provider: c.p, Tokens: tokens, Client: signed})
	}
	if c.p.Userinfo.URL == "" {
		return nil, fmt.Errorf("%w: userinfo for %s", ErrMissingEndpoint, c.p.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, core.AppendQuery(c.p.Userinfo.URL, c.p.Userinfo.Params), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return doJSON(signed, req)
}
