package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/lborres/bantay/core"
)

type oauth2Client struct {
	p      *core.OAuthProvider
	opts   *core.Options
	client *http.Client
}

func newOAuth2Client(p *core.OAuthProvider, opts *core.Options) *oauth2Client {
	return &oauth2Client{p: p, opts: opts, client: httpClient(p, opts)}
}

// endpoints are the provider URLs after discovery.
type endpoints struct {
	authorization string
	token         string
	userinfo      string
	issuer        string
}

func (c *oauth2Client) resolve(ctx context.Context) (*endpoints, error) {
	e := &endpoints{
		authorization: c.p.Authorization.URL,
		token:         c.p.Token.URL,
		userinfo:      c.p.Userinfo.URL,
		issuer:        c.p.Issuer,
	}
	needsDiscovery := e.authorization == "" || e.token == "" || (e.userinfo == "" && !c.p.IDToken)
	if c.p.WellKnown != "" && needsDiscovery {
		doc, err := discover(ctx, c.client, c.p.WellKnown)
		if err != nil {
			return nil, err
		}
		if e.authorization == "" {
			e.authorization = doc.AuthorizationEndpoint
		}
		if e.token == "" {
			e.token = doc.TokenEndpoint
		}
		if e.userinfo == "" {
			e.userinfo = doc.UserinfoEndpoint
		}
		if e.issuer == "" {
			e.issuer = doc.Issuer
		}
	}
	if e.authorization == "" || e.token == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEndpoint, c.p.ID)
	}
	return e, nil
}

func (c *oauth2Client) config(e *endpoints) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.p.ClientID,
		ClientSecret: c.p.ClientSecret,
		RedirectURL:  c.opts.PublicProvider(c.p).CallbackURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  e.authorization,
			TokenURL: e.token,
		},
	}
}

// AuthorizationURL merges the provider's fixed params with the request
// query and adds the state and PKCE challenge the provider asks for.
func (c *oauth2Client) AuthorizationURL(ctx context.Context, req *core.Request) (*AuthorizationResult, error) {
	e, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	for k, v := range c.p.Authorization.Params {
		params[k] = v
	}
	for k, v := range req.Query {
		params[k] = v
	}
	authOpts := make([]oauth2.AuthCodeOption, 0, len(params)+1)
	for k, v := range params {
		if len(v) > 0 {
			authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v[0]))
		}
	}

	result := &AuthorizationResult{}

	state := ""
	if c.p.HasCheck(core.CheckState) {
		state = expectedState(c.opts)
	}
	if c.p.HasCheck(core.CheckPKCE) {
		verifier := oauth2.GenerateVerifier()
		cookie, err := createPKCECookie(ctx, c.opts, verifier)
		if err != nil {
			return nil, err
		}
		result.Cookies = append(result.Cookies, *cookie)
		authOpts = append(authOpts, oauth2.S256ChallengeOption(verifier))
	}

	result.URL = c.config(e).AuthCodeURL(state, authOpts...)
	return result, nil
}

// Callback verifies state and PKCE, exchanges the code and loads the
// profile.
func (c *oauth2Client) Callback(ctx context.Context, req *core.Request) (*CallbackResult, error) {
	params := callbackParams(req)
	result := &CallbackResult{}

	var verifier string
	if c.p.HasCheck(core.CheckPKCE) {
		v, clearCookie, err := usePKCECookie(ctx, c.opts, req)
		result.Cookies = append(result.Cookies, clearCookie)
		if err != nil {
			return result, err
		}
		verifier = v
	}
	if c.p.HasCheck(core.CheckState) {
		if err := checkState(c.opts, params["state"]); err != nil {
			return result, err
		}
	}
	if code := params["error"]; code != "" {
		return result, &ProviderError{Code: code, Description: params["error_description"]}
	}
	code := params["code"]
	if code == "" {
		return result, ErrMissingCode
	}

	e, err := c.resolve(ctx)
	if err != nil {
		return result, err
	}

	tokens, err := c.exchange(ctx, e, code, verifier)
	if err != nil {
		return result, err
	}
	if v := params["session_state"]; v != "" && tokens.SessionState == "" {
		tokens.SessionState = v
	}

	var raw map[string]any
	if c.p.IDToken {
		raw, err = parseIDToken(tokens.IDToken, e.issuer, c.p.ClientID, c.opts.NowTime())
	} else {
		raw, err = c.fetchProfile(ctx, e, tokens)
	}
	if err != nil {
		return result, err
	}

	result.RawProfile = raw
	result.Profile, result.Account = normalize(c.opts, c.p, raw, tokens)
	return result, nil
}

func (c *oauth2Client) exchange(ctx context.Context, e *endpoints, code, verifier string) (*core.TokenSet, error) {
	if c.p.Token.Request != nil {
		return c.p.Token.Request(ctx, core.TokenRequestParams{
			Provider:     c.p,
			Code:         code,
			CodeVerifier: verifier,
			Client:       c.client,
		})
	}

	var exOpts []oauth2.AuthCodeOption
	if verifier != "" {
		exOpts = append(exOpts, oauth2.VerifierOption(verifier))
	}
	for k, v := range c.p.Token.Params {
		if len(v) > 0 {
			exOpts = append(exOpts, oauth2.SetAuthURLParam(k, v[0]))
		}
	}

	tok, err := c.config(e).Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.client), code, exOpts...)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tokenSetFrom(tok), nil
}

func tokenSetFrom(tok *oauth2.Token) *core.TokenSet {
	ts := &core.TokenSet{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Raw:          map[string]any{},
	}
	if !tok.Expiry.IsZero() {
		ts.ExpiresAt = tok.Expiry.Unix()
	}
	for _, key := range []string{"id_token", "scope", "session_state"} {
		if v, ok := tok.Extra(key).(string); ok {
			ts.Raw[key] = v
		}
	}
	ts.IDToken, _ = ts.Raw["id_token"].(string)
	ts.Scope, _ = ts.Raw["scope"].(string)
	ts.SessionState, _ = ts.Raw["session_state"].(string)
	return ts
}

// FetchProfile loads the userinfo document for tokens.
func (c *oauth2Client) FetchProfile(ctx context.Context, tokens *core.TokenSet) (map[string]any, error) {
	e, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.fetchProfile(ctx, e, tokens)
}

func (c *oauth2Client) fetchProfile(ctx context.Context, e *endpoints, tokens *core.TokenSet) (map[string]any, error) {
	if c.p.Userinfo.Request != nil {
		return c.p.Userinfo.Request(ctx, core.UserinfoRequestParams{Provider: c.p, Tokens: tokens, Client: c.client})
	}
	if e.userinfo == "" {
		return nil, fmt.Errorf("%w: userinfo for %s", ErrMissingEndpoint, c.p.ID)
	}

	target := core.AppendQuery(e.userinfo, c.p.Userinfo.Params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")

	return doJSON(c.client, req)
}

func doJSON(client *http.Client, req *http.Request) (map[string]any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Host, resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.URL.Host, err)
	}
	return out, nil
}
