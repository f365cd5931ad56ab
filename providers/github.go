package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lborres/bantay/core"
)

const (
	githubAuthorizeURL = "https://github.com/login/oauth/authorize"
	githubTokenURL     = "https://github.com/login/oauth/access_token"
	githubAPIURL       = "https://api.github.com"
)

// GitHub signs users in with a GitHub OAuth app. When the public profile
// hides the email, the primary verified address is read from /user/emails.
func GitHub(clientID, clientSecret string) *core.OAuthProvider {
	return github(clientID, clientSecret, githubAPIURL)
}

func github(clientID, clientSecret, apiURL string) *core.OAuthProvider {
	return &core.OAuthProvider{
		ID:           "github",
		Name:         "GitHub",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Authorization: core.ProviderEndpoint{
			URL:    githubAuthorizeURL,
			Params: url.Values{"scope": {"read:user user:email"}},
		},
		Token: core.TokenEndpoint{ProviderEndpoint: core.ProviderEndpoint{URL: githubTokenURL}},
		Userinfo: core.UserinfoEndpoint{
			ProviderEndpoint: core.ProviderEndpoint{URL: apiURL + "/user"},
			Request: func(ctx context.Context, p core.UserinfoRequestParams) (map[string]any, error) {
				return githubUser(ctx, p, apiURL)
			},
		},
		Checks:  []core.Check{core.CheckState},
		Profile: githubProfile,
	}
}

func githubGet(ctx context.Context, client *http.Client, target, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "bantay")

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("github: GET %s: %s", target, res.Status)
	}
	return json.NewDecoder(res.Body).Decode(v)
}

func githubUser(ctx context.Context, p core.UserinfoRequestParams, apiURL string) (map[string]any, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	var profile map[string]any
	if err := githubGet(ctx, client, apiURL+"/user", p.Tokens.AccessToken, &profile); err != nil {
		return nil, err
	}
	if stringField(profile, "email") != "" {
		return profile, nil
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	// Without the user:email scope this fails; the profile is still usable.
	if err := githubGet(ctx, client, apiURL+"/user/emails", p.Tokens.AccessToken, &emails); err != nil {
		return profile, nil
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			profile["email"] = e.Email
			break
		}
	}
	return profile, nil
}

func githubProfile(profile map[string]any, _ *core.TokenSet) (*core.Profile, error) {
	return &core.Profile{
		ID:    stringField(profile, "id"),
		Name:  firstNonEmpty(stringField(profile, "name"), stringField(profile, "login")),
		Email: stringField(profile, "email"),
		Image: stringField(profile, "avatar_url"),
	}, nil
}
