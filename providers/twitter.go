package providers

import (
	"net/url"

	"github.com/lborres/bantay/core"
)

const twitterAPIURL = "https://api.twitter.com"

// Twitter signs users in with OAuth 1.0a. The app needs the "Request email
// from users" permission for Email to be filled.
func Twitter(consumerKey, consumerSecret string) *core.OAuthProvider {
	return &core.OAuthProvider{
		ID:              "twitter",
		Name:            "Twitter",
		Version:         "1.0A",
		ClientID:        consumerKey,
		ClientSecret:    consumerSecret,
		RequestTokenURL: twitterAPIURL + "/oauth/request_token",
		Authorization:   core.ProviderEndpoint{URL: twitterAPIURL + "/oauth/authenticate"},
		Token:           core.TokenEndpoint{ProviderEndpoint: core.ProviderEndpoint{URL: twitterAPIURL + "/oauth/access_token"}},
		Userinfo: core.UserinfoEndpoint{ProviderEndpoint: core.ProviderEndpoint{
			URL:    twitterAPIURL + "/1.1/account/verify_credentials.json",
			Params: url.Values{"include_email": {"true"}},
		}},
		Profile: twitterProfile,
	}
}

func twitterProfile(profile map[string]any, _ *core.TokenSet) (*core.Profile, error) {
	return &core.Profile{
		ID:    stringField(profile, "id_str"),
		Name:  stringField(profile, "name"),
		Email: stringField(profile, "email"),
		Image: stringField(profile, "profile_image_url_https"),
	}, nil
}
