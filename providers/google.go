package providers

import (
	"net/url"

	"github.com/lborres/bantay/core"
)

const googleIssuer = "https://accounts.google.com"

// Google signs users in with Google OpenID Connect. Endpoints come from
// discovery and the profile is read from the id_token claims.
func Google(clientID, clientSecret string) *core.OAuthProvider {
	return &core.OAuthProvider{
		ID:           "google",
		Name:         "Google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Issuer:       googleIssuer,
		WellKnown:    googleIssuer + "/.well-known/openid-configuration",
		IDToken:      true,
		Authorization: core.ProviderEndpoint{
			Params: url.Values{"scope": {"openid email profile"}},
		},
		Checks:  []core.Check{core.CheckPKCE, core.CheckState},
		Profile: googleProfile,
	}
}

func googleProfile(claims map[string]any, _ *core.TokenSet) (*core.Profile, error) {
	return &core.Profile{
		ID:    stringField(claims, "sub"),
		Name:  stringField(claims, "name"),
		Email: stringField(claims, "email"),
		Image: stringField(claims, "picture"),
	}, nil
}
