package jwt

import (
	"context"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/cookie"
)

type GetTokenParams struct {
	Secret string

	// CookieName defaults to the non-secure session cookie name.
	CookieName string

	// Decode defaults to Decode.
	Decode func(ctx context.Context, p core.JWTDecodeParams) (core.JWT, error)
}

// GetToken reads the session token from req (bearer header first, then the
// possibly chunked session cookie) and decodes it. It returns nil when there
// is no valid token.
func GetToken(ctx context.Context, req *core.Request, p GetTokenParams) core.JWT {
	name := p.CookieName
	if name == "" {
		name = core.DefaultCookies(false).SessionToken.Name
	}
	decode := p.Decode
	if decode == nil {
		decode = Decode
	}

	raw := cookie.NewStore(core.CookieOption{Name: name}, req).Value()
	if raw == "" {
		return nil
	}
	token, err := decode(ctx, core.JWTDecodeParams{Token: raw, Secret: p.Secret})
	if err != nil {
		return nil
	}
	return token
}
