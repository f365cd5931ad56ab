package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services/csrf"
)

// sealCookie stores value sealed with the session codec so it is opaque to
// the browser. It lives for PKCECookieMaxAge.
func sealCookie(ctx context.Context, opts *core.Options, option core.CookieOption, value string) (*core.Cookie, error) {
	sealed, err := opts.JWT.Encode(ctx, core.JWTEncodeParams{
		Token:  core.JWT{"value": value},
		Secret: opts.Secret,
		MaxAge: core.PKCECookieMaxAge,
	})
	if err != nil {
		return nil, err
	}
	cookieOpts := option.Options
	cookieOpts.Expires = opts.NowTime().Add(core.PKCECookieMaxAge)
	return &core.Cookie{Name: option.Name, Value: sealed, Options: cookieOpts}, nil
}

// openCookie reads a sealed value back and returns the cookie that clears
// it. missing is returned when the cookie is absent or empty.
func openCookie(ctx context.Context, opts *core.Options, req *core.Request, option core.CookieOption, missing error) (string, core.Cookie, error) {
	clearCookie := core.Expired(option.Name, option.Options)
	raw := req.Cookie(option.Name)
	if raw == "" {
		return "", clearCookie, missing
	}
	token, err := opts.JWT.Decode(ctx, core.JWTDecodeParams{Token: raw, Secret: opts.Secret})
	if err != nil {
		return "", clearCookie, err
	}
	value, _ := token["value"].(string)
	if value == "" {
		return "", clearCookie, missing
	}
	return value, clearCookie, nil
}

func createPKCECookie(ctx context.Context, opts *core.Options, verifier string) (*core.Cookie, error) {
	c, err := sealCookie(ctx, opts, opts.Cookies.PKCECodeVerifier, verifier)
	if err != nil {
		return nil, fmt.Errorf("encode pkce verifier: %w", err)
	}
	return c, nil
}

func usePKCECookie(ctx context.Context, opts *core.Options, req *core.Request) (string, core.Cookie, error) {
	verifier, clearCookie, err := openCookie(ctx, opts, req, opts.Cookies.PKCECodeVerifier, ErrMissingPKCECookie)
	if err != nil && !errors.Is(err, ErrMissingPKCECookie) {
		err = fmt.Errorf("decode pkce verifier: %w", err)
	}
	return verifier, clearCookie, err
}

// expectedState is derived from the request's CSRF token, so it needs no
// cookie of its own.
func expectedState(opts *core.Options) string {
	return csrf.StateFor(opts.CSRFToken)
}

func checkState(opts *core.Options, got string) error {
	if got == "" {
		return ErrMissingState
	}
	if got != expectedState(opts) {
		return ErrStateMismatch
	}
	return nil
}
