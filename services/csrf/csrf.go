// Package csrf implements the double-submit CSRF token. The cookie holds
// "token|sha256(token+secret)"; a POST is verified when the body echoes the
// token and the hash checks out.
package csrf

import (
	"strings"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

type Params struct {
	CookieValue string
	IsPost      bool
	BodyValue   string
	Secret      string
}

type Result struct {
	Token    string
	Verified bool

	// CookieValue is set only when a new token was minted and must be
	// written back.
	CookieValue string
}

// CreateToken trusts an existing valid cookie and otherwise mints a new
// token. Repeated calls with the same valid cookie return the same token.
func CreateToken(p Params) (*Result, error) {
	if p.CookieValue != "" {
		token, hash, ok := strings.Cut(p.CookieValue, "|")
		if ok && token != "" && crypto.Equal(hash, crypto.HashToken(token, p.Secret)) {
			verified := p.IsPost && p.BodyValue != "" && crypto.Equal(token, p.BodyValue)
			return &Result{Token: token, Verified: verified}, nil
		}
	}

	token, err := crypto.RandomHex(32)
	if err != nil {
		return nil, err
	}
	return &Result{
		Token:       token,
		CookieValue: token + "|" + crypto.HashToken(token, p.Secret),
	}, nil
}

// FromRequest runs CreateToken against req and returns the cookie to set,
// if any.
func FromRequest(opts *core.Options, req *core.Request) (*Result, *core.Cookie, error) {
	res, err := CreateToken(Params{
		CookieValue: req.Cookie(opts.Cookies.CSRFToken.Name),
		IsPost:      req.Method == "POST",
		BodyValue:   req.Body.Get("csrfToken"),
		Secret:      opts.Secret,
	})
	if err != nil {
		return nil, nil, err
	}
	if res.CookieValue == "" {
		return res, nil, nil
	}
	return res, &core.Cookie{
		Name:    opts.Cookies.CSRFToken.Name,
		Value:   res.CookieValue,
		Options: opts.Cookies.CSRFToken.Options,
	}, nil
}

// StateFor is the OAuth state derived from a CSRF token.
func StateFor(csrfToken string) string {
	return crypto.SHA256Hex(csrfToken)
}
