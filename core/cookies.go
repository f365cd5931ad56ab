package core

import (
	"net/http"
	"time"
)

const (
	cookiePrefix     = "next-auth."
	securePrefix     = "__Secure-"
	hostPrefix       = "__Host-"
	PKCECookieMaxAge = 15 * time.Minute
)

type CookieOption struct {
	Name    string
	Options CookieOptions
}

// CookiesOptions names every cookie bantay sets.
type CookiesOptions struct {
	SessionToken     CookieOption
	CallbackURL      CookieOption
	CSRFToken        CookieOption
	PKCECodeVerifier CookieOption
	// OAuthTokenSecret carries the OAuth 1.0a request token secret from
	// sign-in to callback.
	OAuthTokenSecret CookieOption
}

// DefaultCookies returns the standard cookie set. With useSecure the names
// gain the __Secure- prefix (__Host- for the CSRF cookie) and Secure is set.
func DefaultCookies(useSecure bool) CookiesOptions {
	prefix := ""
	if useSecure {
		prefix = securePrefix
	}
	csrfPrefix := ""
	if useSecure {
		csrfPrefix = hostPrefix
	}

	base := CookieOptions{
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		Secure:   useSecure,
	}
	pkce := base
	pkce.MaxAge = int(PKCECookieMaxAge / time.Second)

	return CookiesOptions{
		SessionToken:     CookieOption{Name: prefix + cookiePrefix + "session-token", Options: base},
		CallbackURL:      CookieOption{Name: prefix + cookiePrefix + "callback-url", Options: base},
		CSRFToken:        CookieOption{Name: csrfPrefix + cookiePrefix + "csrf-token", Options: base},
		PKCECodeVerifier: CookieOption{Name: prefix + cookiePrefix + "pkce.code_verifier", Options: pkce},
		OAuthTokenSecret: CookieOption{Name: prefix + cookiePrefix + "oauth.token_secret", Options: pkce},
	}
}

// Merge returns d with every non-empty field of override applied.
func (d CookiesOptions) Merge(override *CookiesOptions) CookiesOptions {
	if override == nil {
		return d
	}
	pick := func(def, o CookieOption) CookieOption {
		if o.Name == "" {
			return def
		}
		return o
	}
	return CookiesOptions{
		SessionToken:     pick(d.SessionToken, override.SessionToken),
		CallbackURL:      pick(d.CallbackURL, override.CallbackURL),
		CSRFToken:        pick(d.CSRFToken, override.CSRFToken),
		PKCECodeVerifier: pick(d.PKCECodeVerifier, override.PKCECodeVerifier),
		OAuthTokenSecret: pick(d.OAuthTokenSecret, override.OAuthTokenSecret),
	}
}

// Expired returns a cookie that deletes name.
func Expired(name string, opts CookieOptions) Cookie {
	opts.MaxAge = -1
	opts.Expires = time.Time{}
	return Cookie{Name: name, Value: "", Options: opts}
}
