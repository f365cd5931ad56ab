package core

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options is the configuration resolved for one request. The router builds
// it and hands it to every service; nothing in it is shared between
// requests except read-only values computed at startup.
type Options struct {
	Secret   string
	URL      *url.URL // origin + base path, no trailing slash
	BasePath string

	Action    Action
	Provider  Provider // nil unless the path names a configured provider
	Providers []Provider

	Adapter   Adapter // wrapped with WrapAdapter; nil for adapterless setups
	Session   SessionConfig
	JWT       JWTConfig
	Pages     Pages
	Callbacks Callbacks
	Events    Events
	Cookies   CookiesOptions

	Logger     *Logger
	HTTPClient *http.Client
	Now        func() time.Time

	CSRFToken         string
	CSRFTokenVerified bool
	CallbackURL       string
}

// BaseURL is the absolute URL the auth routes are mounted under.
func (o *Options) BaseURL() string {
	return strings.TrimSuffix(o.URL.String(), "/")
}

// Origin is scheme://host of BaseURL.
func (o *Options) Origin() string {
	return o.URL.Scheme + "://" + o.URL.Host
}

// ActionURL builds an absolute URL for an action with optional query values.
func (o *Options) ActionURL(action Action, query url.Values) string {
	u := o.BaseURL() + "/" + string(action)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// ErrorURL is where a failed flow sends the user. The error route decides
// between the sign-in page, a custom error page and the built-in one.
func (o *Options) ErrorURL(code ErrorCode, extra url.Values) string {
	q := url.Values{"error": {string(code)}}
	for k, v := range extra {
		q[k] = v
	}
	return o.ActionURL(ActionError, q)
}

// SignInURL is the sign-in page, custom or built-in, with query appended.
func (o *Options) SignInURL(query url.Values) string {
	if o.Pages.SignIn != "" {
		return appendQuery(o.Pages.SignIn, query)
	}
	return o.ActionURL(ActionSignIn, query)
}

// PublicProvider fills in the derived sign-in and callback URLs unless the
// provider overrides them.
func (o *Options) PublicProvider(p Provider) PublicProvider {
	pub := p.Info().Public()
	if pub.SignInURL == "" {
		pub.SignInURL = o.BaseURL() + "/" + string(ActionSignIn) + "/" + pub.ID
	}
	if pub.CallbackURL == "" {
		pub.CallbackURL = o.BaseURL() + "/" + string(ActionCallback) + "/" + pub.ID
	}
	return pub
}

// AppendQuery adds q to rawURL, which may already carry a query.
func AppendQuery(rawURL string, q url.Values) string {
	return appendQuery(rawURL, q)
}

func (o *Options) FindProvider(id string) Provider {
	for _, p := range o.Providers {
		if p.Info().ID == id {
			return p
		}
	}
	return nil
}

func (o *Options) NowTime() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// UseJWT reports whether sessions are stateless tokens.
func (o *Options) UseJWT() bool {
	return o.Session.Strategy != SessionStrategyDatabase
}

// EncodeJWT runs the configured encoder with the instance secret.
func (o *Options) EncodeJWT(ctx context.Context, token JWT) (string, error) {
	maxAge := o.JWT.MaxAge
	if maxAge == 0 {
		maxAge = o.Session.MaxAge
	}
	return o.JWT.Encode(ctx, JWTEncodeParams{Token: token, Secret: o.Secret, MaxAge: maxAge})
}

func (o *Options) DecodeJWT(ctx context.Context, token string) (JWT, error) {
	return o.JWT.Decode(ctx, JWTDecodeParams{Token: token, Secret: o.Secret})
}

// Emit runs an event handler. Failures are logged and swallowed.
func Emit[E any](ctx context.Context, o *Options, name string, fn func(context.Context, E) error, e E) {
	if fn == nil {
		return
	}
	if err := fn(ctx, e); err != nil {
		o.Logger.Error("EVENT_ERROR", err, zap.String("event", name))
	}
}

func appendQuery(rawURL string, q url.Values) string {
	if len(q) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + q.Encode()
}
