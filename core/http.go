package core

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Action string

const (
	ActionProviders     Action = "providers"
	ActionSession       Action = "session"
	ActionCSRF          Action = "csrf"
	ActionSignIn        Action = "signin"
	ActionSignOut       Action = "signout"
	ActionCallback      Action = "callback"
	ActionVerifyRequest Action = "verify-request"
	ActionError         Action = "error"
	ActionLog           Action = "_log"
)

// Request is the transport-agnostic shape of an inbound auth request.
type Request struct {
	Method     string
	Action     Action
	ProviderID string
	Error      string

	// Origin is scheme://host of the incoming request, used when no base
	// URL is configured.
	Origin string

	Headers http.Header
	Cookies map[string]string
	Query   url.Values
	Body    url.Values
}

// Param reads a value from the body first, then the query.
func (r *Request) Param(key string) string {
	if r.Body != nil {
		if v := r.Body.Get(key); v != "" {
			return v
		}
	}
	if r.Query != nil {
		return r.Query.Get(key)
	}
	return ""
}

func (r *Request) Cookie(name string) string {
	if r.Cookies == nil {
		return ""
	}
	return r.Cookies[name]
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func (r *Request) BearerToken() string {
	if r.Headers == nil {
		return ""
	}
	h := r.Headers.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ParseActionPath splits "signin/github" into its action and provider id.
func ParseActionPath(path string) (Action, string) {
	path = strings.Trim(path, "/")
	action, providerID, _ := strings.Cut(path, "/")
	if i := strings.IndexByte(providerID, '/'); i >= 0 {
		providerID = providerID[:i]
	}
	return Action(action), providerID
}

// CookieOptions mirrors net/http semantics: MaxAge 0 means unset and a
// negative MaxAge deletes the cookie.
type CookieOptions struct {
	HTTPOnly bool
	SameSite http.SameSite
	Path     string
	Domain   string
	Secure   bool
	MaxAge   int
	Expires  time.Time
}

type Cookie struct {
	Name    string
	Value   string
	Options CookieOptions
}

// HTTPCookie converts c for writing with net/http.
func (c Cookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Options.Path,
		Domain:   c.Options.Domain,
		MaxAge:   c.Options.MaxAge,
		Expires:  c.Options.Expires,
		Secure:   c.Options.Secure,
		HttpOnly: c.Options.HTTPOnly,
		SameSite: c.Options.SameSite,
	}
}

type PageKind string

const (
	PageSignIn        PageKind = "signin"
	PageSignOut       PageKind = "signout"
	PageVerifyRequest PageKind = "verify-request"
	PageError         PageKind = "error"
)

// Page asks the transport to render one of the built-in pages.
type Page struct {
	Kind        PageKind
	BaseURL     string
	CSRFToken   string
	CallbackURL string
	Error       ErrorCode
	Email       string
	Providers   []PageProvider
	Host        string
}

// PageProvider is what the sign-in page needs to draw one provider.
type PageProvider struct {
	PublicProvider
	Credentials map[string]CredentialInput
}

// Response is what the core hands back for the transport to write.
// Exactly one of Body, Redirect and Page is meaningful.
type Response struct {
	Status   int
	Headers  http.Header
	Body     any
	Redirect string
	Cookies  []Cookie
	Page     *Page

	// JSONRedirect asks the transport to answer {"url": Redirect} instead of
	// a 302, for clients posting with json=true.
	JSONRedirect bool
}

func (r *Response) AddCookies(cookies ...Cookie) {
	r.Cookies = append(r.Cookies, cookies...)
}
