package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ============================================
// SESSION
// ============================================

type SessionStrategy string

const (
	SessionStrategyJWT      SessionStrategy = "jwt"
	SessionStrategyDatabase SessionStrategy = "database"
)

const (
	DefaultSessionMaxAge    = 30 * 24 * time.Hour
	DefaultSessionUpdateAge = 24 * time.Hour
)

type SessionConfig struct {
	// Strategy defaults to database when an Adapter is configured and jwt
	// otherwise.
	Strategy SessionStrategy

	MaxAge time.Duration

	// UpdateAge throttles database writes: a session's expiry is only
	// extended once this long has passed since it was last extended.
	UpdateAge time.Duration

	GenerateSessionToken func() (string, error)
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge:    DefaultSessionMaxAge,
		UpdateAge: DefaultSessionUpdateAge,
	}
}

// ============================================
// JWT
// ============================================

type JWTEncodeParams struct {
	Token  JWT
	Secret string
	MaxAge time.Duration
}

type JWTDecodeParams struct {
	Token  string
	Secret string
}

type JWTConfig struct {
	// MaxAge defaults to Session.MaxAge.
	MaxAge time.Duration

	// Encode and Decode replace the built-in codec when set.
	Encode func(ctx context.Context, p JWTEncodeParams) (string, error)
	Decode func(ctx context.Context, p JWTDecodeParams) (JWT, error)
}

// ============================================
// PAGES
// ============================================

// Pages overrides the built-in pages with application URLs.
type Pages struct {
	SignIn        string
	SignOut       string
	Error         string
	VerifyRequest string
	NewUser       string
}

// ============================================
// CALLBACKS
// ============================================

type SignInParams struct {
	User    *User
	Account *Account
	Profile *Profile

	// VerificationRequest is true when the email provider is about to send
	// a magic link, false when the link is being redeemed.
	VerificationRequest bool

	Credentials map[string]string
}

// SignInDecision is the outcome of the SignIn callback. A non-empty
// Redirect sends the user there instead of completing sign-in.
type SignInDecision struct {
	Allowed  bool
	Redirect string
}

func Allow() SignInDecision { return SignInDecision{Allowed: true} }
func Deny() SignInDecision  { return SignInDecision{} }

func RedirectTo(url string) SignInDecision { return SignInDecision{Redirect: url} }

type RedirectParams struct {
	URL     string
	BaseURL string
}

type SessionParams struct {
	Session *SessionData
	User    *User // database strategy
	Token   JWT   // jwt strategy
}

type JWTParams struct {
	Token     JWT
	User      *User
	Account   *Account
	Profile   *Profile
	IsNewUser bool
}

// Callbacks let the application shape the flow. Every field is optional.
type Callbacks struct {
	// SignIn runs exactly once per flow before any adapter write.
	SignIn func(ctx context.Context, p SignInParams) (SignInDecision, error)

	// Redirect validates every callback URL. The default accepts relative
	// paths and URLs on the base URL's origin.
	Redirect func(ctx context.Context, p RedirectParams) (string, error)

	Session func(ctx context.Context, p SessionParams) (*SessionData, error)
	JWT     func(ctx context.Context, p JWTParams) (JWT, error)
}

// ============================================
// EVENTS
// ============================================

type SignInEvent struct {
	User      *User
	Account   *Account
	Profile   *Profile
	IsNewUser bool
}

type SignOutEvent struct {
	Session *Session // database strategy
	Token   JWT      // jwt strategy
}

type LinkAccountEvent struct {
	User    *User
	Account *Account
	Profile *Profile
}

type SessionEvent struct {
	Session *SessionData
	Token   JWT
}

// Events are fire-and-forget notifications. Errors are logged, never
// returned to the client.
type Events struct {
	SignIn      func(ctx context.Context, e SignInEvent) error
	SignOut     func(ctx context.Context, e SignOutEvent) error
	CreateUser  func(ctx context.Context, u *User) error
	UpdateUser  func(ctx context.Context, u *User) error
	LinkAccount func(ctx context.Context, e LinkAccountEvent) error
	Session     func(ctx context.Context, e SessionEvent) error
}

// ============================================
// CONFIG
// ============================================

type Config struct {
	Secret string

	// URL is the absolute base URL of the application (e.g.
	// https://example.com). When empty it is derived from the request.
	URL      string
	BasePath string

	Providers []Provider
	Adapter   Adapter

	Session   SessionConfig
	JWT       JWTConfig
	Pages     Pages
	Callbacks Callbacks
	Events    Events

	// Cookies overrides individual cookie names and options.
	Cookies          *CookiesOptions
	UseSecureCookies *bool

	Logger *zap.Logger
	Debug  bool

	// Registerer receives bantay's prometheus collectors. Nil disables
	// metrics.
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider

	// HTTPClient is the base client for provider calls; per-provider
	// timeouts are applied on top of it.
	HTTPClient *http.Client

	HTTP HTTPAdapter

	// Now is used for every expiry decision. Defaults to time.Now.
	Now func() time.Time
}
