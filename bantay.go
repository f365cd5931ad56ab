// Package bantay is an authentication engine for Go web applications. It
// serves the sign-in, callback, session and sign-out routes for OAuth,
// magic-link email and credentials providers behind any HTTP framework.
package bantay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/metrics"
	sessionjwt "github.com/lborres/bantay/pkg/jwt"
	"github.com/lborres/bantay/services"
)

// interfaces
type (
	Adapter     = core.Adapter
	Provider    = core.Provider
	Handler     = core.Handler
	HTTPAdapter = core.HTTPAdapter
)

// structs
type (
	Config        = core.Config
	SessionConfig = core.SessionConfig
	JWTConfig     = core.JWTConfig
	Pages         = core.Pages
	Callbacks     = core.Callbacks
	Events        = core.Events

	OAuthProvider       = core.OAuthProvider
	EmailProvider       = core.EmailProvider
	CredentialsProvider = core.CredentialsProvider

	Request     = core.Request
	Response    = core.Response
	Cookie      = core.Cookie
	JWT         = core.JWT
	SessionData = core.SessionData
)

type (
	User              = core.User
	Account           = core.Account
	Session           = core.Session
	VerificationToken = core.VerificationToken
	Profile           = core.Profile
)

const (
	SessionStrategyJWT      = core.SessionStrategyJWT
	SessionStrategyDatabase = core.SessionStrategyDatabase
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
)

// Constructors & helpers (convenience re-exports)
var (
	Allow      = core.Allow
	Deny       = core.Deny
	RedirectTo = core.RedirectTo
)

var (
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
	ErrAdapterRequired     = core.ErrAdapterRequired
	ErrDatabaseAdapter     = core.ErrDatabaseAdapter
	ErrAuthorizeRequired   = core.ErrAuthorizeRequired
	ErrUnsupportedStrategy = core.ErrUnsupportedStrategy
	ErrInvalidProvider     = core.ErrInvalidProvider
	ErrDuplicateProvider   = core.ErrDuplicateProvider
	ErrInvalidURL          = core.ErrInvalidURL
)

var (
	ErrAccountNotLinked = core.ErrAccountNotLinked
	ErrVerification     = core.ErrVerification
	ErrSessionRequired  = core.ErrSessionRequired
)

// Bantay is one configured auth instance. It is safe for concurrent use.
type Bantay struct {
	router   *services.Router
	basePath string
	logger   *core.Logger
}

var _ core.Handler = (*Bantay)(nil)

// New validates config, applies defaults and, when config.HTTP is set,
// mounts the routes on it.
func New(config Config) (*Bantay, error) {
	opts, err := buildOptions(config)
	if err != nil {
		return nil, err
	}

	b := &Bantay{
		router:   services.NewRouter(*opts, metrics.NewCollector(config.Registerer), config.TracerProvider),
		basePath: opts.BasePath,
		logger:   opts.Logger,
	}

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func buildOptions(config Config) (*core.Options, error) {
	if config.Secret == "" {
		return nil, &core.ConfigurationError{Err: ErrSecretRequired}
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, &core.ConfigurationError{
			Err:    ErrSecretTooShort,
			Detail: fmt.Sprintf("minimum of %d characters", defaultSecretLen),
		}
	}

	logger := config.Logger
	if logger == nil {
		var err error
		if config.Debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	opts := &core.Options{
		Secret:     config.Secret,
		Logger:     core.NewLogger(logger),
		HTTPClient: config.HTTPClient,
		Now:        config.Now,
		Pages:      config.Pages,
		Callbacks:  config.Callbacks,
		Events:     config.Events,
	}

	basePath := strings.TrimSuffix(config.BasePath, "/")
	if config.URL != "" {
		u, err := url.Parse(config.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &core.ConfigurationError{Err: ErrInvalidURL, Detail: config.URL}
		}
		if basePath == "" && strings.Trim(u.Path, "/") != "" {
			basePath = "/" + strings.Trim(u.Path, "/")
		}
		if basePath == "" {
			basePath = defaultBasePath
		}
		opts.URL = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: basePath}
	}
	if basePath == "" {
		basePath = defaultBasePath
	}
	opts.BasePath = basePath

	providers, err := validateProviders(config)
	if err != nil {
		return nil, err
	}
	opts.Providers = providers

	opts.Session, err = sessionConfig(config, providers)
	if err != nil {
		return nil, err
	}

	if config.Adapter != nil {
		opts.Adapter = core.WrapAdapter(config.Adapter, opts.Logger)
	}

	opts.JWT = config.JWT
	if opts.JWT.Encode == nil || opts.JWT.Decode == nil {
		codec := sessionjwt.NewCodec(sessionjwt.WithClock(opts.NowTime))
		if opts.JWT.Encode == nil {
			opts.JWT.Encode = codec.Encode
		}
		if opts.JWT.Decode == nil {
			opts.JWT.Decode = codec.Decode
		}
	}

	useSecure := opts.URL != nil && opts.URL.Scheme == "https"
	if config.UseSecureCookies != nil {
		useSecure = *config.UseSecureCookies
	}
	opts.Cookies = core.DefaultCookies(useSecure).Merge(config.Cookies)

	return opts, nil
}

// validateProviders rejects provider sets that cannot work and returns a
// copy with defaults applied. The caller's providers are never modified.
func validateProviders(config Config) ([]core.Provider, error) {
	seen := make(map[string]bool, len(config.Providers))
	out := make([]core.Provider, 0, len(config.Providers))

	for _, p := range config.Providers {
		id := p.Info().ID
		if id == "" {
			return nil, &core.ConfigurationError{Err: ErrInvalidProvider, Detail: "provider without id"}
		}
		if seen[id] {
			return nil, &core.ConfigurationError{Err: ErrDuplicateProvider, Detail: id}
		}
		seen[id] = true

		switch p := p.(type) {
		case *core.OAuthProvider:
			if p.ClientID == "" || p.Profile == nil {
				return nil, &core.ConfigurationError{Err: ErrInvalidProvider, Detail: id + ": client id and profile are required"}
			}
			if p.Authorization.URL == "" && p.WellKnown == "" {
				return nil, &core.ConfigurationError{Err: ErrInvalidProvider, Detail: id + ": authorization url or well-known url is required"}
			}
			cp := *p
			if len(cp.Checks) == 0 && !cp.IsOAuth1() {
				cp.Checks = []core.Check{core.CheckState}
			}
			out = append(out, &cp)
		case *core.EmailProvider:
			if config.Adapter == nil {
				return nil, &core.ConfigurationError{Err: ErrAdapterRequired, Detail: id}
			}
			if p.SendVerificationRequest == nil {
				return nil, &core.ConfigurationError{Err: ErrInvalidProvider, Detail: id + ": send function is required"}
			}
			cp := *p
			out = append(out, &cp)
		case *core.CredentialsProvider:
			if p.Authorize == nil {
				return nil, &core.ConfigurationError{Err: ErrAuthorizeRequired, Detail: id}
			}
			cp := *p
			out = append(out, &cp)
		default:
			return nil, &core.ConfigurationError{Err: ErrInvalidProvider, Detail: id}
		}
	}
	return out, nil
}

func sessionConfig(config Config, providers []core.Provider) (core.SessionConfig, error) {
	s := config.Session
	defaults := core.DefaultSessionConfig()
	if s.MaxAge <= 0 {
		s.MaxAge = defaults.MaxAge
	}
	if s.UpdateAge < 0 {
		s.UpdateAge = 0
	} else if s.UpdateAge == 0 {
		s.UpdateAge = defaults.UpdateAge
	}

	switch s.Strategy {
	case "":
		s.Strategy = core.SessionStrategyJWT
		if config.Adapter != nil {
			s.Strategy = core.SessionStrategyDatabase
		}
	case core.SessionStrategyJWT, core.SessionStrategyDatabase:
	default:
		return s, &core.ConfigurationError{Err: core.ErrUnknownSessionConfig, Detail: string(s.Strategy)}
	}

	if s.Strategy == core.SessionStrategyDatabase {
		if config.Adapter == nil {
			return s, &core.ConfigurationError{Err: ErrDatabaseAdapter}
		}
		credentialsOnly := len(providers) > 0
		for _, p := range providers {
			if _, ok := p.(*core.CredentialsProvider); !ok {
				credentialsOnly = false
			}
		}
		if credentialsOnly {
			return s, &core.ConfigurationError{Err: ErrUnsupportedStrategy}
		}
	}
	return s, nil
}

// ============================================
// core.Handler
// ============================================

func (b *Bantay) Handle(ctx context.Context, req *core.Request) (*core.Response, error) {
	return b.router.Handle(ctx, req)
}

func (b *Bantay) GetServerSession(ctx context.Context, req *core.Request) (*core.SessionData, []core.Cookie, error) {
	return b.router.GetServerSession(ctx, req)
}

// SessionRequired redirects an anonymous user to sign in, returning to
// callbackURL afterwards.
func (b *Bantay) SessionRequired(req *core.Request, callbackURL string) *core.Response {
	target, err := b.router.SignInErrorURL(req, callbackURL)
	if err != nil {
		b.logger.Error("CONFIGURATION_ERROR", err)
		return &core.Response{
			Status: http.StatusInternalServerError,
			Body:   map[string]string{"message": "There is a problem with the server configuration. Check the server logs for more information."},
		}
	}
	return &core.Response{Status: http.StatusUnauthorized, Redirect: target}
}

func (b *Bantay) BasePath() string {
	return b.basePath
}

// Logger is the instance logger, for transports that log write failures.
func (b *Bantay) Logger() *zap.Logger {
	return b.logger.Zap()
}
