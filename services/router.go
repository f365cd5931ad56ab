// Package services turns a core.Request into a core.Response: it resolves
// the per-request options and dispatches each action to its route.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/metrics"
	"github.com/lborres/bantay/services/csrf"
)

const tracerName = "github.com/lborres/bantay"

var ErrMissingURL = errors.New("no base URL configured and none derivable from the request")

// Router holds the read-only configuration shared by every request.
type Router struct {
	base    core.Options
	metrics *metrics.Collector
	tracer  trace.Tracer
	noURL   sync.Once
}

// NewRouter takes options with defaults already applied. base.URL may be
// nil, in which case it is derived from each request's origin.
func NewRouter(base core.Options, m *metrics.Collector, tp trace.TracerProvider) *Router {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if base.Logger == nil {
		base.Logger = core.NewLogger(nil)
	}
	return &Router{base: base, metrics: m, tracer: tp.Tracer(tracerName)}
}

// Handle never returns a nil Response. A non-nil error reports a failure
// that is already reflected in the Response, for the transport to log.
func (r *Router) Handle(ctx context.Context, req *core.Request) (*core.Response, error) {
	ctx, span := r.tracer.Start(ctx, "bantay."+string(req.Action),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("bantay.action", string(req.Action)),
			attribute.String("bantay.method", req.Method),
			attribute.String("bantay.provider", req.ProviderID),
		),
	)
	defer span.End()
	r.metrics.RecordRequest(string(req.Action), req.Method)

	opts, cookies, err := r.init(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordError(string(core.CodeConfiguration))
		return r.configurationError(req, err), err
	}

	res := r.dispatch(ctx, opts, req)
	res.Cookies = append(cookies, res.Cookies...)
	if res.Redirect != "" && req.Body.Get("json") == "true" {
		res.JSONRedirect = true
	}
	if code := errorCodeIn(res.Redirect); code != "" {
		r.metrics.RecordError(code)
		span.SetAttributes(attribute.String("bantay.error", code))
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// init resolves the per-request options: base URL, provider, CSRF token
// and callback URL. The returned cookies must be attached to whatever
// response the route produces.
func (r *Router) init(ctx context.Context, req *core.Request) (*core.Options, []core.Cookie, error) {
	opts := r.base
	opts.Action = req.Action

	if opts.URL == nil {
		u, err := url.Parse(req.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, nil, &core.ConfigurationError{Err: ErrMissingURL}
		}
		r.noURL.Do(func() {
			opts.Logger.Warn("NO_URL", zap.String("origin", u.Scheme+"://"+u.Host))
		})
		opts.URL = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: opts.BasePath}
	}

	if req.ProviderID != "" {
		opts.Provider = opts.FindProvider(req.ProviderID)
	}

	var cookies []core.Cookie
	token, csrfCookie, err := csrf.FromRequest(&opts, req)
	if err != nil {
		return nil, nil, fmt.Errorf("csrf: %w", err)
	}
	opts.CSRFToken = token.Token
	opts.CSRFTokenVerified = token.Verified
	if csrfCookie != nil {
		cookies = append(cookies, *csrfCookie)
	}

	callbackURL, cbCookie := r.callbackURL(ctx, &opts, req)
	opts.CallbackURL = callbackURL
	if cbCookie != nil {
		cookies = append(cookies, *cbCookie)
	}

	return &opts, cookies, nil
}

// callbackURL picks the post-sign-in destination from the request, then
// the callback-url cookie, then the site origin, and runs it through the
// Redirect callback.
func (r *Router) callbackURL(ctx context.Context, opts *core.Options, req *core.Request) (string, *core.Cookie) {
	fromCookie := req.Cookie(opts.Cookies.CallbackURL.Name)
	candidate := req.Param("callbackUrl")
	if candidate == "" {
		candidate = fromCookie
	}

	callbackURL := opts.Origin()
	if candidate != "" {
		callbackURL = redirect(ctx, opts, candidate)
	}
	if callbackURL == fromCookie {
		return callbackURL, nil
	}
	return callbackURL, &core.Cookie{
		Name:    opts.Cookies.CallbackURL.Name,
		Value:   callbackURL,
		Options: opts.Cookies.CallbackURL.Options,
	}
}

// redirect validates target with the Redirect callback. A failing callback
// falls back to the site origin.
func redirect(ctx context.Context, opts *core.Options, target string) string {
	params := core.RedirectParams{URL: target, BaseURL: opts.Origin()}
	if opts.Callbacks.Redirect == nil {
		return DefaultRedirect(params)
	}
	out, err := opts.Callbacks.Redirect(ctx, params)
	if err != nil {
		opts.Logger.Error("REDIRECT_CALLBACK_ERROR", err)
		return params.BaseURL
	}
	return out
}

// DefaultRedirect allows relative paths and URLs on the base origin.
// Anything else is replaced by the base origin.
func DefaultRedirect(p core.RedirectParams) string {
	if strings.HasPrefix(p.URL, "/") && !strings.HasPrefix(p.URL, "//") {
		return p.BaseURL + p.URL
	}
	u, err := url.Parse(p.URL)
	if err == nil && u.Scheme != "" && u.Scheme+"://"+u.Host == p.BaseURL {
		return p.URL
	}
	return p.BaseURL
}

func (r *Router) dispatch(ctx context.Context, opts *core.Options, req *core.Request) *core.Response {
	if _, ok := core.LookupEndpoint(req.Action, req.Method); !ok {
		return notSupported(req)
	}

	switch req.Method {
	case http.MethodGet:
		switch req.Action {
		case core.ActionProviders:
			return providers(opts)
		case core.ActionSession:
			return r.session(ctx, opts, req)
		case core.ActionCSRF:
			return &core.Response{Status: http.StatusOK, Body: map[string]string{"csrfToken": opts.CSRFToken}}
		case core.ActionSignIn:
			return signInPage(opts, req)
		case core.ActionSignOut:
			return signOutPage(opts)
		case core.ActionVerifyRequest:
			return verifyRequestPage(opts)
		case core.ActionError:
			return errorPage(opts, req)
		case core.ActionCallback:
			if opts.Provider != nil {
				return r.callback(ctx, opts, req)
			}
		}

	case http.MethodPost:
		switch req.Action {
		case core.ActionSignIn:
			if opts.Provider != nil && opts.CSRFTokenVerified {
				return r.signIn(ctx, opts, req)
			}
			return &core.Response{Redirect: opts.ActionURL(core.ActionSignIn, url.Values{"csrf": {"true"}})}
		case core.ActionSignOut:
			if opts.CSRFTokenVerified {
				return r.signOut(ctx, opts, req)
			}
			return &core.Response{Redirect: opts.ActionURL(core.ActionSignOut, url.Values{"csrf": {"true"}})}
		case core.ActionCallback:
			if opts.Provider == nil {
				break
			}
			if _, ok := opts.Provider.(*core.CredentialsProvider); ok && !opts.CSRFTokenVerified {
				return &core.Response{Redirect: opts.ActionURL(core.ActionSignIn, url.Values{"csrf": {"true"}})}
			}
			return r.callback(ctx, opts, req)
		case core.ActionLog:
			return clientLog(opts, req)
		}
	}

	return notSupported(req)
}

func notSupported(req *core.Request) *core.Response {
	return &core.Response{
		Status: http.StatusBadRequest,
		Body: map[string]string{
			"message": fmt.Sprintf("action %q with HTTP %s is not supported", req.Action, req.Method),
		},
	}
}

// configurationError hides the cause from the client: pages go to the
// Configuration error, API calls get a generic 500.
func (r *Router) configurationError(req *core.Request, err error) *core.Response {
	r.base.Logger.Error("CONFIGURATION_ERROR", err)

	isPage := req.Method == http.MethodGet && (req.Action == core.ActionSignIn ||
		req.Action == core.ActionSignOut || req.Action == core.ActionError ||
		req.Action == core.ActionVerifyRequest)
	if !isPage {
		return &core.Response{
			Status: http.StatusInternalServerError,
			Body:   map[string]string{"message": "There is a problem with the server configuration. Check the server logs for more information."},
		}
	}
	if r.base.Pages.Error != "" {
		return &core.Response{Redirect: core.AppendQuery(r.base.Pages.Error, url.Values{"error": {string(core.CodeConfiguration)}})}
	}
	return &core.Response{
		Status: http.StatusInternalServerError,
		Page:   &core.Page{Kind: core.PageError, Error: core.CodeConfiguration},
	}
}

// errorCodeIn returns the ?error= value of an error redirect.
func errorCodeIn(redirect string) string {
	if redirect == "" {
		return ""
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return ""
	}
	return u.Query().Get("error")
}

// SignInErrorURL is where a protected route sends an anonymous user.
func (r *Router) SignInErrorURL(req *core.Request, callbackURL string) (string, error) {
	opts, _, err := r.init(context.Background(), req)
	if err != nil {
		return "", err
	}
	if callbackURL == "" {
		callbackURL = opts.CallbackURL
	}
	return opts.SignInURL(url.Values{
		"error":       {string(core.CodeSessionRequired)},
		"callbackUrl": {callbackURL},
	}), nil
}
