package services

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

func providers(opts *core.Options) *core.Response {
	out := make(map[string]core.PublicProvider, len(opts.Providers))
	for _, p := range opts.Providers {
		pub := opts.PublicProvider(p)
		out[pub.ID] = pub
	}
	return &core.Response{Status: http.StatusOK, Body: out}
}

func pageProviders(opts *core.Options) []core.PageProvider {
	out := make([]core.PageProvider, 0, len(opts.Providers))
	for _, p := range opts.Providers {
		pp := core.PageProvider{PublicProvider: opts.PublicProvider(p)}
		if c, ok := p.(*core.CredentialsProvider); ok {
			pp.Credentials = c.Credentials
		}
		out = append(out, pp)
	}
	return out
}

func queryError(req *core.Request) string {
	if req.Error != "" {
		return req.Error
	}
	return req.Query.Get("error")
}

func signInPage(opts *core.Options, req *core.Request) *core.Response {
	code := queryError(req)
	if opts.Pages.SignIn != "" {
		q := url.Values{"callbackUrl": {opts.CallbackURL}}
		if code != "" {
			q.Set("error", code)
		}
		return &core.Response{Redirect: core.AppendQuery(opts.Pages.SignIn, q)}
	}
	return &core.Response{
		Status: http.StatusOK,
		Page: &core.Page{
			Kind:        core.PageSignIn,
			BaseURL:     opts.BaseURL(),
			CSRFToken:   opts.CSRFToken,
			CallbackURL: opts.CallbackURL,
			Error:       core.ErrorCode(code),
			Email:       req.Query.Get("email"),
			Providers:   pageProviders(opts),
		},
	}
}

func signOutPage(opts *core.Options) *core.Response {
	if opts.Pages.SignOut != "" {
		return &core.Response{Redirect: opts.Pages.SignOut}
	}
	return &core.Response{
		Status: http.StatusOK,
		Page: &core.Page{
			Kind:        core.PageSignOut,
			BaseURL:     opts.BaseURL(),
			CSRFToken:   opts.CSRFToken,
			CallbackURL: opts.CallbackURL,
		},
	}
}

func verifyRequestPage(opts *core.Options) *core.Response {
	if opts.Pages.VerifyRequest != "" {
		return &core.Response{Redirect: opts.Pages.VerifyRequest}
	}
	return &core.Response{
		Status: http.StatusOK,
		Page: &core.Page{
			Kind:    core.PageVerifyRequest,
			BaseURL: opts.BaseURL(),
			Host:    opts.URL.Host,
		},
	}
}

// errorStatus is the status the built-in error page is served with.
func errorStatus(code core.ErrorCode) int {
	switch code {
	case core.CodeConfiguration:
		return http.StatusInternalServerError
	case core.CodeAccessDenied, core.CodeVerification:
		return http.StatusForbidden
	default:
		return http.StatusOK
	}
}

// errorPage sends sign-in errors back to the sign-in page and everything
// else to the custom or built-in error page.
func errorPage(opts *core.Options, req *core.Request) *core.Response {
	code := core.ErrorCode(queryError(req))
	if code == "" {
		code = core.CodeDefault
	}

	if core.SignInErrorCodes[code] {
		return &core.Response{Redirect: opts.ActionURL(core.ActionSignIn, url.Values{"error": {string(code)}})}
	}
	if opts.Pages.Error != "" {
		return &core.Response{Redirect: core.AppendQuery(opts.Pages.Error, url.Values{"error": {string(code)}})}
	}
	return &core.Response{
		Status: errorStatus(code),
		Page: &core.Page{
			Kind:    core.PageError,
			BaseURL: opts.BaseURL(),
			Error:   code,
			Host:    opts.URL.Host,
		},
	}
}

// clientLog records a line sent by a browser client. It always succeeds.
func clientLog(opts *core.Options, req *core.Request) *core.Response {
	fields := []zap.Field{
		zap.String("clientCode", req.Body.Get("code")),
		zap.String("message", req.Body.Get("message")),
	}
	switch req.Body.Get("level") {
	case "error":
		opts.Logger.Zap().Error("CLIENT_LOG", fields...)
	case "warn":
		opts.Logger.Zap().Warn("CLIENT_LOG", fields...)
	default:
		opts.Logger.Zap().Debug("CLIENT_LOG", fields...)
	}
	return &core.Response{Status: http.StatusOK}
}
