package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/cookie"
	"github.com/lborres/bantay/services/callback"
	"github.com/lborres/bantay/services/email"
	"github.com/lborres/bantay/services/oauth"
)

// Sign-in outcomes recorded in metrics
const (
	outcomeSuccess = "success"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// signIn starts a provider flow. CSRF has already been verified.
func (r *Router) signIn(ctx context.Context, opts *core.Options, req *core.Request) *core.Response {
	switch p := opts.Provider.(type) {
	case *core.OAuthProvider:
		return r.signInOAuth(ctx, opts, req, p)
	case *core.EmailProvider:
		return r.signInEmail(ctx, opts, req, p)
	case *core.CredentialsProvider:
		return r.callbackCredentials(ctx, opts, req, p)
	default:
		return &core.Response{Redirect: opts.ActionURL(core.ActionSignIn, nil)}
	}
}

func (r *Router) signInOAuth(ctx context.Context, opts *core.Options, req *core.Request, p *core.OAuthProvider) *core.Response {
	auth, err := oauth.NewClient(p, opts).AuthorizationURL(ctx, req)
	if err != nil {
		opts.Logger.Error("SIGNIN_OAUTH_ERROR", err, zap.String("providerId", p.ID))
		r.metrics.RecordSignIn(p.ID, outcomeError)
		return &core.Response{Redirect: opts.ErrorURL(core.CodeOAuthSignin, nil)}
	}
	return &core.Response{Redirect: auth.URL, Cookies: auth.Cookies}
}

func (r *Router) signInEmail(ctx context.Context, opts *core.Options, req *core.Request, p *core.EmailProvider) *core.Response {
	fail := &core.Response{Redirect: opts.ErrorURL(core.CodeEmailSignin, nil)}

	raw := req.Body.Get("email")
	if raw == "" {
		return fail
	}
	identifier, err := email.Normalize(p, raw)
	if err != nil {
		opts.Logger.Error("SIGNIN_EMAIL_ERROR", err, zap.String("providerId", p.ID))
		return fail
	}

	user, err := opts.Adapter.GetUserByEmail(ctx, identifier)
	if err != nil {
		opts.Logger.Error("SIGNIN_EMAIL_ERROR", err, zap.String("providerId", p.ID))
		return fail
	}
	if user == nil {
		user = &core.User{ID: identifier, Email: identifier}
	}
	account := &core.Account{
		UserID:            user.ID,
		Type:              core.ProviderTypeEmail,
		Provider:          p.ID,
		ProviderAccountID: identifier,
	}

	if res := r.authorize(ctx, opts, p.ID, core.SignInParams{
		User:                user,
		Account:             account,
		VerificationRequest: true,
	}); res != nil {
		return res
	}

	if err := email.SendVerificationRequest(ctx, opts, p, identifier); err != nil {
		opts.Logger.Error("SIGNIN_EMAIL_ERROR", err, zap.String("providerId", p.ID))
		r.metrics.RecordSignIn(p.ID, outcomeError)
		return fail
	}
	return &core.Response{Redirect: email.VerifyRequestURL(opts, p)}
}

// authorize runs the SignIn callback. A nil response means proceed.
func (r *Router) authorize(ctx context.Context, opts *core.Options, providerID string, p core.SignInParams) *core.Response {
	if opts.Callbacks.SignIn == nil {
		return nil
	}
	decision, err := opts.Callbacks.SignIn(ctx, p)
	if err != nil {
		opts.Logger.Error("SIGNIN_CALLBACK_ERROR", err, zap.String("providerId", providerID))
		decision = core.Deny()
	}
	if decision.Redirect != "" {
		r.metrics.RecordSignIn(providerID, outcomeDenied)
		return &core.Response{Redirect: decision.Redirect}
	}
	if !decision.Allowed {
		r.metrics.RecordSignIn(providerID, outcomeDenied)
		return &core.Response{Redirect: opts.ErrorURL(core.CodeAccessDenied, nil)}
	}
	return nil
}

// callback finishes a provider flow.
func (r *Router) callback(ctx context.Context, opts *core.Options, req *core.Request) *core.Response {
	switch p := opts.Provider.(type) {
	case *core.OAuthProvider:
		return r.callbackOAuth(ctx, opts, req, p)
	case *core.EmailProvider:
		return r.callbackEmail(ctx, opts, req, p)
	case *core.CredentialsProvider:
		return r.callbackCredentials(ctx, opts, req, p)
	default:
		return notSupported(req)
	}
}

func (r *Router) callbackOAuth(ctx context.Context, opts *core.Options, req *core.Request, p *core.OAuthProvider) *core.Response {
	res := &core.Response{}

	result, err := oauth.NewClient(p, opts).Callback(ctx, req)
	if result != nil {
		res.AddCookies(result.Cookies...)
	}
	if err != nil {
		opts.Logger.Error("OAUTH_CALLBACK_ERROR", err, zap.String("providerId", p.ID))
		r.metrics.RecordSignIn(p.ID, outcomeError)
		res.Redirect = opts.ErrorURL(core.CodeOAuthCallback, nil)
		return res
	}
	if result.Profile == nil {
		res.Redirect = opts.ActionURL(core.ActionSignIn, nil)
		return res
	}

	var user *core.User
	if opts.Adapter != nil {
		user, err = opts.Adapter.GetUserByAccount(ctx, p.ID, result.Account.ProviderAccountID)
		if err != nil {
			opts.Logger.Error("OAUTH_CALLBACK_HANDLER_ERROR", err, zap.String("providerId", p.ID))
			res.Redirect = opts.ErrorURL(core.CodeCallback, nil)
			return res
		}
	}
	if user == nil {
		user = &core.User{ID: result.Profile.ID, Name: result.Profile.Name, Email: result.Profile.Email, Image: result.Profile.Image}
	}
	if denied := r.authorize(ctx, opts, p.ID, core.SignInParams{
		User:    user,
		Account: result.Account,
		Profile: result.Profile,
	}); denied != nil {
		denied.AddCookies(res.Cookies...)
		return denied
	}

	linked, err := callback.Handle(ctx, opts, callback.Params{
		SessionToken: cookie.NewStore(opts.Cookies.SessionToken, req).Value(),
		Profile:      result.Profile,
		Account:      result.Account,
	})
	if err != nil {
		r.metrics.RecordSignIn(p.ID, outcomeError)
		switch {
		case errors.Is(err, core.ErrAccountNotLinked):
			res.Redirect = opts.ErrorURL(core.CodeOAuthAccountNotLinked, nil)
		case core.IsAdapterError(err, "CreateUser"):
			res.Redirect = opts.ErrorURL(core.CodeOAuthCreateAccount, nil)
		default:
			opts.Logger.Error("OAUTH_CALLBACK_HANDLER_ERROR", err, zap.String("providerId", p.ID))
			res.Redirect = opts.ErrorURL(core.CodeCallback, nil)
		}
		return res
	}

	return r.establish(ctx, opts, req, res, linked, result.Account, result.Profile)
}

func (r *Router) callbackEmail(ctx context.Context, opts *core.Options, req *core.Request, p *core.EmailProvider) *core.Response {
	verification := &core.Response{Redirect: opts.ErrorURL(core.CodeVerification, nil)}

	identifier, err := email.Normalize(p, req.Param("email"))
	if err != nil {
		return verification
	}
	if err := email.Verify(ctx, opts, identifier, req.Param("token")); err != nil {
		if !errors.Is(err, core.ErrVerification) {
			opts.Logger.Error("CALLBACK_EMAIL_ERROR", err, zap.String("providerId", p.ID))
		}
		r.metrics.RecordSignIn(p.ID, outcomeError)
		return verification
	}

	user, err := opts.Adapter.GetUserByEmail(ctx, identifier)
	if err != nil {
		opts.Logger.Error("CALLBACK_EMAIL_ERROR", err, zap.String("providerId", p.ID))
		return &core.Response{Redirect: opts.ErrorURL(core.CodeCallback, nil)}
	}
	if user == nil {
		user = &core.User{ID: identifier, Email: identifier}
	}
	profile := &core.Profile{ID: user.ID, Name: user.Name, Email: identifier, Image: user.Image}
	account := &core.Account{
		UserID:            user.ID,
		Type:              core.ProviderTypeEmail,
		Provider:          p.ID,
		ProviderAccountID: identifier,
	}

	if denied := r.authorize(ctx, opts, p.ID, core.SignInParams{User: user, Account: account}); denied != nil {
		return denied
	}

	linked, err := callback.Handle(ctx, opts, callback.Params{
		SessionToken: cookie.NewStore(opts.Cookies.SessionToken, req).Value(),
		Profile:      profile,
		Account:      account,
	})
	if err != nil {
		r.metrics.RecordSignIn(p.ID, outcomeError)
		if core.IsAdapterError(err, "CreateUser") {
			return &core.Response{Redirect: opts.ErrorURL(core.CodeEmailCreateAccount, nil)}
		}
		opts.Logger.Error("CALLBACK_EMAIL_ERROR", err, zap.String("providerId", p.ID))
		return &core.Response{Redirect: opts.ErrorURL(core.CodeCallback, nil)}
	}

	account.UserID = linked.User.ID
	return r.establish(ctx, opts, req, &core.Response{}, linked, account, profile)
}

// callbackCredentials hands the submitted form to Authorize. Credentials
// sessions are always JWTs.
func (r *Router) callbackCredentials(ctx context.Context, opts *core.Options, req *core.Request, p *core.CredentialsProvider) *core.Response {
	if !opts.UseJWT() {
		opts.Logger.Error("UNSUPPORTED_STRATEGY", core.ErrUnsupportedStrategy, zap.String("providerId", p.ID))
		return &core.Response{Redirect: opts.ErrorURL(core.CodeConfiguration, nil)}
	}

	rejected := &core.Response{
		Status:   http.StatusUnauthorized,
		Redirect: opts.ErrorURL(core.CodeCredentialsSignin, url.Values{"provider": {p.ID}}),
	}

	credentials := make(map[string]string, len(req.Body))
	for k, v := range req.Body {
		if len(v) > 0 {
			credentials[k] = v[0]
		}
	}

	user, err := p.Authorize(ctx, credentials, req)
	if err != nil || user == nil {
		if err != nil {
			opts.Logger.Debug("CREDENTIALS_REJECTED", zap.String("providerId", p.ID), zap.Error(err))
		}
		r.metrics.RecordSignIn(p.ID, outcomeDenied)
		return rejected
	}

	account := &core.Account{
		UserID:            user.ID,
		Type:              core.ProviderTypeCredentials,
		Provider:          p.ID,
		ProviderAccountID: user.ID,
	}
	if denied := r.authorize(ctx, opts, p.ID, core.SignInParams{
		User:        user,
		Account:     account,
		Credentials: credentials,
	}); denied != nil {
		return denied
	}

	res := &core.Response{}
	cookies, err := issueJWT(ctx, opts, req, core.JWTParams{Token: defaultToken(user), User: user, Account: account})
	if err != nil {
		opts.Logger.Error("CALLBACK_CREDENTIALS_JWT_ERROR", err, zap.String("providerId", p.ID))
		res.Redirect = opts.ErrorURL(core.CodeCallback, nil)
		return res
	}
	res.AddCookies(cookies...)

	core.Emit(ctx, opts, "signIn", opts.Events.SignIn, core.SignInEvent{User: user, Account: account})
	r.metrics.RecordSignIn(p.ID, outcomeSuccess)
	res.Redirect = opts.CallbackURL
	return res
}

// establish writes the session for a completed flow and picks the final
// redirect.
func (r *Router) establish(ctx context.Context, opts *core.Options, req *core.Request, res *core.Response,
	linked *callback.Result, account *core.Account, profile *core.Profile) *core.Response {

	if opts.UseJWT() {
		cookies, err := issueJWT(ctx, opts, req, core.JWTParams{
			Token:     defaultToken(linked.User),
			User:      linked.User,
			Account:   account,
			Profile:   profile,
			IsNewUser: linked.IsNewUser,
		})
		if err != nil {
			opts.Logger.Error("CALLBACK_JWT_ERROR", err, zap.String("providerId", account.Provider))
			res.Redirect = opts.ErrorURL(core.CodeCallback, nil)
			return res
		}
		res.AddCookies(cookies...)
	} else if linked.Session != nil {
		store := cookie.NewStore(opts.Cookies.SessionToken, req)
		res.AddCookies(store.Chunk(linked.Session.SessionToken, linked.Session.Expires)...)
	}

	core.Emit(ctx, opts, "signIn", opts.Events.SignIn, core.SignInEvent{
		User:      linked.User,
		Account:   account,
		Profile:   profile,
		IsNewUser: linked.IsNewUser,
	})
	r.metrics.RecordSignIn(account.Provider, outcomeSuccess)

	if linked.IsNewUser && opts.Pages.NewUser != "" {
		res.Redirect = core.AppendQuery(opts.Pages.NewUser, url.Values{"callbackUrl": {opts.CallbackURL}})
		return res
	}
	res.Redirect = opts.CallbackURL
	return res
}

// defaultToken is the payload every new JWT session starts from.
func defaultToken(u *core.User) core.JWT {
	t := core.JWT{"sub": u.ID}
	if u.Name != "" {
		t["name"] = u.Name
	}
	if u.Email != "" {
		t["email"] = u.Email
	}
	if u.Image != "" {
		t["picture"] = u.Image
	}
	return t
}

// issueJWT runs the JWT callback, encodes the result and chunks it into
// session cookies.
func issueJWT(ctx context.Context, opts *core.Options, req *core.Request, p core.JWTParams) ([]core.Cookie, error) {
	token, err := runJWTCallback(ctx, opts, p)
	if err != nil {
		return nil, err
	}
	encoded, err := opts.EncodeJWT(ctx, token)
	if err != nil {
		return nil, err
	}
	expires := opts.NowTime().Add(opts.Session.MaxAge)
	return cookie.NewStore(opts.Cookies.SessionToken, req).Chunk(encoded, expires), nil
}
