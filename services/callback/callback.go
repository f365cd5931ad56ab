// Package callback decides what a verified identity means for the local
// user store: sign in, create, link or reject.
package callback

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lborres/bantay/core"
)

var ErrMissingEmail = errors.New("email sign-in without an email address")

// Params describes the identity a provider just vouched for.
type Params struct {
	// SessionToken is the raw session cookie of the request, if any.
	SessionToken string

	// Profile is the normalized identity. For the email flow it is the
	// address being verified.
	Profile *core.Profile
	Account *core.Account
}

// Result is the signed-in state after the flow. Session is only set for
// the database strategy.
type Result struct {
	User      *core.User
	Session   *core.Session
	IsNewUser bool
}

// Handle runs the account-linking state machine. Without an adapter the
// profile is returned as the user and nothing is persisted.
func Handle(ctx context.Context, opts *core.Options, p Params) (*Result, error) {
	if p.Profile == nil || p.Account == nil {
		return nil, errors.New("callback: profile and account are required")
	}
	if opts.Adapter == nil {
		return &Result{User: userFromProfile(p.Profile, true)}, nil
	}

	current, session, err := currentUser(ctx, opts, p.SessionToken)
	if err != nil {
		return nil, err
	}

	switch p.Account.Type {
	case core.ProviderTypeEmail:
		return handleEmail(ctx, opts, p, current, session)
	case core.ProviderTypeOAuth:
		return handleOAuth(ctx, opts, p, current, session)
	default:
		return nil, fmt.Errorf("callback: unsupported account type %q", p.Account.Type)
	}
}

// currentUser resolves who the request is already signed in as.
func currentUser(ctx context.Context, opts *core.Options, sessionToken string) (*core.User, *core.Session, error) {
	if sessionToken == "" {
		return nil, nil, nil
	}

	if opts.UseJWT() {
		token, err := opts.DecodeJWT(ctx, sessionToken)
		if err != nil || token.Subject() == "" {
			return nil, nil, nil
		}
		u, err := opts.Adapter.GetUser(ctx, token.Subject())
		return u, nil, err
	}

	s, u, err := opts.Adapter.GetSessionAndUser(ctx, sessionToken)
	if err != nil {
		return nil, nil, err
	}
	if s == nil || !s.Expires.After(opts.NowTime()) {
		return nil, nil, nil
	}
	return u, s, nil
}

func handleEmail(ctx context.Context, opts *core.Options, p Params, current *core.User, session *core.Session) (*Result, error) {
	address := p.Profile.Email
	if address == "" {
		return nil, ErrMissingEmail
	}

	byEmail, err := opts.Adapter.GetUserByEmail(ctx, address)
	if err != nil {
		return nil, err
	}

	if byEmail != nil {
		if current != nil && current.ID == byEmail.ID {
			return &Result{User: current, Session: session}, nil
		}
		if session != nil {
			if err := opts.Adapter.DeleteSession(ctx, session.SessionToken); err != nil {
				return nil, err
			}
		}

		now := opts.NowTime()
		user, err := opts.Adapter.UpdateUser(ctx, &core.User{ID: byEmail.ID, EmailVerified: &now})
		if err != nil {
			return nil, err
		}
		core.Emit(ctx, opts, "updateUser", opts.Events.UpdateUser, user)
		return withSession(ctx, opts, &Result{User: user})
	}

	now := opts.NowTime()
	newUser := userFromProfile(p.Profile, false)
	newUser.EmailVerified = &now
	user, err := opts.Adapter.CreateUser(ctx, newUser)
	if err != nil {
		return nil, err
	}
	core.Emit(ctx, opts, "createUser", opts.Events.CreateUser, user)
	return withSession(ctx, opts, &Result{User: user, IsNewUser: true})
}

func handleOAuth(ctx context.Context, opts *core.Options, p Params, current *core.User, session *core.Session) (*Result, error) {
	byAccount, err := opts.Adapter.GetUserByAccount(ctx, p.Account.Provider, p.Account.ProviderAccountID)
	if err != nil {
		return nil, err
	}

	if byAccount != nil {
		if current == nil {
			return withSession(ctx, opts, &Result{User: byAccount})
		}
		if current.ID == byAccount.ID {
			return &Result{User: current, Session: session}, nil
		}
		return nil, core.ErrAccountNotLinked
	}

	if current != nil {
		if err := link(ctx, opts, current, p); err != nil {
			return nil, err
		}
		return &Result{User: current, Session: session}, nil
	}

	if p.Profile.Email != "" {
		byEmail, err := opts.Adapter.GetUserByEmail(ctx, p.Profile.Email)
		if err != nil {
			return nil, err
		}
		if byEmail != nil {
			if !allowsEmailLinking(opts, p.Account.Provider) {
				return nil, core.ErrAccountNotLinked
			}
			if err := link(ctx, opts, byEmail, p); err != nil {
				return nil, err
			}
			return withSession(ctx, opts, &Result{User: byEmail})
		}
	}

	user, err := opts.Adapter.CreateUser(ctx, userFromProfile(p.Profile, false))
	if err != nil {
		return nil, err
	}
	core.Emit(ctx, opts, "createUser", opts.Events.CreateUser, user)

	if err := link(ctx, opts, user, p); err != nil {
		return nil, err
	}
	return withSession(ctx, opts, &Result{User: user, IsNewUser: true})
}

func link(ctx context.Context, opts *core.Options, user *core.User, p Params) error {
	account := *p.Account
	account.UserID = user.ID
	if err := opts.Adapter.LinkAccount(ctx, &account); err != nil {
		return err
	}
	core.Emit(ctx, opts, "linkAccount", opts.Events.LinkAccount, core.LinkAccountEvent{
		User:    user,
		Account: &account,
		Profile: p.Profile,
	})
	return nil
}

func allowsEmailLinking(opts *core.Options, providerID string) bool {
	p, ok := opts.FindProvider(providerID).(*core.OAuthProvider)
	return ok && p.AllowDangerousEmailAccountLinking
}

// withSession creates the database session for r.User. JWT sessions are
// issued by the caller.
func withSession(ctx context.Context, opts *core.Options, r *Result) (*Result, error) {
	if opts.UseJWT() {
		return r, nil
	}

	token, err := NewSessionToken(opts)
	if err != nil {
		return nil, err
	}
	s, err := opts.Adapter.CreateSession(ctx, &core.Session{
		SessionToken: token,
		UserID:       r.User.ID,
		Expires:      opts.NowTime().Add(opts.Session.MaxAge),
	})
	if err != nil {
		return nil, err
	}
	r.Session = s
	return r, nil
}

// NewSessionToken uses the configured generator or a random UUID.
func NewSessionToken(opts *core.Options) (string, error) {
	if opts.Session.GenerateSessionToken != nil {
		return opts.Session.GenerateSessionToken()
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func userFromProfile(p *core.Profile, keepID bool) *core.User {
	u := &core.User{Name: p.Name, Email: p.Email, Image: p.Image}
	if keepID {
		u.ID = p.ID
	}
	return u
}
