// Package memory is an in-process Adapter. It is meant for tests and
// single-instance development setups; nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

type accountKey struct {
	provider          string
	providerAccountID string
}

type tokenKey struct {
	identifier string
	token      string
}

// Adapter stores everything in maps guarded by one mutex.
type Adapter struct {
	mu       sync.RWMutex
	users    map[string]*core.User
	accounts map[accountKey]*core.Account
	sessions map[string]*core.Session
	tokens   map[tokenKey]*core.VerificationToken
	newID    func() (string, error)
}

// Ensure Adapter implements core.Adapter
var (
	_ core.Adapter        = (*Adapter)(nil)
	_ core.SessionSweeper = (*Adapter)(nil)
)

func New() *Adapter {
	return &Adapter{
		users:    make(map[string]*core.User),
		accounts: make(map[accountKey]*core.Account),
		sessions: make(map[string]*core.Session),
		tokens:   make(map[tokenKey]*core.VerificationToken),
		newID:    crypto.NewID,
	}
}

func copyUser(u *core.User) *core.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.EmailVerified != nil {
		t := *u.EmailVerified
		out.EmailVerified = &t
	}
	return &out
}

func copySession(s *core.Session) *core.Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// ============================================
// USERS
// ============================================

func (a *Adapter) CreateUser(_ context.Context, u *core.User) (*core.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if u.Email != "" {
		for _, existing := range a.users {
			if existing.Email == u.Email {
				return nil, core.ErrUserExists
			}
		}
	}

	created := copyUser(u)
	if created.ID == "" {
		id, err := a.newID()
		if err != nil {
			return nil, err
		}
		created.ID = id
	}
	if _, exists := a.users[created.ID]; exists {
		return nil, core.ErrUserExists
	}
	a.users[created.ID] = created
	return copyUser(created), nil
}

func (a *Adapter) GetUser(_ context.Context, id string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copyUser(a.users[id]), nil
}

func (a *Adapter) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, u := range a.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (a *Adapter) GetUserByAccount(_ context.Context, provider, providerAccountID string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[accountKey{provider, providerAccountID}]
	if !ok {
		return nil, nil
	}
	return copyUser(a.users[acc.UserID]), nil
}

// UpdateUser overwrites the non-empty fields of u.
func (a *Adapter) UpdateUser(_ context.Context, u *core.User) (*core.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, ok := a.users[u.ID]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	if u.Name != "" {
		existing.Name = u.Name
	}
	if u.Email != "" {
		existing.Email = u.Email
	}
	if u.Image != "" {
		existing.Image = u.Image
	}
	if u.EmailVerified != nil {
		t := *u.EmailVerified
		existing.EmailVerified = &t
	}
	return copyUser(existing), nil
}

// DeleteUser removes the user with its accounts and sessions.
func (a *Adapter) DeleteUser(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[id]; !ok {
		return core.ErrUserNotFound
	}
	delete(a.users, id)
	for k, acc := range a.accounts {
		if acc.UserID == id {
			delete(a.accounts, k)
		}
	}
	for k, s := range a.sessions {
		if s.UserID == id {
			delete(a.sessions, k)
		}
	}
	return nil
}

// ============================================
// ACCOUNTS
// ============================================

func (a *Adapter) LinkAccount(_ context.Context, acc *core.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := accountKey{acc.Provider, acc.ProviderAccountID}
	if _, exists := a.accounts[key]; exists {
		return core.ErrAccountExists
	}
	if _, ok := a.users[acc.UserID]; !ok {
		return core.ErrUserNotFound
	}
	stored := *acc
	if stored.ID == "" {
		id, err := a.newID()
		if err != nil {
			return err
		}
		stored.ID = id
	}
	a.accounts[key] = &stored
	return nil
}

func (a *Adapter) UnlinkAccount(_ context.Context, provider, providerAccountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.accounts, accountKey{provider, providerAccountID})
	return nil
}

// Accounts returns the accounts linked to userID.
func (a *Adapter) Accounts(userID string) []core.Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []core.Account
	for _, acc := range a.accounts {
		if acc.UserID == userID {
			out = append(out, *acc)
		}
	}
	return out
}

// ============================================
// SESSIONS
// ============================================

func (a *Adapter) CreateSession(_ context.Context, s *core.Session) (*core.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	created := copySession(s)
	if created.ID == "" {
		id, err := a.newID()
		if err != nil {
			return nil, err
		}
		created.ID = id
	}
	a.sessions[created.SessionToken] = created
	return copySession(created), nil
}

func (a *Adapter) GetSessionAndUser(_ context.Context, sessionToken string) (*core.Session, *core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[sessionToken]
	if !ok {
		return nil, nil, nil
	}
	u, ok := a.users[s.UserID]
	if !ok {
		return nil, nil, nil
	}
	return copySession(s), copyUser(u), nil
}

func (a *Adapter) UpdateSession(_ context.Context, s *core.Session) (*core.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, ok := a.sessions[s.SessionToken]
	if !ok {
		return nil, nil
	}
	if !s.Expires.IsZero() {
		existing.Expires = s.Expires
	}
	return copySession(existing), nil
}

func (a *Adapter) DeleteSession(_ context.Context, sessionToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionToken)
	return nil
}

// Sessions returns every stored session of userID.
func (a *Adapter) Sessions(userID string) []core.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []core.Session
	for _, s := range a.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

// DeleteExpiredSessions drops sessions that expired before now.
func (a *Adapter) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var count int64
	for k, s := range a.sessions {
		if !s.Expires.After(now) {
			delete(a.sessions, k)
			count++
		}
	}
	return count, nil
}

// ============================================
// VERIFICATION TOKENS
// ============================================

func (a *Adapter) CreateVerificationToken(_ context.Context, t *core.VerificationToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	stored := *t
	a.tokens[tokenKey{t.Identifier, t.Token}] = &stored
	return nil
}

// UseVerificationToken deletes the token under the write lock, so only one
// caller can ever receive it.
func (a *Adapter) UseVerificationToken(_ context.Context, identifier, token string) (*core.VerificationToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := tokenKey{identifier, token}
	t, ok := a.tokens[key]
	if !ok {
		return nil, nil
	}
	delete(a.tokens, key)
	out := *t
	return &out, nil
}
