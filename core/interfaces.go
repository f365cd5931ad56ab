package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORTS (Adapter operations)
// ============================================
//
// Lookups return (nil, nil) when nothing matches. Any non-nil error is a
// storage failure.

// UserStorage defines user-related operations
type UserStorage interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error)
	UpdateUser(ctx context.Context, u *User) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AccountStorage defines account-related operations. Implementations must
// enforce uniqueness of (Provider, ProviderAccountID).
type AccountStorage interface {
	LinkAccount(ctx context.Context, a *Account) error
	UnlinkAccount(ctx context.Context, provider, providerAccountID string) error
}

// SessionStorage defines database-session operations
type SessionStorage interface {
	CreateSession(ctx context.Context, s *Session) (*Session, error)
	GetSessionAndUser(ctx context.Context, sessionToken string) (*Session, *User, error)
	UpdateSession(ctx context.Context, s *Session) (*Session, error)
	DeleteSession(ctx context.Context, sessionToken string) error
}

// VerificationTokenStorage defines email verification token operations.
// UseVerificationToken must fetch and delete in one atomic step.
type VerificationTokenStorage interface {
	CreateVerificationToken(ctx context.Context, t *VerificationToken) error
	UseVerificationToken(ctx context.Context, identifier, token string) (*VerificationToken, error)
}

// Adapter is the persistence contract the core calls.
type Adapter interface {
	UserStorage
	AccountStorage
	SessionStorage
	VerificationTokenStorage
}

// ============================================
// HTTP PORT
// ============================================

// Handler is implemented by the root bantay instance; transport adapters
// translate framework requests into Request and write the Response back.
type Handler interface {
	// Handle never returns a nil Response. A non-nil error is already
	// reflected in the Response; transports log it through Logger.
	Handle(ctx context.Context, req *Request) (*Response, error)
	// GetServerSession returns nil when the request is not signed in. The
	// cookies refresh or clear the session and should be written back.
	GetServerSession(ctx context.Context, req *Request) (*SessionData, []Cookie, error)

	// SessionRequired is the response a protected route sends when
	// GetServerSession finds nothing.
	SessionRequired(req *Request, callbackURL string) *Response
	BasePath() string
	Logger() *zap.Logger
}

type HTTPAdapter interface {
	RegisterRoutes(handler Handler) error
}

// SessionSweeper is implemented by adapters that can purge expired
// database sessions in bulk.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
