package core

import (
	"encoding/json"
	"time"
)

// User represents a user in the system
//
// This is the "identity" - who someone is
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
}

// Account binds one external identity to a local user
//
// This is the "credential" - how someone proves who they are
type Account struct {
	ID                string       `json:"id,omitempty"`
	UserID            string       `json:"userId,omitempty"`
	Type              ProviderType `json:"type"`
	Provider          string       `json:"provider"`
	ProviderAccountID string       `json:"providerAccountId"`

	// OAuth token material, empty for email and credentials accounts
	AccessToken      string `json:"-"`
	RefreshToken     string `json:"-"`
	IDToken          string `json:"-"`
	ExpiresAt        int64  `json:"expires_at,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	SessionState     string `json:"session_state,omitempty"`
	OAuthToken       string `json:"-"`
	OAuthTokenSecret string `json:"-"`
}

// Session is a database-backed login session.
type Session struct {
	ID           string    `json:"id,omitempty"`
	SessionToken string    `json:"-"` // Never expose in JSON
	UserID       string    `json:"userId"`
	Expires      time.Time `json:"expires"`
}

// VerificationToken is a single-use token for the email sign-in flow.
// Token holds the hash of the value mailed to the user, never the value itself.
type VerificationToken struct {
	Identifier string    `json:"identifier"`
	Token      string    `json:"-"`
	Expires    time.Time `json:"expires"`
}

// Profile is the normalized shape every OAuth provider maps its user info into.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// TokenSet holds what a provider's token endpoint returned.
type TokenSet struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	IDToken          string
	Scope            string
	SessionState     string
	ExpiresAt        int64
	OAuthToken       string
	OAuthTokenSecret string
	Raw              map[string]any
}

// SessionUser is the subset of User exposed to clients.
type SessionUser struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// SessionData is the client-facing session returned by the session endpoint.
// Extra carries fields added by the Session callback and is flattened into
// the JSON object.
type SessionData struct {
	User    *SessionUser   `json:"user,omitempty"`
	Expires time.Time      `json:"expires"`
	Extra   map[string]any `json:"-"`
}

func (s SessionData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.User != nil {
		out["user"] = s.User
	}
	out["expires"] = s.Expires.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// JWT is the decoded payload of a session token. Standard claims used by
// bantay are "sub", "name", "email" and "picture"; callbacks may add any
// other claim.
type JWT map[string]any

func (t JWT) str(key string) string {
	if t == nil {
		return ""
	}
	if v, ok := t[key].(string); ok {
		return v
	}
	return ""
}

func (t JWT) Subject() string { return t.str("sub") }
func (t JWT) Name() string    { return t.str("name") }
func (t JWT) Email() string   { return t.str("email") }
func (t JWT) Picture() string { return t.str("picture") }

// Clone returns a shallow copy so callbacks can't mutate a caller's token.
func (t JWT) Clone() JWT {
	out := make(JWT, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
