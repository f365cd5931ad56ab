package redis

import (
	"time"

	"github.com/lborres/bantay/core"
)

// Token material on core.Account is hidden from JSON, so accounts and
// sessions are stored through these records instead.

type accountRecord struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	Type              core.ProviderType `json:"type"`
	Provider          string            `json:"provider"`
	ProviderAccountID string            `json:"providerAccountId"`
	AccessToken       string            `json:"accessToken,omitempty"`
	RefreshToken      string            `json:"refreshToken,omitempty"`
	IDToken           string            `json:"idToken,omitempty"`
	ExpiresAt         int64             `json:"expiresAt,omitempty"`
	TokenType         string            `json:"tokenType,omitempty"`
	Scope             string            `json:"scope,omitempty"`
	SessionState      string            `json:"sessionState,omitempty"`
	OAuthToken        string            `json:"oauthToken,omitempty"`
	OAuthTokenSecret  string            `json:"oauthTokenSecret,omitempty"`
}

func newAccountRecord(a *core.Account) accountRecord {
	return accountRecord{
		ID:                a.ID,
		UserID:            a.UserID,
		Type:              a.Type,
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		AccessToken:       a.AccessToken,
		RefreshToken:      a.RefreshToken,
		IDToken:           a.IDToken,
		ExpiresAt:         a.ExpiresAt,
		TokenType:         a.TokenType,
		Scope:             a.Scope,
		SessionState:      a.SessionState,
		OAuthToken:        a.OAuthToken,
		OAuthTokenSecret:  a.OAuthTokenSecret,
	}
}

type sessionRecord struct {
	ID           string    `json:"id"`
	SessionToken string    `json:"sessionToken"`
	UserID       string    `json:"userId"`
	Expires      time.Time `json:"expires"`
}

func (r sessionRecord) session() *core.Session {
	return &core.Session{ID: r.ID, SessionToken: r.SessionToken, UserID: r.UserID, Expires: r.Expires}
}

type verificationRecord struct {
	Identifier string    `json:"identifier"`
	Token      string    `json:"token"`
	Expires    time.Time `json:"expires"`
}
