package sqlite

import (
	"context"
	"database/sql"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) LinkAccount(ctx context.Context, acc *core.Account) error {
	id := acc.ID
	if id == "" {
		id = a.newID()
	}

	var expiresAt sql.NullInt64
	if acc.ExpiresAt != 0 {
		expiresAt = sql.NullInt64{Int64: acc.ExpiresAt, Valid: true}
	}
	query := `INSERT INTO accounts (
	            id, user_id, type, provider, provider_account_id,
	            access_token, refresh_token, id_token, expires_at, token_type,
	            scope, session_state, oauth_token, oauth_token_secret)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.db.ExecContext(ctx, query,
		id, acc.UserID, string(acc.Type), acc.Provider, acc.ProviderAccountID,
		acc.AccessToken, acc.RefreshToken, acc.IDToken, expiresAt, acc.TokenType,
		acc.Scope, acc.SessionState, acc.OAuthToken, acc.OAuthTokenSecret,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAccountExists
		}
		return err
	}
	return nil
}

func (a *Adapter) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM accounts WHERE provider = ? AND provider_account_id = ?`, provider, providerAccountID)
	return err
}
