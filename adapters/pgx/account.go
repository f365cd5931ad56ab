package pgx

import (
	"context"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) LinkAccount(ctx context.Context, acc *core.Account) error {
	id := acc.ID
	if id == "" {
		id = a.newID()
	}

	query := `INSERT INTO accounts (
	            id, user_id, type, provider, provider_account_id,
	            access_token, refresh_token, id_token, expires_at, token_type,
	            scope, session_state, oauth_token, oauth_token_secret)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9::bigint, 0), $10, $11, $12, $13, $14)`
	_, err := a.pool.Exec(ctx, query,
		id, acc.UserID, string(acc.Type), acc.Provider, acc.ProviderAccountID,
		acc.AccessToken, acc.RefreshToken, acc.IDToken, acc.ExpiresAt, acc.TokenType,
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
	_, err := a.pool.Exec(ctx, `DELETE FROM accounts WHERE provider = $1 AND provider_account_id = $2`, provider, providerAccountID)
	return err
}
