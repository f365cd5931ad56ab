package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) CreateVerificationToken(ctx context.Context, t *core.VerificationToken) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (identifier, token, expires) VALUES (?, ?, ?)`,
		t.Identifier, t.Token, toMillis(t.Expires),
	)
	return err
}

// UseVerificationToken deletes and returns the token in one statement.
func (a *Adapter) UseVerificationToken(ctx context.Context, identifier, token string) (*core.VerificationToken, error) {
	vt := &core.VerificationToken{}
	var expires int64
	err := a.db.QueryRowContext(ctx,
		`DELETE FROM verification_tokens WHERE identifier = ? AND token = ?
		 RETURNING identifier, token, expires`,
		identifier, token,
	).Scan(&vt.Identifier, &vt.Token, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	vt.Expires = fromMillis(expires)
	return vt, nil
}
