package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/bantay/core"
)

func (a *Adapter) CreateVerificationToken(ctx context.Context, t *core.VerificationToken) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO verification_tokens (identifier, token, expires) VALUES ($1, $2, $3)`,
		t.Identifier, t.Token, t.Expires,
	)
	return err
}

// UseVerificationToken deletes and returns the token in one statement, so
// concurrent callers cannot both receive it.
func (a *Adapter) UseVerificationToken(ctx context.Context, identifier, token string) (*core.VerificationToken, error) {
	vt := &core.VerificationToken{}
	err := a.pool.QueryRow(ctx,
		`DELETE FROM verification_tokens WHERE identifier = $1 AND token = $2
		 RETURNING identifier, token, expires`,
		identifier, token,
	).Scan(&vt.Identifier, &vt.Token, &vt.Expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return vt, nil
}
