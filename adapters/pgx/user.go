package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/bantay/core"
)

const userColumns = `id, name, COALESCE(email, ''), email_verified, image`

func scanUser(row pgx.Row) (*core.User, error) {
	u := &core.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	id := u.ID
	if id == "" {
		id = a.newID()
	}

	query := `INSERT INTO users (id, name, email, email_verified, image)
	          VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	          RETURNING ` + userColumns
	created, err := scanUser(a.pool.QueryRow(ctx, query, id, u.Name, u.Email, u.EmailVerified, u.Image))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrUserExists
		}
		return nil, err
	}
	return created, nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	return scanUser(a.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return scanUser(a.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (a *Adapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*core.User, error) {
	query := `SELECT u.id, u.name, COALESCE(u.email, ''), u.email_verified, u.image
	          FROM users u JOIN accounts a ON a.user_id = u.id
	          WHERE a.provider = $1 AND a.provider_account_id = $2`
	return scanUser(a.pool.QueryRow(ctx, query, provider, providerAccountID))
}

// UpdateUser overwrites the non-empty fields of u.
func (a *Adapter) UpdateUser(ctx context.Context, u *core.User) (*core.User, error) {
	query := `UPDATE users SET
	            name = COALESCE(NULLIF($2, ''), name),
	            email = COALESCE(NULLIF($3, ''), email),
	            email_verified = COALESCE($4, email_verified),
	            image = COALESCE(NULLIF($5, ''), image),
	            updated_at = now()
	          WHERE id = $1
	          RETURNING ` + userColumns
	updated, err := scanUser(a.pool.QueryRow(ctx, query, u.ID, u.Name, u.Email, u.EmailVerified, u.Image))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrUserExists
		}
		return nil, err
	}
	if updated == nil {
		return nil, core.ErrUserNotFound
	}
	return updated, nil
}

// DeleteUser removes the user; accounts and sessions go with it through
// ON DELETE CASCADE.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
