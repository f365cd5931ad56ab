package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lborres/bantay/core"
)

const userColumns = `id, name, COALESCE(email, ''), email_verified, image`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*core.User, error) {
	u := &core.User{}
	var verified sql.NullInt64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &verified, &u.Image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if verified.Valid {
		t := fromMillis(verified.Int64)
		u.EmailVerified = &t
	}
	return u, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	id := u.ID
	if id == "" {
		id = a.newID()
	}

	query := `INSERT INTO users (id, name, email, email_verified, image)
	          VALUES (?, ?, ?, ?, ?)
	          RETURNING ` + userColumns
	created, err := scanUser(a.db.QueryRowContext(ctx, query,
		id, u.Name, nullableString(u.Email), nullableMillis(u.EmailVerified), u.Image,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrUserExists
		}
		return nil, err
	}
	return created, nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	return scanUser(a.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return scanUser(a.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (a *Adapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*core.User, error) {
	query := `SELECT u.id, u.name, COALESCE(u.email, ''), u.email_verified, u.image
	          FROM users u JOIN accounts a ON a.user_id = u.id
	          WHERE a.provider = ? AND a.provider_account_id = ?`
	return scanUser(a.db.QueryRowContext(ctx, query, provider, providerAccountID))
}

// UpdateUser overwrites the non-empty fields of u.
func (a *Adapter) UpdateUser(ctx context.Context, u *core.User) (*core.User, error) {
	query := `UPDATE users SET
	            name = COALESCE(NULLIF(?, ''), name),
	            email = COALESCE(NULLIF(?, ''), email),
	            email_verified = COALESCE(?, email_verified),
	            image = COALESCE(NULLIF(?, ''), image)
	          WHERE id = ?
	          RETURNING ` + userColumns
	updated, err := scanUser(a.db.QueryRowContext(ctx, query,
		u.Name, u.Email, nullableMillis(u.EmailVerified), u.Image, u.ID,
	))
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

// DeleteUser removes the user; accounts and sessions cascade.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
