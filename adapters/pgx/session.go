package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/bantay/core"
)

func scanSession(row pgx.Row) (*core.Session, error) {
	s := &core.Session{}
	if err := row.Scan(&s.ID, &s.SessionToken, &s.UserID, &s.Expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) (*core.Session, error) {
	id := s.ID
	if id == "" {
		id = a.newID()
	}
	query := `INSERT INTO sessions (id, session_token, user_id, expires)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, session_token, user_id, expires`
	return scanSession(a.pool.QueryRow(ctx, query, id, s.SessionToken, s.UserID, s.Expires))
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.Session, *core.User, error) {
	query := `SELECT s.id, s.session_token, s.user_id, s.expires,
	                 u.id, u.name, COALESCE(u.email, ''), u.email_verified, u.image
	          FROM sessions s JOIN users u ON u.id = s.user_id
	          WHERE s.session_token = $1`

	s := &core.Session{}
	u := &core.User{}
	err := a.pool.QueryRow(ctx, query, sessionToken).Scan(
		&s.ID, &s.SessionToken, &s.UserID, &s.Expires,
		&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return s, u, nil
}

// UpdateSession moves the expiry of the session named by s.SessionToken.
// It returns nil when no such session exists.
func (a *Adapter) UpdateSession(ctx context.Context, s *core.Session) (*core.Session, error) {
	query := `UPDATE sessions SET expires = COALESCE($2, expires)
	          WHERE session_token = $1
	          RETURNING id, session_token, user_id, expires`
	var expires any
	if !s.Expires.IsZero() {
		expires = s.Expires
	}
	return scanSession(a.pool.QueryRow(ctx, query, s.SessionToken, expires))
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE session_token = $1`, sessionToken)
	return err
}

// DeleteExpiredSessions removes every session that expired before now and
// reports how many were dropped.
func (a *Adapter) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE expires <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
