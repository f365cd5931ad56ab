package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lborres/bantay/core"
)

const sessionColumns = `id, session_token, user_id, expires`

func scanSession(row scanner) (*core.Session, error) {
	s := &core.Session{}
	var expires int64
	if err := row.Scan(&s.ID, &s.SessionToken, &s.UserID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Expires = fromMillis(expires)
	return s, nil
}

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) (*core.Session, error) {
	id := s.ID
	if id == "" {
		id = a.newID()
	}
	query := `INSERT INTO sessions (id, session_token, user_id, expires)
	          VALUES (?, ?, ?, ?)
	          RETURNING ` + sessionColumns
	return scanSession(a.db.QueryRowContext(ctx, query, id, s.SessionToken, s.UserID, toMillis(s.Expires)))
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.Session, *core.User, error) {
	query := `SELECT s.id, s.session_token, s.user_id, s.expires,
	                 u.id, u.name, COALESCE(u.email, ''), u.email_verified, u.image
	          FROM sessions s JOIN users u ON u.id = s.user_id
	          WHERE s.session_token = ?`

	s := &core.Session{}
	u := &core.User{}
	var expires int64
	var verified sql.NullInt64
	err := a.db.QueryRowContext(ctx, query, sessionToken).Scan(
		&s.ID, &s.SessionToken, &s.UserID, &expires,
		&u.ID, &u.Name, &u.Email, &verified, &u.Image,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	s.Expires = fromMillis(expires)
	if verified.Valid {
		t := fromMillis(verified.Int64)
		u.EmailVerified = &t
	}
	return s, u, nil
}

// UpdateSession moves the expiry of the session named by s.SessionToken.
// It returns nil when no such session exists.
func (a *Adapter) UpdateSession(ctx context.Context, s *core.Session) (*core.Session, error) {
	var expires sql.NullInt64
	if !s.Expires.IsZero() {
		expires = sql.NullInt64{Int64: toMillis(s.Expires), Valid: true}
	}
	query := `UPDATE sessions SET expires = COALESCE(?, expires)
	          WHERE session_token = ?
	          RETURNING ` + sessionColumns
	return scanSession(a.db.QueryRowContext(ctx, query, expires, s.SessionToken))
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_token = ?`, sessionToken)
	return err
}

// DeleteExpiredSessions removes sessions that expired before now and
// reports how many were dropped.
func (a *Adapter) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
