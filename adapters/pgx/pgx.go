// Package pgx stores users, accounts, sessions and verification tokens in
// PostgreSQL through a pgx connection pool.
package pgx

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lborres/bantay/core"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a broken unique
// constraint.
const uniqueViolation = "23505"

type Adapter struct {
	pool  *pgxpool.Pool
	newID func() string
}

// Ensure Adapter implements core.Adapter
var (
	_ core.Adapter        = (*Adapter)(nil)
	_ core.SessionSweeper = (*Adapter)(nil)
)

// New returns an adapter on pool. The schema is created by Migrate.
func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool:  pool,
		newID: uuid.NewString,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
