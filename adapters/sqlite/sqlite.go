// Package sqlite stores users, accounts, sessions and verification tokens
// in a SQLite database through database/sql and mattn/go-sqlite3. It suits
// single-node deployments and local development.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/lborres/bantay/core"
)

type Adapter struct {
	db    *sql.DB
	newID func() string
}

// Ensure Adapter implements core.Adapter
var (
	_ core.Adapter        = (*Adapter)(nil)
	_ core.SessionSweeper = (*Adapter)(nil)
)

// Open opens the database at path with foreign keys enforced and a busy
// timeout, ready for New and Migrate.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// New returns an adapter on db. IDs are ULIDs so rows sort by creation.
func New(db *sql.DB) *Adapter {
	return &Adapter{
		db:    db,
		newID: func() string { return ulid.Make().String() },
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Times are stored as unix milliseconds.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
