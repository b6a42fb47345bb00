// Package engine provides a database abstraction for the audit stores,
// supporting sqlite (default) and postgres.
package engine

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"      // postgres driver loaded here
	_ "modernc.org/sqlite"     // sqlite driver loaded here
)

// Type is a type of database engine
type Type string

// enum of supported database engines
const (
	Unknown  Type = ""
	Sqlite   Type = "sqlite"
	Postgres Type = "postgres"
)

// SQL is a wrapper for sqlx.DB with type.
// Type allows distinguishing between different database engines.
type SQL struct {
	sqlx.DB
	dbType Type
}

// NewSqlite creates a new sqlite database
func NewSqlite(file string) (*SQL, error) {
	db, err := sqlx.Connect("sqlite", file)
	if err != nil {
		return &SQL{}, fmt.Errorf("failed to connect to sqlite %s: %w", file, err)
	}
	return &SQL{DB: *db, dbType: Sqlite}, nil
}

// NewPostgres creates a new postgres database from a connection string
func NewPostgres(connStr string) (*SQL, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return &SQL{}, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &SQL{DB: *db, dbType: Postgres}, nil
}

// Type returns the database engine type
func (e *SQL) Type() Type {
	return e.dbType
}

// MakeLock creates a new lock for the database engine.
// Sqlite needs app-level locking for concurrent writers, other engines don't.
func (e *SQL) MakeLock() RWLocker {
	if e.dbType == Sqlite {
		return new(sync.RWMutex)
	}
	return &NoopLocker{}
}

// RWLocker is a read-write locker interface
type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

// NoopLocker is a no-op locker
type NoopLocker struct{}

// Lock is a no-op
func (NoopLocker) Lock() {}

// Unlock is a no-op
func (NoopLocker) Unlock() {}

// RLock is a no-op
func (NoopLocker) RLock() {}

// RUnlock is a no-op
func (NoopLocker) RUnlock() {}
