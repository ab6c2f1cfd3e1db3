package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/skyfold/console/internal/identity/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string

	// Serialises cache population. Reads never take this; a reader racing
	// a populator simply misses the fresh row and falls back to shape
	// detection, which is safe.
	writeMu sync.Mutex
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) FriendlyIDs() store.FriendlyIDs {
	return &friendlyIDsRepo{db: s.db, writeMu: &s.writeMu}
}
