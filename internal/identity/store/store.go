package store

import (
	"context"
	"errors"

	"github.com/skyfold/console/internal/identity/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface for the friendly-id cache.
// Concrete drivers (sqlite) implement this.
type Store interface {
	FriendlyIDs() FriendlyIDs

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// FriendlyIDs is the cached id/slug/name mapping table. Find is the hot,
// read-only path used by every request; the write operations exist for the
// cache populator only and must never run on the request path.
type FriendlyIDs interface {
	// Find returns the entry for class+endpoint whose key, slug or name
	// equals identifier case-insensitively. parentScope narrows project
	// lookups to one domain; pass "" to match any. When several rows
	// match, key matches win over slug matches over name matches, oldest
	// row first.
	Find(ctx context.Context, class domain.ObjectClass, identifier, endpoint, parentScope string) (domain.FriendlyIDEntry, error)

	// Upsert inserts or refreshes a single mapping, keyed on
	// (class, endpoint, key).
	Upsert(ctx context.Context, e domain.FriendlyIDEntry) error

	// BulkUpsert refreshes a batch of mappings in one transaction. Writers
	// are serialised behind a single lock; entries absent from the batch
	// are left in place (the cache never deletes).
	BulkUpsert(ctx context.Context, entries []domain.FriendlyIDEntry) error
}
