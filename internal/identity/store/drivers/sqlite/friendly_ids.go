package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/skyfold/console/internal/identity/store"
)

type friendlyIDsRepo struct {
	db      *sql.DB
	writeMu *sync.Mutex
}

// findQuery orders matches so that a key match beats a slug match beats a
// name match, with insertion order (rowid) as the final tie-break. LIMIT 2
// lets us notice when an identifier matched more than one row.
const findQuery = `
SELECT class, scope, key, slug, name, endpoint
  FROM friendly_ids
 WHERE class = ?
   AND endpoint = ?
   AND (? = '' OR scope = ?)
   AND (key = ? COLLATE NOCASE OR slug = ? COLLATE NOCASE OR name = ? COLLATE NOCASE)
 ORDER BY CASE
            WHEN key = ? COLLATE NOCASE THEN 0
            WHEN slug = ? COLLATE NOCASE THEN 1
            ELSE 2
          END,
          rowid
 LIMIT 2`

func (r *friendlyIDsRepo) Find(
	ctx context.Context,
	class domain.ObjectClass,
	identifier, endpoint, parentScope string,
) (domain.FriendlyIDEntry, error) {
	rows, err := r.db.QueryContext(ctx, findQuery,
		string(class), endpoint,
		parentScope, parentScope,
		identifier, identifier, identifier,
		identifier, identifier,
	)
	if err != nil {
		return domain.FriendlyIDEntry{}, err
	}
	defer rows.Close()

	var matches []domain.FriendlyIDEntry
	for rows.Next() {
		var e domain.FriendlyIDEntry
		var cls string
		if err := rows.Scan(&cls, &e.Scope, &e.Key, &e.Slug, &e.Name, &e.Endpoint); err != nil {
			return domain.FriendlyIDEntry{}, err
		}
		e.Class = domain.ObjectClass(cls)
		matches = append(matches, e)
	}
	if err := rows.Err(); err != nil {
		return domain.FriendlyIDEntry{}, err
	}

	switch len(matches) {
	case 0:
		return domain.FriendlyIDEntry{}, store.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		// Take the highest-ranked match and surface the ambiguity in
		// the logs.
		slog.Debug("ambiguous friendly id",
			"class", class,
			"identifier", identifier,
			"endpoint", endpoint,
		)
		return matches[0], nil
	}
}

func (r *friendlyIDsRepo) Upsert(ctx context.Context, e domain.FriendlyIDEntry) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return upsertOne(ctx, r.db, e)
}

func (r *friendlyIDsRepo) BulkUpsert(ctx context.Context, entries []domain.FriendlyIDEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	for _, e := range entries {
		if err := upsertOne(ctx, tx, e); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertOne(ctx context.Context, db execer, e domain.FriendlyIDEntry) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO friendly_ids (class, scope, key, slug, name, endpoint)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (class, endpoint, key) DO UPDATE
   SET scope = excluded.scope,
       slug  = excluded.slug,
       name  = excluded.name`,
		string(e.Class), e.Scope, e.Key, e.Slug, e.Name, e.Endpoint,
	)
	return err
}
