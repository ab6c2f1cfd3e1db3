package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/skyfold/console/internal/identity/store"
)

// hex32Pattern matches the undashed 32-hex-char id form the backend hands
// out. The dashed canonical form is checked with uuid.Parse instead.
var hex32Pattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// Resolver maps a request-supplied identifier (raw backend id, slug or
// display name) to a canonical {id, fid, name} record using the friendly-id
// cache. It never writes; the cache populator owns the table.
type Resolver struct {
	IDs      store.FriendlyIDs
	Endpoint string // backend instance the cached mappings are valid for
}

// Resolve looks identifier up for the given class. parentScope narrows
// project lookups to one domain and is ignored for domains.
//
// A cache hit yields the full record. On a miss the identifier's shape
// decides: backend-id-shaped strings are taken as the canonical id, anything
// else as a display name only.
func (r *Resolver) Resolve(
	ctx context.Context,
	class domain.ObjectClass,
	identifier, parentScope string,
) (domain.ResolvedScope, error) {
	if identifier == "" {
		return domain.ResolvedScope{}, nil
	}

	entry, err := r.IDs.Find(ctx, class, identifier, r.Endpoint, parentScope)
	switch {
	case err == nil:
		return domain.ResolvedScope{ID: entry.Key, FID: entry.Slug, Name: entry.Name}, nil
	case errors.Is(err, store.ErrNotFound):
		// fall through to shape detection
	default:
		return domain.ResolvedScope{}, fmt.Errorf("friendly id lookup for %q: %w", identifier, err)
	}

	if looksLikeBackendID(identifier) {
		return domain.ResolvedScope{ID: identifier}, nil
	}
	return domain.ResolvedScope{Name: identifier}, nil
}

// looksLikeBackendID reports whether s has the shape of a backend id: 32 hex
// chars, or the canonical dashed 8-4-4-4-12 UUID layout.
func looksLikeBackendID(s string) bool {
	if hex32Pattern.MatchString(s) {
		return true
	}
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
