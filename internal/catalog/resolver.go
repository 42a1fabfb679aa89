package catalog

import (
	"sync"
	"time"

	"github.com/labtrace/lims/pkg/interfaces"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/types"
)

// Resolver implements the CatalogService interface with a read-through cache.
// Catalog entries change rarely, so a short TTL keeps the hot allocation path
// off the database. Negative results are not cached; an unresolvable test is
// already handled fail-open by every caller.
type Resolver struct {
	repository interfaces.CatalogRepository
	logger     *logger.Logger
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[string]cachedEntry
}

type cachedEntry struct {
	entry     *types.TestCatalogEntry
	fetchedAt time.Time
}

// NewResolver creates a new catalog resolver
func NewResolver(repo interfaces.CatalogRepository, log *logger.Logger, ttl time.Duration) *Resolver {
	return &Resolver{
		repository: repo,
		logger:     log,
		ttl:        ttl,
		cache:      make(map[string]cachedEntry),
	}
}

// Resolve returns the catalog definition for a test ID
func (r *Resolver) Resolve(testID string) (*types.TestCatalogEntry, error) {
	r.mu.RLock()
	cached, ok := r.cache[testID]
	r.mu.RUnlock()

	if ok && time.Since(cached.fetchedAt) < r.ttl {
		return cached.entry, nil
	}

	entry, err := r.repository.GetEntryByID(testID)
	if err != nil {
		if types.IsErrorCode(err, types.ErrCodeNotFound) {
			r.logger.Warnf("Test %s not in catalog", testID)
		}
		return nil, err
	}

	r.mu.Lock()
	r.cache[testID] = cachedEntry{entry: entry, fetchedAt: time.Now()}
	r.mu.Unlock()

	return entry, nil
}

// Invalidate drops a cached entry, forcing the next Resolve to hit the store.
func (r *Resolver) Invalidate(testID string) {
	r.mu.Lock()
	delete(r.cache, testID)
	r.mu.Unlock()
}
