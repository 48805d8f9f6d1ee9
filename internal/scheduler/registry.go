package scheduler

import (
	"sync"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Registry is the set of currently tradable markets, indexed by market ID
// and by outcome token ID so the detector can resolve a quote tick back to
// its market.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]domain.Market
	byToken map[string]string // token ID -> market ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]domain.Market),
		byToken: make(map[string]string),
	}
}

// Add registers a market. It reports whether the market was new; re-adding
// an already-registered market ID is a no-op, which keeps double discovery
// harmless.
func (r *Registry) Add(m domain.Market) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; ok {
		return false
	}
	r.byID[m.ID] = m
	r.byToken[m.YesTokenID] = m.ID
	r.byToken[m.NoTokenID] = m.ID
	return true
}

// Remove drops a market and its token index entries. Unknown IDs are ignored.
func (r *Registry) Remove(marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[marketID]
	if !ok {
		return
	}
	delete(r.byID, marketID)
	delete(r.byToken, m.YesTokenID)
	delete(r.byToken, m.NoTokenID)
}

// Get returns a market by ID.
func (r *Registry) Get(marketID string) (domain.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[marketID]
	return m, ok
}

// ByToken resolves an outcome token to its market.
func (r *Registry) ByToken(tokenID string) (domain.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[tokenID]
	if !ok {
		return domain.Market{}, false
	}
	m, ok := r.byID[id]
	return m, ok
}

// Active returns a snapshot of every registered market.
func (r *Registry) Active() []domain.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Market, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}
	return out
}

// Len returns the number of registered markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
