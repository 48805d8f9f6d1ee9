// Package feed aggregates real-time best-ask quotes for the outcome tokens
// of every active Up/Down market.
package feed

import (
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Board is the in-memory quote table keyed by outcome token ID. Writers are
// the WebSocket feed; readers are the arbitrage detector and the monitoring
// surface. Updates carry venue timestamps and are applied monotonically:
// an update older than the stored quote is dropped.
type Board struct {
	mu     sync.RWMutex
	quotes map[string]domain.PriceQuote
}

// NewBoard creates an empty quote board.
func NewBoard() *Board {
	return &Board{quotes: make(map[string]domain.PriceQuote)}
}

// Track registers token IDs on the board. Tracking is idempotent; an
// already-tracked token keeps its current quote.
func (b *Board) Track(tokenIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range tokenIDs {
		if _, ok := b.quotes[id]; !ok {
			b.quotes[id] = domain.PriceQuote{TokenID: id, Stale: true}
		}
	}
}

// Drop removes token IDs from the board. Unknown IDs are ignored.
func (b *Board) Drop(tokenIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range tokenIDs {
		delete(b.quotes, id)
	}
}

// Apply records a best-ask observation for a tracked token. It reports
// whether the quote was accepted: updates for untracked tokens and updates
// older than the stored quote are rejected.
func (b *Board) Apply(tokenID string, bestAsk, askSize float64, observedAt time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.quotes[tokenID]
	if !ok {
		return false
	}
	if !q.Stale && observedAt.Before(q.ObservedAt) {
		return false
	}

	b.quotes[tokenID] = domain.PriceQuote{
		TokenID:    tokenID,
		BestAsk:    bestAsk,
		AskSize:    askSize,
		ObservedAt: observedAt,
	}
	return true
}

// MarkAllStale flags every tracked quote as unusable. Called on feed
// disconnect so the detector never trades on frozen prices.
func (b *Board) MarkAllStale() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, q := range b.quotes {
		q.Stale = true
		b.quotes[id] = q
	}
}

// Get returns the current quote for a token and whether it is tracked.
func (b *Board) Get(tokenID string) (domain.PriceQuote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[tokenID]
	return q, ok
}

// Pair returns both quotes of a market in one lock acquisition, so the
// detector evaluates a consistent snapshot.
func (b *Board) Pair(yesTokenID, noTokenID string) (yes, no domain.PriceQuote, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	yes, okYes := b.quotes[yesTokenID]
	no, okNo := b.quotes[noTokenID]
	return yes, no, okYes && okNo
}

// Snapshot returns a copy of every tracked quote, for the reporter and the
// monitoring surface.
func (b *Board) Snapshot() []domain.PriceQuote {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.PriceQuote, 0, len(b.quotes))
	for _, q := range b.quotes {
		out = append(out, q)
	}
	return out
}
