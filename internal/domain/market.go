// Package domain defines the core types shared by every layer of the bot:
// markets, quotes, positions, fills, and execution outcomes. It has no
// dependencies on transport or storage packages.
package domain

import (
	"fmt"
	"time"
)

// MarketInterval is the fixed lifetime of an Up/Down market.
const MarketInterval = 15 * time.Minute

// Symbols are the crypto assets with Up/Down markets on the venue.
var Symbols = []string{"btc", "eth", "sol", "xrp"}

// Market describes one discovered Up/Down market and its two outcome tokens.
// A market is uniquely identified by (Symbol, IntervalStart).
type Market struct {
	ID            string
	Symbol        string // "btc", "eth", "sol", "xrp"
	Slug          string
	Question      string
	IntervalStart time.Time
	IntervalEnd   time.Time
	YesTokenID    string // "Up" outcome token
	NoTokenID     string // "Down" outcome token
}

// Slug builds the venue slug for a symbol's market whose interval begins at
// start, e.g. "btc-updown-15m-1766099700".
func Slug(symbol string, start time.Time) string {
	return fmt.Sprintf("%s-updown-15m-%d", symbol, start.Unix())
}

// IntervalStartAt returns the start of the interval containing t.
func IntervalStartAt(t time.Time) time.Time {
	secs := int64(MarketInterval / time.Second)
	return time.Unix(t.Unix()/secs*secs, 0).UTC()
}

// Started reports whether the market's interval has begun.
func (m *Market) Started(now time.Time) bool {
	return !now.Before(m.IntervalStart)
}

// Expired reports whether the market's interval has ended.
func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.IntervalEnd)
}

// TokenIDs returns both outcome token IDs, YES first.
func (m *Market) TokenIDs() []string {
	return []string{m.YesTokenID, m.NoTokenID}
}

// Key returns the identity key for discovery idempotence.
func (m *Market) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Slug
}
