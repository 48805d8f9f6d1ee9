package domain

import "time"

// PriceQuote is the most recent best ask observed for an outcome token.
// It is overwritten on every feed tick; no history is kept here.
type PriceQuote struct {
	TokenID    string
	BestAsk    float64
	AskSize    float64 // contracts available at the best ask
	ObservedAt time.Time
	Stale      bool // set when the feed connection was lost after this quote
}

// Usable reports whether the quote may drive a trading decision: it must not
// be flagged stale and must be younger than maxAge.
func (q PriceQuote) Usable(now time.Time, maxAge time.Duration) bool {
	if q.Stale || q.BestAsk <= 0 {
		return false
	}
	return now.Sub(q.ObservedAt) <= maxAge
}
