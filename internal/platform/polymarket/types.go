// Package polymarket contains the REST and WebSocket clients for the
// Polymarket Gamma and CLOB APIs.
package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false"/"1") so Gamma
// responses work whether a flag is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// stringArray unmarshals a JSON string array that Gamma frequently
// double-encodes as a string, e.g. "[\"123\",\"456\"]".
type stringArray []string

func (a *stringArray) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*a = direct
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = nil
		return nil
	}
	var inner []string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return err
	}
	*a = inner
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket is a market as returned by the Gamma API. Only the fields the
// bot reads are mapped; Up/Down markets always carry exactly two outcome
// tokens, Up first.
type APIMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	Active        flexBool    `json:"active"`
	Closed        bool        `json:"closed"`
	ClobTokenIDs  stringArray `json:"clobTokenIds"`
	Outcomes      stringArray `json:"outcomes"`
	OutcomePrices stringArray `json:"outcomePrices"`
	EndDateISO    string      `json:"endDateIso"`
}

// ToDomainMarket converts a Gamma market into a domain.Market for the given
// symbol and interval start. Returns ErrNotFound-compatible zero market when
// the two CLOB token IDs are missing.
func (m *APIMarket) ToDomainMarket(symbol string, intervalStart time.Time) (domain.Market, error) {
	if len(m.ClobTokenIDs) < 2 {
		return domain.Market{}, errMissingTokens(m.Slug)
	}

	return domain.Market{
		ID:            m.ID,
		Symbol:        symbol,
		Slug:          m.Slug,
		Question:      m.Question,
		IntervalStart: intervalStart,
		IntervalEnd:   intervalStart.Add(domain.MarketInterval),
		YesTokenID:    m.ClobTokenIDs[0],
		NoTokenID:     m.ClobTokenIDs[1],
	}, nil
}

// Resolution derives settlement state from a Gamma market. Resolved markets
// report outcome prices pinned to "1" and "0".
func (m *APIMarket) Resolution() MarketResolution {
	res := MarketResolution{Closed: m.Closed}
	if len(m.OutcomePrices) >= 1 {
		if p, err := strconv.ParseFloat(m.OutcomePrices[0], 64); err == nil && p >= 0.5 {
			res.YesWon = true
			res.Priced = true
		} else if err == nil {
			res.Priced = true
		}
	}
	return res
}

// MarketResolution is the settlement state of a market.
type MarketResolution struct {
	Closed bool // market is closed on the venue
	Priced bool // outcome prices were present and parseable
	YesWon bool // the Up/Yes outcome won (meaningful when Closed && Priced)
}

// Resolved reports whether the market has settled with a usable outcome.
func (r MarketResolution) Resolved() bool { return r.Closed && r.Priced }

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the response from placing an order on the CLOB.
// For marketable (FAK) orders makingAmount/takingAmount report the
// immediately-matched quantities.
type APIOrderResult struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
	OrderID      string `json:"orderID,omitempty"`
	Status       string `json:"status,omitempty"`
	MakingAmount string `json:"makingAmount,omitempty"`
	TakingAmount string `json:"takingAmount,omitempty"`
}

// ToFill converts an order result into a domain.Fill for a BUY order, where
// makingAmount is the collateral spent and takingAmount the contracts
// received. A rejected or unmatched order yields a zero fill.
func (r *APIOrderResult) ToFill(tokenID string) domain.Fill {
	fill := domain.Fill{OrderID: r.OrderID, TokenID: tokenID}
	if !r.Success {
		return fill
	}

	fill.Cost, _ = strconv.ParseFloat(r.MakingAmount, 64)
	fill.Contracts, _ = strconv.ParseFloat(r.TakingAmount, 64)
	if fill.Contracts > 0 {
		fill.AvgPrice = fill.Cost / fill.Contracts
	}
	return fill
}

// --------------------------------------------------------------------------
// WebSocket DTOs (market channel)
// --------------------------------------------------------------------------

// wsSubscription is the JSON payload sent on connect to subscribe asset IDs
// on the market channel, and for incremental (un)subscribe operations.
type wsSubscription struct {
	AssetIDs  []string `json:"assets_ids"`
	Type      string   `json:"type"`                // "market"
	Operation string   `json:"operation,omitempty"` // "subscribe" / "unsubscribe"
}

// WSBookMessage is a full orderbook snapshot for one asset.
type WSBookMessage struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// WSPriceLevel is one bid/ask level in a book snapshot.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// WSPriceChange is an incremental price-level update.
type WSPriceChange struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Price     string `json:"price"`
	Size      string `json:"size"` // "0" means level removed
	Timestamp string `json:"timestamp"`
}

// BookUpdate is the normalized best-ask view of a book event that the feed
// layer consumes.
type BookUpdate struct {
	AssetID    string
	BestAsk    float64
	AskSize    float64
	ObservedAt time.Time
}

// ToBookUpdate reduces a snapshot to its best ask. A book with no asks
// yields BestAsk 0, which downstream treats as unusable.
func (b *WSBookMessage) ToBookUpdate() BookUpdate {
	u := BookUpdate{AssetID: b.AssetID, ObservedAt: parseWSTimestamp(b.Timestamp)}
	for _, lvl := range b.Asks {
		p, errP := strconv.ParseFloat(lvl.Price, 64)
		s, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil || s <= 0 {
			continue
		}
		if u.BestAsk == 0 || p < u.BestAsk {
			u.BestAsk = p
			u.AskSize = s
		}
	}
	return u
}

// parseWSTimestamp accepts Unix milliseconds or seconds, falling back to the
// local clock when the field is absent or malformed.
func parseWSTimestamp(ts string) time.Time {
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Now()
	}
	// Millisecond timestamps are 13 digits for current dates.
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
