package feed

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
)

// Tick announces that a token's quote changed. The detector re-evaluates
// the owning market on each tick.
type Tick struct {
	TokenID string
	At      time.Time
}

// QuoteSink mirrors accepted quotes to an external store (the Redis quote
// cache). A nil sink disables mirroring.
type QuoteSink interface {
	PutQuote(ctx context.Context, q domain.PriceQuote) error
}

// WSFeed bridges the market-data WebSocket onto the Board. It keeps a
// per-token ask ladder so incremental price_change events can recompute the
// best ask without waiting for the next full snapshot, and emits a Tick for
// every accepted update.
type WSFeed struct {
	ws     *polymarket.WSClient
	board  *Board
	sink   QuoteSink
	logger *slog.Logger

	ticks chan Tick

	mu      sync.Mutex
	ladders map[string]map[float64]float64 // token ID -> ask price -> size
}

// NewWSFeed wires a WSClient to a Board. sink may be nil.
func NewWSFeed(ws *polymarket.WSClient, board *Board, sink QuoteSink, logger *slog.Logger) *WSFeed {
	f := &WSFeed{
		ws:      ws,
		board:   board,
		sink:    sink,
		logger:  logger.With(slog.String("component", "ws_feed")),
		ticks:   make(chan Tick, 1024),
		ladders: make(map[string]map[float64]float64),
	}

	ws.OnBook(f.handleBook)
	ws.OnPriceChange(f.handlePriceChange)
	ws.OnDisconnect(func() {
		f.board.MarkAllStale()
		f.logger.Warn("feed disconnected, all quotes marked stale")
	})

	return f
}

// Ticks is the stream of quote-change notifications. The channel is
// buffered; when the detector falls behind, ticks are dropped rather than
// blocking the read loop, and the next update for the token re-triggers it.
func (f *WSFeed) Ticks() <-chan Tick { return f.ticks }

// Subscribe starts streaming both outcome tokens of a market. Safe to call
// repeatedly for the same market.
func (f *WSFeed) Subscribe(m domain.Market) error {
	f.board.Track(m.YesTokenID, m.NoTokenID)
	return f.ws.Subscribe(m.TokenIDs())
}

// Unsubscribe stops streaming a market's tokens and drops their quotes.
func (f *WSFeed) Unsubscribe(m domain.Market) error {
	err := f.ws.Unsubscribe(m.TokenIDs())
	f.board.Drop(m.YesTokenID, m.NoTokenID)

	f.mu.Lock()
	delete(f.ladders, m.YesTokenID)
	delete(f.ladders, m.NoTokenID)
	f.mu.Unlock()

	return err
}

// Run processes the WebSocket until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	f.logger.Info("feed started")
	defer f.logger.Info("feed stopped")
	return f.ws.Run(ctx)
}

// --------------------------------------------------------------------------
// WebSocket handlers
// --------------------------------------------------------------------------

// handleBook replaces the token's ask ladder with a full snapshot.
func (f *WSFeed) handleBook(book polymarket.WSBookMessage) {
	ladder := make(map[float64]float64, len(book.Asks))
	for _, lvl := range book.Asks {
		p, errP := strconv.ParseFloat(lvl.Price, 64)
		s, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil || s <= 0 {
			continue
		}
		ladder[p] = s
	}

	f.mu.Lock()
	f.ladders[book.AssetID] = ladder
	f.mu.Unlock()

	u := book.ToBookUpdate()
	f.publish(u.AssetID, u.BestAsk, u.AskSize, u.ObservedAt)
}

// handlePriceChange patches one SELL level in the ladder and republishes
// the best ask. BUY-side changes never move the ask and are skipped.
func (f *WSFeed) handlePriceChange(pc polymarket.WSPriceChange) {
	if pc.Side != "SELL" {
		return
	}

	price, errP := strconv.ParseFloat(pc.Price, 64)
	size, errS := strconv.ParseFloat(pc.Size, 64)
	if errP != nil || errS != nil || price <= 0 {
		return
	}

	f.mu.Lock()
	ladder, ok := f.ladders[pc.AssetID]
	if !ok {
		// No snapshot yet for this token; wait for the first book event.
		f.mu.Unlock()
		return
	}
	if size <= 0 {
		delete(ladder, price)
	} else {
		ladder[price] = size
	}
	bestAsk, askSize := 0.0, 0.0
	for p, s := range ladder {
		if bestAsk == 0 || p < bestAsk {
			bestAsk, askSize = p, s
		}
	}
	f.mu.Unlock()

	f.publish(pc.AssetID, bestAsk, askSize, parseChangeTimestamp(pc.Timestamp))
}

// publish applies a quote to the board, mirrors it, and emits a tick.
func (f *WSFeed) publish(tokenID string, bestAsk, askSize float64, observedAt time.Time) {
	if !f.board.Apply(tokenID, bestAsk, askSize, observedAt) {
		return
	}

	if f.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := f.sink.PutQuote(ctx, domain.PriceQuote{
			TokenID:    tokenID,
			BestAsk:    bestAsk,
			AskSize:    askSize,
			ObservedAt: observedAt,
		}); err != nil {
			f.logger.Debug("quote sink write failed", slog.Any("error", err))
		}
		cancel()
	}

	select {
	case f.ticks <- Tick{TokenID: tokenID, At: observedAt}:
	default:
		f.logger.Debug("tick channel full, dropping", slog.String("token_id", tokenID))
	}
}

// parseChangeTimestamp mirrors the WS timestamp parsing for change events.
func parseChangeTimestamp(ts string) time.Time {
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Now()
	}
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
