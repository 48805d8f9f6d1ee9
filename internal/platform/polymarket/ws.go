package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pingPeriod is how often keep-alive pings are sent.
	pingPeriod = 30 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second
)

// BookHandler receives full orderbook snapshots from the market channel.
type BookHandler func(WSBookMessage)

// PriceChangeHandler receives incremental price-level updates.
type PriceChangeHandler func(WSPriceChange)

// WSClient maintains a connection to the CLOB market-data WebSocket. It
// owns the reconnect loop: on any read failure it drops the connection,
// waits a fixed backoff, redials, and replays the full tracked subscription
// set. A connection that stays silent past the idle timeout is cut and
// treated the same as a disconnect.
type WSClient struct {
	wsURL            string
	reconnectBackoff time.Duration
	idleTimeout      time.Duration
	logger           *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]struct{} // tracked asset IDs, replayed on reconnect

	// writeMu serializes frame writes: the connection permits one writer,
	// and pings race subscription changes.
	writeMu sync.Mutex

	handlerMu      sync.RWMutex
	bookHandlers   []BookHandler
	changeHandlers []PriceChangeHandler
	onDisconnect   []func()
}

// NewWSClient creates a market-data WebSocket client.
//
// wsURL is the market channel endpoint,
// e.g. "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string, reconnectBackoff, idleTimeout time.Duration, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:            wsURL,
		reconnectBackoff: reconnectBackoff,
		idleTimeout:      idleTimeout,
		logger:           logger.With(slog.String("component", "polymarket_ws")),
		subs:             make(map[string]struct{}),
	}
}

// OnBook registers a handler for full book snapshots.
func (w *WSClient) OnBook(h BookHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.bookHandlers = append(w.bookHandlers, h)
}

// OnPriceChange registers a handler for incremental level updates.
func (w *WSClient) OnPriceChange(h PriceChangeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.changeHandlers = append(w.changeHandlers, h)
}

// OnDisconnect registers a hook invoked every time the connection drops,
// before the reconnect backoff starts.
func (w *WSClient) OnDisconnect(h func()) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.onDisconnect = append(w.onDisconnect, h)
}

// Subscribe adds asset IDs to the tracked set and, when connected, sends an
// incremental subscribe. Already-tracked IDs are skipped, so repeated calls
// for the same market are harmless.
func (w *WSClient) Subscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fresh := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if _, ok := w.subs[id]; ok {
			continue
		}
		w.subs[id] = struct{}{}
		fresh = append(fresh, id)
	}

	if len(fresh) == 0 || w.conn == nil {
		// Nothing new, or not connected yet; the tracked set is replayed
		// on the next (re)connect.
		return nil
	}

	return w.sendLocked(wsSubscription{AssetIDs: fresh, Type: "market", Operation: "subscribe"})
}

// Unsubscribe removes asset IDs from the tracked set and, when connected,
// sends an incremental unsubscribe. Unknown IDs are ignored.
func (w *WSClient) Unsubscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	gone := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if _, ok := w.subs[id]; !ok {
			continue
		}
		delete(w.subs, id)
		gone = append(gone, id)
	}

	if len(gone) == 0 || w.conn == nil {
		return nil
	}

	return w.sendLocked(wsSubscription{AssetIDs: gone, Type: "market", Operation: "unsubscribe"})
}

// Run connects and processes messages until ctx is cancelled, reconnecting
// with a fixed backoff after every failure. It returns ctx.Err() on
// cancellation.
func (w *WSClient) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.connect(ctx); err != nil {
			w.logger.Warn("connect failed", slog.Any("error", err))
			w.fireDisconnect()
			if !sleepCtx(ctx, w.reconnectBackoff) {
				return ctx.Err()
			}
			continue
		}

		err := w.readLoop(ctx)
		w.dropConn()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.logger.Warn("connection lost, reconnecting",
			slog.Any("error", err),
			slog.Duration("backoff", w.reconnectBackoff))
		w.fireDisconnect()
		if !sleepCtx(ctx, w.reconnectBackoff) {
			return ctx.Err()
		}
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// connect dials the endpoint and replays the full tracked subscription set.
func (w *WSClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: dial: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.conn = conn
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(w.idleTimeout))
	})

	if len(w.subs) > 0 {
		ids := make([]string, 0, len(w.subs))
		for id := range w.subs {
			ids = append(ids, id)
		}
		if err := w.sendLocked(wsSubscription{AssetIDs: ids, Type: "market"}); err != nil {
			return fmt.Errorf("polymarket/ws: resubscribe: %w", err)
		}
		w.logger.Info("subscribed", slog.Int("assets", len(ids)))
	}

	return nil
}

// readLoop reads frames until the connection fails or ctx is cancelled.
// A ping goroutine keeps the connection alive; the read deadline enforces
// the idle timeout.
func (w *WSClient) readLoop(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go w.pingLoop(pingCtx, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(w.idleTimeout)); err != nil {
			return fmt.Errorf("polymarket/ws: set read deadline: %w", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("polymarket/ws: %w: %v", domain.ErrWSDisconnect, err)
		}

		w.dispatch(message)
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write
// fails. A failed ping surfaces as a read error via the deadline.
func (w *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ping(conn); err != nil {
				return
			}
		}
	}
}

// ping writes one keep-alive frame under the write mutex.
func (w *WSClient) ping(conn *websocket.Conn) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// dispatch parses a raw frame and routes each event to its handlers. The
// market channel delivers both single events and arrays of events.
func (w *WSClient) dispatch(raw []byte) {
	events := []json.RawMessage{json.RawMessage(raw)}
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &events); err != nil {
			return
		}
	}

	for _, ev := range events {
		var envelope struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(ev, &envelope); err != nil {
			continue
		}

		switch envelope.EventType {
		case "book":
			var book WSBookMessage
			if err := json.Unmarshal(ev, &book); err != nil {
				continue
			}
			w.handlerMu.RLock()
			handlers := w.bookHandlers
			w.handlerMu.RUnlock()
			for _, h := range handlers {
				h(book)
			}

		case "price_change":
			var pc WSPriceChange
			if err := json.Unmarshal(ev, &pc); err != nil {
				continue
			}
			w.handlerMu.RLock()
			handlers := w.changeHandlers
			w.handlerMu.RUnlock()
			for _, h := range handlers {
				h(pc)
			}
		}
	}
}

// sendLocked writes a JSON control message. Caller must hold w.mu.
func (w *WSClient) sendLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// dropConn closes and clears the current connection.
func (w *WSClient) dropConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		w.writeMu.Unlock()
		_ = w.conn.Close()
		w.conn = nil
	}
}

// fireDisconnect invokes the registered disconnect hooks.
func (w *WSClient) fireDisconnect() {
	w.handlerMu.RLock()
	hooks := w.onDisconnect
	w.handlerMu.RUnlock()
	for _, h := range hooks {
		h()
	}
}

// sleepCtx waits d or until ctx is cancelled; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
