package polymarket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainServer upgrades the connection and discards frames so client writes
// never back up.
func drainServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestPingNeverRacesSubscriptionWrites(t *testing.T) {
	srv := drainServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWSClient(wsURL, time.Second, time.Minute, logger)

	require.NoError(t, w.connect(context.Background()))
	defer w.dropConn()

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	require.NotNil(t, conn)

	// Writes arrive from two sides at once: subscription changes and the
	// keep-alive ping. The connection permits exactly one concurrent writer,
	// so an unserialized pair panics the process.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("tok-%d-%d", g, i)
				assert.NoError(t, w.Subscribe([]string{id}))
				assert.NoError(t, w.Unsubscribe([]string{id}))
			}
		}(g)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, w.ping(conn))
			}
		}()
	}
	wg.Wait()
}
