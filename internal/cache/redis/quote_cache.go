package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/feed"
)

// quoteTTL expires mirrored quotes shortly after their market's interval
// ends, so the cache cannot serve prices for retired markets.
const quoteTTL = 20 * time.Minute

// QuoteCache mirrors the in-process quote board into Redis hashes at
// "quote:{tokenID}", for dashboards and ad-hoc inspection. The board stays
// authoritative; cache write failures only cost visibility.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(tokenID string) string {
	return "quote:" + tokenID
}

// PutQuote stores the latest best ask for a token.
func (qc *QuoteCache) PutQuote(ctx context.Context, q domain.PriceQuote) error {
	key := quoteKey(q.TokenID)
	fields := map[string]interface{}{
		"best_ask": strconv.FormatFloat(q.BestAsk, 'f', -1, 64),
		"ask_size": strconv.FormatFloat(q.AskSize, 'f', -1, 64),
		"ts":       strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put quote %s: %w", q.TokenID, err)
	}
	return nil
}

// Compile-time interface check.
var _ feed.QuoteSink = (*QuoteCache)(nil)
