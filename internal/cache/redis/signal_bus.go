package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Channel names published by the bot.
const (
	ChannelExecutions  = "updown:executions"
	ChannelResolutions = "updown:resolutions"
)

// SignalBus publishes bot events over Redis Pub/Sub so external consumers
// (dashboards, alert pipelines) can follow trading activity without touching
// the process. It implements the executor's ExecutionRecorder interface.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// executionEvent is the JSON shape published to ChannelExecutions.
type executionEvent struct {
	ID           string    `json:"id"`
	MarketID     string    `json:"market_id"`
	Symbol       string    `json:"symbol"`
	Combined     float64   `json:"combined"`
	SizePerLeg   float64   `json:"size_per_leg"`
	YesContracts float64   `json:"yes_contracts"`
	NoContracts  float64   `json:"no_contracts"`
	Outcome      string    `json:"outcome"`
	Simulated    bool      `json:"simulated"`
	StartedAt    time.Time `json:"started_at"`
}

// RecordExecution publishes an execution event.
func (sb *SignalBus) RecordExecution(ctx context.Context, exec domain.Execution) error {
	payload, err := json.Marshal(executionEvent{
		ID:           exec.ID,
		MarketID:     exec.MarketID,
		Symbol:       exec.Symbol,
		Combined:     exec.Combined,
		SizePerLeg:   exec.SizePerLeg,
		YesContracts: exec.Yes.Fill.Contracts,
		NoContracts:  exec.No.Fill.Contracts,
		Outcome:      string(exec.Outcome),
		Simulated:    exec.Simulated,
		StartedAt:    exec.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal execution event: %w", err)
	}
	return sb.Publish(ctx, ChannelExecutions, payload)
}

// PublishResolution publishes a settlement event.
func (sb *SignalBus) PublishResolution(ctx context.Context, pos domain.Position, yesWon bool) error {
	pnl := 0.0
	if pos.RealizedPnL != nil {
		pnl = *pos.RealizedPnL
	}
	payload, err := json.Marshal(map[string]any{
		"market_id":    pos.MarketID,
		"yes_won":      yesWon,
		"realized_pnl": pnl,
		"resolved_at":  pos.ResolvedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal resolution event: %w", err)
	}
	return sb.Publish(ctx, ChannelResolutions, payload)
}

// Publish sends a raw payload to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}
