package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// ExecutionStore journals executions and their legs. It implements the
// executor's ExecutionRecorder interface.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// RecordExecution inserts an execution and both legs in one transaction.
func (s *ExecutionStore) RecordExecution(ctx context.Context, exec domain.Execution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, market_id, symbol, question, yes_ask, no_ask, combined, size_per_leg, outcome, simulated, started_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		exec.ID, exec.MarketID, exec.Symbol, exec.Question,
		exec.YesAsk, exec.NoAsk, exec.Combined, exec.SizePerLeg,
		string(exec.Outcome), exec.Simulated, exec.StartedAt, exec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}

	for _, leg := range []domain.LegResult{exec.Yes, exec.No} {
		legErr := ""
		if leg.Err != nil {
			legErr = leg.Err.Error()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_legs (execution_id, side, order_id, token_id, contracts, avg_price, cost, fee, unknown, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			exec.ID, string(leg.Side), leg.Fill.OrderID, leg.Fill.TokenID,
			leg.Fill.Contracts, leg.Fill.AvgPrice, leg.Fill.Cost, leg.Fill.Fee,
			leg.Unknown, legErr,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution leg: %w", err)
		}
	}

	return tx.Commit(ctx)
}
