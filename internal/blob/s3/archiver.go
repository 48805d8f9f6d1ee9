package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SnapshotSource produces the serialized ledger image. The ledger
// implements it.
type SnapshotSource interface {
	Snapshot() ([]byte, error)
}

// LedgerArchiver periodically uploads the full ledger image to object
// storage, giving an off-host history of positions and PnL. The local file
// remains the source of truth; archive failures are logged and retried on
// the next tick.
type LedgerArchiver struct {
	writer   *Writer
	source   SnapshotSource
	interval time.Duration
	logger   *slog.Logger
}

// NewLedgerArchiver creates a LedgerArchiver.
func NewLedgerArchiver(writer *Writer, source SnapshotSource, interval time.Duration, logger *slog.Logger) *LedgerArchiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &LedgerArchiver{
		writer:   writer,
		source:   source,
		interval: interval,
		logger:   logger.With(slog.String("component", "ledger_archiver")),
	}
}

// Run uploads a snapshot every interval until ctx is cancelled.
func (a *LedgerArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.archiveOnce(ctx); err != nil {
				a.logger.Error("snapshot upload failed", slog.Any("error", err))
			}
		}
	}
}

// archiveOnce serializes and uploads one snapshot, keyed by UTC timestamp
// so uploads never overwrite each other.
func (a *LedgerArchiver) archiveOnce(ctx context.Context) error {
	data, err := a.source.Snapshot()
	if err != nil {
		return fmt.Errorf("s3blob: snapshot: %w", err)
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("ledger/%s/positions-%s.json",
		now.Format("2006/01/02"), now.Format("150405"))

	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.Info("ledger snapshot archived",
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return nil
}
