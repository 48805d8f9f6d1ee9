package ledger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	l, err := Open(path, testLogger())
	require.NoError(t, err)
	return l, path
}

func testExecution(marketID string) domain.Execution {
	return domain.Execution{
		ID:        "exec-1",
		MarketID:  marketID,
		Symbol:    "btc",
		Question:  "Bitcoin Up or Down?",
		StartedAt: time.Date(2026, 8, 28, 14, 3, 0, 0, time.UTC),
		Yes: domain.LegResult{
			Side: domain.LegYes,
			Fill: domain.Fill{TokenID: "tok-yes", Contracts: 100, AvgPrice: 0.48, Cost: 48},
		},
		No: domain.LegResult{
			Side: domain.LegNo,
			Fill: domain.Fill{TokenID: "tok-no", Contracts: 100, AvgPrice: 0.49, Cost: 49},
		},
		Outcome: domain.OutcomeBothFilledFull,
	}
}

func TestOpenMissingFileStartsFresh(t *testing.T) {
	l, _ := openTestLedger(t)
	assert.Empty(t, l.Positions())
	assert.Zero(t, l.Summarize().TotalRealizedPnL)
}

func TestOpenCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorruptLedger)
}

func TestRecordExecutionPersistsAcrossReopen(t *testing.T) {
	l, path := openTestLedger(t)

	pos, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.Yes.Contracts)
	assert.Equal(t, 49.0, pos.No.CostBasis)
	assert.Equal(t, domain.PositionOpen, pos.Status)

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)

	got, ok := reopened.Position("mkt-1")
	require.True(t, ok)
	assert.Equal(t, pos.Yes, got.Yes)
	assert.Equal(t, pos.No, got.No)
	assert.Equal(t, "Bitcoin Up or Down?", got.Question)
}

func TestRecordExecutionAccumulatesFills(t *testing.T) {
	l, _ := openTestLedger(t)

	_, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)
	pos, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)

	assert.Equal(t, 200.0, pos.Yes.Contracts)
	assert.Equal(t, 96.0, pos.Yes.CostBasis)
}

func TestRecordExecutionOnlyBooksActualFills(t *testing.T) {
	l, _ := openTestLedger(t)

	exec := testExecution("mkt-1")
	exec.No.Fill = domain.Fill{TokenID: "tok-no"} // rejected leg
	exec.Outcome = domain.OutcomeOneFilled

	pos, err := l.RecordExecution(exec)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.Yes.Contracts)
	assert.Zero(t, pos.No.Contracts)
	assert.Equal(t, domain.LegYes, pos.ExposedSide())
}

func TestResolvePosition(t *testing.T) {
	l, _ := openTestLedger(t)
	_, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)

	resolvedAt := time.Date(2026, 8, 28, 14, 16, 0, 0, time.UTC)
	pos, err := l.ResolvePosition("mkt-1", true, resolvedAt)
	require.NoError(t, err)

	assert.Equal(t, domain.PositionResolved, pos.Status)
	require.NotNil(t, pos.RealizedPnL)
	assert.InDelta(t, 100-97.0, *pos.RealizedPnL, 1e-9)

	sum := l.Summarize()
	assert.Equal(t, 1, sum.ResolvedPositions)
	assert.Equal(t, 0, sum.OpenPositions)
	assert.InDelta(t, 3.0, sum.TotalRealizedPnL, 1e-9)
	assert.Equal(t, "2026-08-28", sum.Daily.Date)
	assert.Equal(t, 1, sum.Daily.Resolved)
}

func TestResolvePositionIdempotent(t *testing.T) {
	l, _ := openTestLedger(t)
	_, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)

	at := time.Now().UTC()
	_, err = l.ResolvePosition("mkt-1", false, at)
	require.NoError(t, err)

	_, err = l.ResolvePosition("mkt-1", false, at)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	// The second call must not double-count.
	assert.Equal(t, 1, l.Summarize().Daily.Resolved)
}

func TestResolveUnknownMarket(t *testing.T) {
	l, _ := openTestLedger(t)
	_, err := l.ResolvePosition("nope", true, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDailyRollover(t *testing.T) {
	l, _ := openTestLedger(t)

	exec := testExecution("mkt-1")
	_, err := l.RecordExecution(exec)
	require.NoError(t, err)
	exec.MarketID = "mkt-2"
	_, err = l.RecordExecution(exec)
	require.NoError(t, err)

	day1 := time.Date(2026, 8, 27, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 28, 0, 1, 0, 0, time.UTC)

	_, err = l.ResolvePosition("mkt-1", true, day1)
	require.NoError(t, err)
	_, err = l.ResolvePosition("mkt-2", true, day2)
	require.NoError(t, err)

	sum := l.Summarize()
	assert.Equal(t, "2026-08-28", sum.Daily.Date)
	assert.Equal(t, 1, sum.Daily.Resolved)
	assert.InDelta(t, 3.0, sum.Daily.Realized, 1e-9)
	// Lifetime total spans both days.
	assert.InDelta(t, 6.0, sum.TotalRealizedPnL, 1e-9)
}

func TestOpenPositionsExcludesResolved(t *testing.T) {
	l, _ := openTestLedger(t)

	exec := testExecution("mkt-1")
	_, err := l.RecordExecution(exec)
	require.NoError(t, err)
	exec.MarketID = "mkt-2"
	_, err = l.RecordExecution(exec)
	require.NoError(t, err)

	_, err = l.ResolvePosition("mkt-1", true, time.Now().UTC())
	require.NoError(t, err)

	open := l.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, "mkt-2", open[0].MarketID)
}

func TestSnapshotIsValidJSON(t *testing.T) {
	l, _ := openTestLedger(t)
	_, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)

	data, err := l.Snapshot()
	require.NoError(t, err)

	var img fileImage
	require.NoError(t, json.Unmarshal(data, &img))
	assert.Contains(t, img.Positions, "mkt-1")
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	l, path := openTestLedger(t)
	_, err := l.RecordExecution(testExecution("mkt-1"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}
