package arbitrage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/ledger"
)

// stubPlacer returns canned fills per token ID, optionally blocking until
// released to exercise the in-flight guard.
type stubPlacer struct {
	mu    sync.Mutex
	fills map[string]domain.Fill
	errs  map[string]error
	block chan struct{}
	calls int
}

func (p *stubPlacer) BuyIOC(ctx context.Context, tokenID string, price, contracts float64) (domain.Fill, error) {
	p.mu.Lock()
	p.calls++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Fill{}, ctx.Err()
		}
	}
	if err, ok := p.errs[tokenID]; ok {
		return domain.Fill{}, err
	}
	return p.fills[tokenID], nil
}

func testQuotes(yesAsk, noAsk float64) (domain.PriceQuote, domain.PriceQuote) {
	now := time.Now()
	return domain.PriceQuote{TokenID: "tok-yes", BestAsk: yesAsk, AskSize: 1000, ObservedAt: now},
		domain.PriceQuote{TokenID: "tok-no", BestAsk: noAsk, AskSize: 1000, ObservedAt: now}
}

func execMarket() domain.Market {
	now := time.Now()
	return domain.Market{
		ID:          "m1",
		Symbol:      "btc",
		YesTokenID:  "tok-yes",
		NoTokenID:   "tok-no",
		IntervalEnd: now.Add(10 * time.Minute),
	}
}

func newTestExecutor(t *testing.T, placer OrderPlacer, simulate bool) *Executor {
	t.Helper()
	book, err := ledger.Open(filepath.Join(t.TempDir(), "positions.json"), discardLogger())
	require.NoError(t, err)
	return NewExecutor(placer, book, ExecutorConfig{
		DefaultTradeSize: 50,
		MinTradeSize:     1,
		MaxTradeSize:     50,
		OrderTimeout:     time.Second,
		Simulate:         simulate,
	}, discardLogger())
}

func TestSimulatedExecutionFillsBothLegs(t *testing.T) {
	e := newTestExecutor(t, nil, true)
	yes, no := testQuotes(0.48, 0.50)

	exec, attempted := e.TryExecute(context.Background(), execMarket(), yes, no)
	require.True(t, attempted)

	assert.Equal(t, domain.OutcomeBothFilledFull, exec.Outcome)
	assert.True(t, exec.Simulated)
	assert.InDelta(t, 50/0.48, exec.Yes.Fill.Contracts, 1e-9)
	assert.InDelta(t, 50/0.50, exec.No.Fill.Contracts, 1e-9)

	_, ok := e.book.Position("m1")
	assert.False(t, ok, "simulated fills must not open a position")
}

func TestSimulatedExecutionNeverPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	book, err := ledger.Open(path, discardLogger())
	require.NoError(t, err)
	e := NewExecutor(nil, book, ExecutorConfig{
		DefaultTradeSize: 50,
		MinTradeSize:     1,
		MaxTradeSize:     50,
		OrderTimeout:     time.Second,
		Simulate:         true,
	}, discardLogger())

	yes, no := testQuotes(0.48, 0.50)
	exec, attempted := e.TryExecute(context.Background(), execMarket(), yes, no)
	require.True(t, attempted)
	assert.Equal(t, domain.OutcomeBothFilledFull, exec.Outcome)

	// A restart must not inherit anything from the dry run.
	reopened, err := ledger.Open(path, discardLogger())
	require.NoError(t, err)
	assert.Empty(t, reopened.OpenPositions())
	assert.Zero(t, reopened.Summarize().TotalRealizedPnL)
}

func TestBothLegsFilled(t *testing.T) {
	placer := &stubPlacer{fills: map[string]domain.Fill{
		"tok-yes": {OrderID: "o1", TokenID: "tok-yes", Contracts: 104.17, AvgPrice: 0.48, Cost: 50},
		"tok-no":  {OrderID: "o2", TokenID: "tok-no", Contracts: 100, AvgPrice: 0.50, Cost: 50},
	}}
	e := newTestExecutor(t, placer, false)
	yes, no := testQuotes(0.48, 0.50)

	exec, attempted := e.TryExecute(context.Background(), execMarket(), yes, no)
	require.True(t, attempted)
	assert.Equal(t, domain.OutcomeBothFilledFull, exec.Outcome)
	assert.Equal(t, 2, placer.calls)

	_, ok := e.book.Position("m1")
	assert.True(t, ok)
}

func TestPartialFillOutcome(t *testing.T) {
	placer := &stubPlacer{fills: map[string]domain.Fill{
		"tok-yes": {OrderID: "o1", TokenID: "tok-yes", Contracts: 40, AvgPrice: 0.48, Cost: 19.2},
		"tok-no":  {OrderID: "o2", TokenID: "tok-no", Contracts: 100, AvgPrice: 0.50, Cost: 50},
	}}
	e := newTestExecutor(t, placer, false)
	yes, no := testQuotes(0.48, 0.50)

	exec, _ := e.TryExecute(context.Background(), execMarket(), yes, no)
	assert.Equal(t, domain.OutcomeBothFilledPartial, exec.Outcome)
}

func TestOneLegRejected(t *testing.T) {
	// A rejected IOC order is a zero fill, not an error.
	placer := &stubPlacer{fills: map[string]domain.Fill{
		"tok-yes": {OrderID: "o1", TokenID: "tok-yes", Contracts: 104.17, AvgPrice: 0.48, Cost: 50},
		"tok-no":  {TokenID: "tok-no"},
	}}
	e := newTestExecutor(t, placer, false)
	yes, no := testQuotes(0.48, 0.50)

	exec, _ := e.TryExecute(context.Background(), execMarket(), yes, no)
	assert.Equal(t, domain.OutcomeOneFilled, exec.Outcome)

	// The filled leg must still reach the book.
	pos, ok := e.book.Position("m1")
	require.True(t, ok)
	assert.Equal(t, domain.LegYes, pos.ExposedSide())
}

func TestBothLegsRejectedNothingBooked(t *testing.T) {
	placer := &stubPlacer{fills: map[string]domain.Fill{
		"tok-yes": {TokenID: "tok-yes"},
		"tok-no":  {TokenID: "tok-no"},
	}}
	e := newTestExecutor(t, placer, false)
	yes, no := testQuotes(0.48, 0.50)

	exec, _ := e.TryExecute(context.Background(), execMarket(), yes, no)
	assert.Equal(t, domain.OutcomeBothRejected, exec.Outcome)

	_, ok := e.book.Position("m1")
	assert.False(t, ok, "a rejected execution must not open a position")
}

func TestTimeoutMarksOutcomeUnknown(t *testing.T) {
	placer := &stubPlacer{
		fills: map[string]domain.Fill{},
		block: make(chan struct{}), // never released; legs ride into the deadline
	}
	book, err := ledger.Open(filepath.Join(t.TempDir(), "positions.json"), discardLogger())
	require.NoError(t, err)
	e := NewExecutor(placer, book, ExecutorConfig{
		DefaultTradeSize: 50,
		MinTradeSize:     1,
		MaxTradeSize:     50,
		OrderTimeout:     20 * time.Millisecond,
	}, discardLogger())

	yes, no := testQuotes(0.48, 0.50)
	exec, attempted := e.TryExecute(context.Background(), execMarket(), yes, no)
	require.True(t, attempted)

	assert.Equal(t, domain.OutcomeUnknown, exec.Outcome)
	assert.True(t, exec.Yes.Unknown)
	assert.True(t, exec.No.Unknown)
}

func TestInFlightGuardSkipsConcurrentExecution(t *testing.T) {
	release := make(chan struct{})
	placer := &stubPlacer{
		fills: map[string]domain.Fill{
			"tok-yes": {Contracts: 104.17, Cost: 50},
			"tok-no":  {Contracts: 100, Cost: 50},
		},
		block: release,
	}
	e := newTestExecutor(t, placer, false)
	yes, no := testQuotes(0.48, 0.50)
	m := execMarket()

	started := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		close(started)
		_, attempted := e.TryExecute(context.Background(), m, yes, no)
		done <- attempted
	}()

	<-started
	// Wait until the first execution holds the market slot.
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		_, busy := e.inFlight[m.ID]
		return busy
	}, time.Second, time.Millisecond)

	_, attempted := e.TryExecute(context.Background(), m, yes, no)
	assert.False(t, attempted, "second attempt must be dropped while one is in flight")

	close(release)
	assert.True(t, <-done)

	// Slot is released afterwards.
	_, attempted = e.TryExecute(context.Background(), m, yes, no)
	assert.True(t, attempted)
}

func TestClassify(t *testing.T) {
	full := domain.LegResult{Fill: domain.Fill{Contracts: 100, Cost: 50}}
	partial := domain.LegResult{Fill: domain.Fill{Contracts: 30, Cost: 15}}
	rejected := domain.LegResult{Fill: domain.Fill{}}
	unknown := domain.LegResult{Err: context.DeadlineExceeded, Unknown: true}
	failed := domain.LegResult{Err: errors.New("rate limited")}

	assert.Equal(t, domain.OutcomeBothFilledFull, classify(full, full, 50))
	assert.Equal(t, domain.OutcomeBothFilledPartial, classify(full, partial, 50))
	assert.Equal(t, domain.OutcomeOneFilled, classify(full, rejected, 50))
	assert.Equal(t, domain.OutcomeOneFilled, classify(rejected, full, 50))
	assert.Equal(t, domain.OutcomeBothRejected, classify(rejected, rejected, 50))
	assert.Equal(t, domain.OutcomeBothRejected, classify(failed, rejected, 50))
	// Unknown dominates everything; the order may still be live.
	assert.Equal(t, domain.OutcomeUnknown, classify(unknown, full, 50))
	assert.Equal(t, domain.OutcomeUnknown, classify(full, unknown, 50))
}

func TestClampTradeSize(t *testing.T) {
	assert.Equal(t, 10.0, clamp(5, 10, 100))
	assert.Equal(t, 100.0, clamp(500, 10, 100))
	assert.Equal(t, 50.0, clamp(50, 10, 100))
}

type countingRecorder struct {
	mu    sync.Mutex
	execs []domain.Execution
	err   error
}

func (r *countingRecorder) RecordExecution(_ context.Context, exec domain.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, exec)
	return r.err
}

func TestRecordersReceiveEveryExecution(t *testing.T) {
	e := newTestExecutor(t, nil, true)
	failing := &countingRecorder{err: errors.New("journal down")}
	healthy := &countingRecorder{}
	e.AddRecorder(failing)
	e.AddRecorder(healthy)

	yes, no := testQuotes(0.48, 0.50)
	_, attempted := e.TryExecute(context.Background(), execMarket(), yes, no)
	require.True(t, attempted)

	// A failing recorder never blocks the others.
	assert.Len(t, failing.execs, 1)
	require.Len(t, healthy.execs, 1)
	assert.Equal(t, domain.OutcomeBothFilledFull, healthy.execs[0].Outcome)
}
