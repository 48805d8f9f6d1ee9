package arbitrage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/ledger"
)

// OrderPlacer submits one immediate-or-cancel BUY leg. The CLOB client
// implements it.
type OrderPlacer interface {
	BuyIOC(ctx context.Context, tokenID string, price, contracts float64) (domain.Fill, error)
}

// ExecutionRecorder receives every completed execution record. The fill
// journal, the signal bus publisher, and the notifier adapter implement it;
// recorder failures are logged and never block trading.
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, exec domain.Execution) error
}

// ExecutorConfig carries the sizing and timing knobs.
type ExecutorConfig struct {
	DefaultTradeSize float64 // currency per leg
	MinTradeSize     float64
	MaxTradeSize     float64
	OrderTimeout     time.Duration
	Simulate         bool // synthesize fills instead of submitting
}

// Executor fires both legs of an opportunity concurrently, classifies the
// joined outcome, and records actual fills in the ledger. Simulated
// executions are logged and fanned out to recorders (flagged simulated) but
// never touch the book. At most one execution runs per market at a time; a
// tick arriving while a market is in flight is dropped, not queued.
type Executor struct {
	placer    OrderPlacer
	book      *ledger.Ledger
	cfg       ExecutorConfig
	recorders []ExecutionRecorder
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{} // market IDs currently executing
}

// NewExecutor creates an Executor.
func NewExecutor(placer OrderPlacer, book *ledger.Ledger, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	return &Executor{
		placer:   placer,
		book:     book,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "executor")),
		inFlight: make(map[string]struct{}),
	}
}

// AddRecorder registers an ExecutionRecorder. Not safe to call after the
// detector starts.
func (e *Executor) AddRecorder(r ExecutionRecorder) {
	e.recorders = append(e.recorders, r)
}

// TryExecute runs the dual-leg execution for one opportunity. It reports
// whether an execution was attempted; false means the market already had
// one in flight.
func (e *Executor) TryExecute(ctx context.Context, m domain.Market, yes, no domain.PriceQuote) (domain.Execution, bool) {
	if !e.acquire(m.ID) {
		e.logger.Debug("execution already in flight, skipping",
			slog.String("market_id", m.ID))
		return domain.Execution{}, false
	}
	defer e.release(m.ID)

	size := clamp(e.cfg.DefaultTradeSize, e.cfg.MinTradeSize, e.cfg.MaxTradeSize)

	exec := domain.Execution{
		ID:         uuid.NewString(),
		MarketID:   m.ID,
		Symbol:     m.Symbol,
		Question:   m.Question,
		YesAsk:     yes.BestAsk,
		NoAsk:      no.BestAsk,
		Combined:   yes.BestAsk + no.BestAsk,
		SizePerLeg: size,
		Simulated:  e.cfg.Simulate,
		StartedAt:  time.Now(),
	}

	if e.cfg.Simulate {
		exec.Yes = simulatedLeg(domain.LegYes, m.YesTokenID, yes.BestAsk, size)
		exec.No = simulatedLeg(domain.LegNo, m.NoTokenID, no.BestAsk, size)
	} else {
		exec.Yes, exec.No = e.fireLegs(ctx, m, yes.BestAsk, no.BestAsk, size)
	}
	exec.Elapsed = time.Since(exec.StartedAt)
	exec.Outcome = classify(exec.Yes, exec.No, size)

	e.logOutcome(exec)

	// Synthesized fills stay out of the durable book: a dry run must not
	// seed positions, or later realized PnL, into the ledger a live run
	// would inherit.
	if !exec.Simulated && (exec.Yes.Fill.Filled() || exec.No.Fill.Filled()) {
		pos, err := e.book.RecordExecution(exec)
		if err != nil {
			// Fills happened but could not be persisted; this must never
			// pass silently.
			e.logger.Error("LEDGER WRITE FAILED, POSITION NOT PERSISTED",
				slog.String("market_id", m.ID),
				slog.String("execution_id", exec.ID),
				slog.Any("error", err))
		} else if unmatched := pos.UnmatchedExposure(); unmatched > 0 {
			e.logger.Warn("position carries unmatched exposure",
				slog.String("market_id", m.ID),
				slog.String("exposed_side", string(pos.ExposedSide())),
				slog.Float64("unmatched_contracts", unmatched))
		}
	}

	for _, r := range e.recorders {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.RecordExecution(rctx, exec); err != nil {
			e.logger.Warn("execution recorder failed", slog.Any("error", err))
		}
		cancel()
	}

	return exec, true
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// fireLegs submits both legs concurrently and joins the results. Each leg
// gets the shared order timeout; a leg whose true outcome is unknowable
// (timeout mid-submission) is flagged Unknown rather than assumed rejected.
func (e *Executor) fireLegs(ctx context.Context, m domain.Market, yesAsk, noAsk, size float64) (yes, no domain.LegResult) {
	// Shutdown must not abandon orders that may already be at the venue, so
	// the legs are detached from the parent's cancellation and bounded by the
	// order timeout alone.
	legCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.OrderTimeout)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		yes = e.fireLeg(legCtx, domain.LegYes, m.YesTokenID, yesAsk, size)
	}()
	go func() {
		defer wg.Done()
		no = e.fireLeg(legCtx, domain.LegNo, m.NoTokenID, noAsk, size)
	}()
	wg.Wait()
	return yes, no
}

// fireLeg submits one IOC BUY at the quoted ask for size/price contracts.
func (e *Executor) fireLeg(ctx context.Context, side domain.LegSide, tokenID string, price, size float64) domain.LegResult {
	res := domain.LegResult{Side: side}
	if price <= 0 {
		res.Err = errors.New("arbitrage: non-positive ask")
		return res
	}

	contracts := size / price
	fill, err := e.placer.BuyIOC(ctx, tokenID, price, contracts)
	if err != nil {
		res.Err = err
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			res.Unknown = true
		}
		return res
	}

	res.Fill = fill
	return res
}

// classify maps the joined leg results onto an execution outcome.
func classify(yes, no domain.LegResult, size float64) domain.ExecutionOutcome {
	if yes.Unknown || no.Unknown {
		return domain.OutcomeUnknown
	}

	yesFilled := yes.Fill.Filled()
	noFilled := no.Fill.Filled()
	switch {
	case yesFilled && noFilled:
		if fullFill(yes.Fill, size) && fullFill(no.Fill, size) {
			return domain.OutcomeBothFilledFull
		}
		return domain.OutcomeBothFilledPartial
	case yesFilled || noFilled:
		return domain.OutcomeOneFilled
	default:
		return domain.OutcomeBothRejected
	}
}

// fullFill reports whether a fill consumed (within rounding) the full
// requested currency size.
func fullFill(f domain.Fill, size float64) bool {
	const tolerance = 0.01 // one cent
	return f.Cost >= size-tolerance
}

// logOutcome emits one structured line per execution, escalating severity
// with the outcome.
func (e *Executor) logOutcome(exec domain.Execution) {
	attrs := []any{
		slog.String("execution_id", exec.ID),
		slog.String("market_id", exec.MarketID),
		slog.String("outcome", string(exec.Outcome)),
		slog.Float64("combined", exec.Combined),
		slog.Float64("yes_contracts", exec.Yes.Fill.Contracts),
		slog.Float64("no_contracts", exec.No.Fill.Contracts),
		slog.Duration("elapsed", exec.Elapsed),
		slog.Bool("simulated", exec.Simulated),
	}

	switch exec.Outcome {
	case domain.OutcomeUnknown:
		// An order may be live on the venue with no record of its fate.
		e.logger.Error("EXECUTION OUTCOME UNKNOWN, MANUAL RECONCILIATION REQUIRED", attrs...)
	case domain.OutcomeOneFilled:
		e.logger.Warn("single-leg fill, directional exposure", attrs...)
	case domain.OutcomeBothRejected:
		e.logger.Info("both legs rejected", attrs...)
	default:
		e.logger.Info("execution complete", attrs...)
	}
}

// acquire takes the per-market execution slot.
func (e *Executor) acquire(marketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[marketID]; busy {
		return false
	}
	e.inFlight[marketID] = struct{}{}
	return true
}

func (e *Executor) release(marketID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, marketID)
}

// simulatedLeg synthesizes a full fill at the quoted ask for dry runs.
func simulatedLeg(side domain.LegSide, tokenID string, price, size float64) domain.LegResult {
	contracts := size / price
	return domain.LegResult{
		Side: side,
		Fill: domain.Fill{
			OrderID:   "sim-" + uuid.NewString(),
			TokenID:   tokenID,
			Contracts: contracts,
			AvgPrice:  price,
			Cost:      size,
		},
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
