package domain

import "time"

// Fill is what the venue actually gave us for one immediate-or-cancel order:
// the filled contract count, the average fill price, and the total cost.
// Contracts may be less than requested (partial fill) or zero (no fill).
type Fill struct {
	OrderID   string
	TokenID   string
	Contracts float64
	AvgPrice  float64
	Cost      float64
	Fee       float64
}

// Filled reports whether any contracts were obtained.
func (f Fill) Filled() bool { return f.Contracts > 0 }

// LegResult is the outcome of one leg of a two-leg execution. Unknown marks
// a timed-out submission whose real outcome the venue never reported; it must
// be reconciled by an operator, never assumed rejected.
type LegResult struct {
	Side    LegSide
	Fill    Fill
	Err     error
	Unknown bool
}

// ExecutionOutcome classifies the joined result of both legs.
type ExecutionOutcome string

const (
	OutcomeBothFilledFull    ExecutionOutcome = "both_filled_full"
	OutcomeBothFilledPartial ExecutionOutcome = "both_filled_partial"
	OutcomeOneFilled         ExecutionOutcome = "one_filled_one_rejected"
	OutcomeBothRejected      ExecutionOutcome = "both_rejected"
	OutcomeUnknown           ExecutionOutcome = "unknown"
)

// Execution is the record of one dual-leg arbitrage attempt.
type Execution struct {
	ID           string
	MarketID     string
	Symbol       string
	Question     string
	YesAsk       float64
	NoAsk        float64
	Combined     float64
	SizePerLeg   float64 // requested, in currency terms
	Yes          LegResult
	No           LegResult
	Outcome      ExecutionOutcome
	Simulated    bool
	StartedAt    time.Time
	Elapsed      time.Duration
}
