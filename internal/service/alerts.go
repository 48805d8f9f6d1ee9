package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/notify"
)

// ExecutionAlerter forwards execution records to the operator notification
// channels. It plugs into the executor as an ExecutionRecorder.
type ExecutionAlerter struct {
	notifier *notify.Notifier
}

// NewExecutionAlerter creates an ExecutionAlerter.
func NewExecutionAlerter(notifier *notify.Notifier) *ExecutionAlerter {
	return &ExecutionAlerter{notifier: notifier}
}

// RecordExecution notifies on every execution, with event types operators
// can filter: "execution" for fills, "execution_unknown" for the cases that
// need manual reconciliation, "execution_exposed" for single-leg fills.
func (a *ExecutionAlerter) RecordExecution(ctx context.Context, exec domain.Execution) error {
	event, title := "execution", "Execution complete"
	switch exec.Outcome {
	case domain.OutcomeUnknown:
		event, title = "execution_unknown", "Execution outcome UNKNOWN"
	case domain.OutcomeOneFilled:
		event, title = "execution_exposed", "Single-leg fill"
	case domain.OutcomeBothRejected:
		// Rejections are routine; skip the page.
		return nil
	}

	msg := fmt.Sprintf(
		"market %s (%s)\ncombined ask %.4f, size %.2f/leg\nYES %.2f contracts @ %.4f\nNO %.2f contracts @ %.4f\noutcome %s, simulated=%t",
		exec.MarketID, exec.Question,
		exec.Combined, exec.SizePerLeg,
		exec.Yes.Fill.Contracts, exec.Yes.Fill.AvgPrice,
		exec.No.Fill.Contracts, exec.No.Fill.AvgPrice,
		exec.Outcome, exec.Simulated,
	)
	return a.notifier.Notify(ctx, event, title, msg)
}

// resolutionMessage formats the settlement notification body.
func resolutionMessage(pos domain.Position, yesWon bool, pnl float64) string {
	winner := "NO"
	if yesWon {
		winner = "YES"
	}
	return fmt.Sprintf(
		"market %s (%s)\nwinner %s\nmatched %.2f contracts, unmatched %.2f\nrealized pnl %.4f",
		pos.MarketID, pos.Question,
		winner,
		pos.MatchedContracts(), pos.UnmatchedExposure(),
		pnl,
	)
}
