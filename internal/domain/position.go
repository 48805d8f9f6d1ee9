package domain

import (
	"math"
	"time"
)

// LegSide names one side of a two-sided position.
type LegSide string

const (
	LegYes LegSide = "yes"
	LegNo  LegSide = "no"
)

// PositionStatus tracks whether a position is open or resolved.
type PositionStatus string

const (
	PositionOpen     PositionStatus = "open"
	PositionResolved PositionStatus = "resolved"
)

// Leg is the accumulated fills on one side of a position.
type Leg struct {
	Contracts float64 `json:"contracts"`
	CostBasis float64 `json:"cost_basis"`
}

// AvgPrice returns cost basis per contract, 0 when the leg is empty.
func (l Leg) AvgPrice() float64 {
	if l.Contracts <= 0 {
		return 0
	}
	return l.CostBasis / l.Contracts
}

// Position is the per-market bookkeeping record. Derived figures
// (matched, unmatched, guaranteed profit) are always recomputed from the
// legs and never stored.
type Position struct {
	MarketID    string         `json:"market_id"`
	Question    string         `json:"question,omitempty"`
	Yes         Leg            `json:"yes"`
	No          Leg            `json:"no"`
	TotalFees   float64        `json:"total_fees"`
	OpenedAt    time.Time      `json:"opened_at"`
	Status      PositionStatus `json:"status"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	RealizedPnL *float64       `json:"realized_pnl,omitempty"`
}

// MatchedContracts is the quantity covered on both legs; each matched pair
// pays out one unit at settlement regardless of outcome.
func (p *Position) MatchedContracts() float64 {
	return math.Min(p.Yes.Contracts, p.No.Contracts)
}

// UnmatchedExposure is the surplus quantity on the heavier leg, carrying
// directional settlement risk.
func (p *Position) UnmatchedExposure() float64 {
	return math.Abs(p.Yes.Contracts - p.No.Contracts)
}

// ExposedSide returns which leg carries the unmatched exposure, or "" when
// the legs are balanced.
func (p *Position) ExposedSide() LegSide {
	switch {
	case p.Yes.Contracts > p.No.Contracts:
		return LegYes
	case p.No.Contracts > p.Yes.Contracts:
		return LegNo
	default:
		return ""
	}
}

// GuaranteedProfit is the profit locked in by the matched pairs alone:
// matched payout minus the share of combined cost basis attributable to the
// matched portion. The unmatched remainder's directional risk is excluded.
func (p *Position) GuaranteedProfit() float64 {
	matched := p.MatchedContracts()
	total := p.Yes.Contracts + p.No.Contracts
	if matched <= 0 || total <= 0 {
		return 0
	}
	return matched - (p.Yes.CostBasis+p.No.CostBasis)*(matched/total)
}

// TotalCost is the combined cost basis of both legs plus fees.
func (p *Position) TotalCost() float64 {
	return p.Yes.CostBasis + p.No.CostBasis + p.TotalFees
}

// SettlementPnL computes the realized profit for a settlement where the
// given side's contracts pay one unit each and the other side pays zero.
func (p *Position) SettlementPnL(yesWon bool) float64 {
	payout := p.No.Contracts
	if yesWon {
		payout = p.Yes.Contracts
	}
	return payout - p.TotalCost()
}
