// Package block runs the arm/freeze/fill state machine for single gated
// order blocks. It is independent of the trigger engine and the paper
// account: a block's fill is a terminal state annotation, not a ledger
// operation.
package block

import (
	"fmt"

	"chart-trigger-bot-go/internal/models"
)

// DefaultPartialFillPercent applies when a partial_fill block does not
// configure its own percentage.
const DefaultPartialFillPercent = 25

// Step advances one block's runtime state for a tick. Transitions:
// inactive blocks always return to idle; filled is absorbing; an active
// block arms until its kind-specific price level is hit, then its gates
// decide between a fill, a freeze, a partial fill, or an override.
func Step(b models.Block, st models.BlockState, lastPrice float64, ind models.IndicatorSnapshot) models.BlockState {
	if st.Status == models.BlockFilled {
		return st
	}
	if !b.Active {
		return models.BlockState{Status: models.BlockIdle}
	}

	if !priceHit(b, lastPrice) {
		if st.Status == models.BlockFrozen {
			return st
		}
		return models.BlockState{Status: models.BlockArmed, RiskLevel: st.RiskLevel}
	}

	if reason, ok := gatesPass(b.Gates, ind); !ok {
		return applyFailAction(b, st, lastPrice, reason)
	}
	return models.BlockState{
		Status:        models.BlockFilled,
		FillPrice:     lastPrice,
		FilledPercent: 100,
		RiskLevel:     st.RiskLevel,
	}
}

// priceHit evaluates the kind-specific hit rule against the last price.
func priceHit(b models.Block, lastPrice float64) bool {
	switch b.Kind {
	case models.BlockMarket:
		return true
	case models.BlockLimit, models.BlockIceberg:
		level := b.Params.LimitPrice
		if level == 0 {
			level = b.Anchor
		}
		if b.Side == models.Buy {
			return lastPrice <= level
		}
		return lastPrice >= level
	case models.BlockStop:
		level := b.Params.StopPrice
		if level == 0 {
			level = b.Anchor
		}
		// Stops hit on adverse movement through the level.
		if b.Side == models.Sell {
			return lastPrice <= level
		}
		return lastPrice >= level
	case models.BlockTakeProfit:
		level := b.Params.StopPrice
		if level == 0 {
			level = b.Anchor
		}
		if b.Side == models.Sell {
			return lastPrice >= level
		}
		return lastPrice <= level
	case models.BlockTrailingStop, models.BlockTrailingStopLimit:
		// The level trails the last price by the configured offset, so a
		// hit means the offset band has collapsed onto the price.
		var level float64
		if b.Side == models.Sell {
			level = lastPrice - b.Params.TrailingOffset
			return lastPrice <= level
		}
		level = lastPrice + b.Params.TrailingOffset
		return lastPrice >= level
	}
	return false
}

// gatesPass evaluates every gate; all must pass. A missing indicator fails
// the gate with an explanatory reason.
func gatesPass(gates []models.BlockGate, ind models.IndicatorSnapshot) (string, bool) {
	for _, g := range gates {
		var value *float64
		switch g.Indicator {
		case models.GateRSI:
			value = ind.RSI
		case models.GateVolume:
			value = ind.AvgVolume
		default:
			return fmt.Sprintf("unknown gate indicator %q", g.Indicator), false
		}
		if value == nil {
			return fmt.Sprintf("%s unavailable", g.Indicator), false
		}
		switch g.Op {
		case models.GateLT:
			if !(*value < g.Value) {
				return fmt.Sprintf("%s %.2f not < %.2f", g.Indicator, *value, g.Value), false
			}
		case models.GateGT:
			if !(*value > g.Value) {
				return fmt.Sprintf("%s %.2f not > %.2f", g.Indicator, *value, g.Value), false
			}
		default:
			return fmt.Sprintf("unknown gate operator %q", g.Op), false
		}
	}
	return "", true
}

// applyFailAction dispatches on the block's configured failure behavior.
func applyFailAction(b models.Block, st models.BlockState, lastPrice float64, reason string) models.BlockState {
	switch b.FailAction {
	case models.FailPartialFill:
		percent := b.Params.PartialFillPercent
		if percent == 0 {
			percent = DefaultPartialFillPercent
		}
		percent = clampPercent(percent)
		return models.BlockState{
			Status:        models.BlockFilled,
			FillPrice:     lastPrice,
			FilledPercent: percent,
			Note:          reason,
			RiskLevel:     st.RiskLevel,
		}
	case models.FailOverride:
		return models.BlockState{
			Status:        models.BlockFilled,
			FillPrice:     lastPrice,
			FilledPercent: 100,
			Note:          fmt.Sprintf("gate overridden: %s", reason),
			RiskLevel:     st.RiskLevel,
		}
	default: // freeze
		return models.BlockState{
			Status:    models.BlockFrozen,
			Note:      reason,
			RiskLevel: st.RiskLevel,
		}
	}
}

func clampPercent(p float64) float64 {
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}
	return p
}
