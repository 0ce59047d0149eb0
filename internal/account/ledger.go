// Package account implements the simulated ledger: leveraged positions
// with margin accounting, the open-order book, and forced liquidation.
// Every operation is a pure function from an account value to the next
// account value plus events; nothing in this package mutates its inputs.
package account

import (
	"fmt"
	"math"

	"chart-trigger-bot-go/internal/idgen"
	"chart-trigger-bot-go/internal/models"
)

const (
	// MinLeverage and MaxLeverage bound the accepted leverage range;
	// out-of-range requests are clamped, not rejected.
	MinLeverage = 1.0
	MaxLeverage = 5.0

	// qtyEpsilon avoids float dust keeping a position alive after a
	// full close.
	qtyEpsilon = 1e-9
)

// Limits holds the solvency thresholds, in margin-level percent.
type Limits struct {
	MarginCallLevel  float64 // a new open must leave the level at or above this
	LiquidationLevel float64 // forced liquidation floor
}

// DefaultLimits returns the standard 100% margin-call / 40% liquidation
// thresholds.
func DefaultLimits() Limits {
	return Limits{MarginCallLevel: 100, LiquidationLevel: 40}
}

// ClampLeverage bounds leverage to [MinLeverage, MaxLeverage].
func ClampLeverage(leverage float64) float64 {
	return math.Min(MaxLeverage, math.Max(MinLeverage, leverage))
}

// OpenPosition opens a leveraged position at fillPrice. The margin charged
// is notional divided by (clamped) leverage. Preconditions: free USD must
// cover the margin, and the post-open margin level must not fall below the
// margin-call threshold. On failure the input account is returned
// unchanged alongside the error.
func OpenPosition(acct models.PaperAccount, limits Limits, symbol string, side models.PositionSide, amount, fillPrice, leverage float64, now int64) (models.PaperAccount, models.AccountPosition, error) {
	if amount <= 0 {
		return acct, models.AccountPosition{}, fmt.Errorf("invalid position amount %.8f", amount)
	}
	if fillPrice <= 0 {
		return acct, models.AccountPosition{}, fmt.Errorf("invalid fill price %.8f", fillPrice)
	}

	lev := ClampLeverage(leverage)
	notional := amount * fillPrice
	margin := notional / lev

	if acct.BalanceUSD < margin {
		return acct, models.AccountPosition{}, fmt.Errorf(
			"insufficient margin: need %.2f USD, free %.2f USD", margin, acct.BalanceUSD)
	}

	next := acct.Clone()
	pos := models.AccountPosition{
		ID:            idgen.New("pos"),
		Symbol:        symbol,
		Side:          side,
		Amount:        amount,
		EntryPrice:    fillPrice,
		Leverage:      lev,
		MarginUsedUsd: margin,
		OpenedAt:      now,
	}
	next.BalanceUSD -= margin
	next.OpenPositions = append(next.OpenPositions, pos)

	if level := next.MarginLevel(fillPrice); level < limits.MarginCallLevel {
		return acct, models.AccountPosition{}, fmt.Errorf(
			"open rejected: margin level %.2f%% below margin call threshold %.2f%%",
			level, limits.MarginCallLevel)
	}
	next.UpdatedAt = now
	return next, pos, nil
}

// CloseResult describes the outcome of a position close.
type CloseResult struct {
	RealizedPnl    float64
	AmountClosed   float64
	MarginReleased float64
	FullyClosed    bool
}

// ClosePosition closes percent (clamped to [1,100]) of the position at
// exitPrice. Proportional margin is released and proportional PnL realized
// into free USD. A full close removes the position, cancels its remaining
// exit orders and appends a history record.
func ClosePosition(acct models.PaperAccount, positionID string, percent, exitPrice float64, now int64) (models.PaperAccount, CloseResult, error) {
	return closePosition(acct, positionID, percent, exitPrice, now, "")
}

// closePosition carries the id of the exit order whose fill is driving the
// close, if any, so the cancellation pass leaves that order alone for the
// order book to mark filled.
func closePosition(acct models.PaperAccount, positionID string, percent, exitPrice float64, now int64, fillingOrderID string) (models.PaperAccount, CloseResult, error) {
	pos, ok := acct.Position(positionID)
	if !ok {
		return acct, CloseResult{}, fmt.Errorf("position %s not found", positionID)
	}
	if exitPrice <= 0 {
		return acct, CloseResult{}, fmt.Errorf("invalid exit price %.8f", exitPrice)
	}
	percent = math.Min(100, math.Max(1, percent))

	frac := percent / 100
	amountClosed := pos.Amount * frac
	marginReleased := pos.MarginUsedUsd * frac

	var realized float64
	if pos.Side == models.Long {
		realized = (exitPrice - pos.EntryPrice) * amountClosed
	} else {
		realized = (pos.EntryPrice - exitPrice) * amountClosed
	}

	next := acct.Clone()
	next.BalanceUSD += marginReleased + realized
	next.UpdatedAt = now

	remaining := pos.Amount - amountClosed
	fully := percent >= 100 || remaining <= qtyEpsilon

	if fully {
		next.OpenPositions = removePosition(next.OpenPositions, positionID)
		next = cancelExitOrders(next, positionID, fillingOrderID, now)
		next.PositionHistory = append(next.PositionHistory, models.PositionHistory{
			ID:          pos.ID,
			Symbol:      pos.Symbol,
			Side:        pos.Side,
			Amount:      pos.Amount,
			EntryPrice:  pos.EntryPrice,
			ExitPrice:   exitPrice,
			RealizedPnl: realized,
			OpenedAt:    pos.OpenedAt,
			ClosedAt:    now,
		})
	} else {
		for i := range next.OpenPositions {
			if next.OpenPositions[i].ID == positionID {
				next.OpenPositions[i].Amount = remaining
				next.OpenPositions[i].MarginUsedUsd = pos.MarginUsedUsd - marginReleased
			}
		}
	}

	return next, CloseResult{
		RealizedPnl:    realized,
		AmountClosed:   amountClosed,
		MarginReleased: marginReleased,
		FullyClosed:    fully,
	}, nil
}

// cancelExitOrders cancels all still-open orders attached to a position
// and moves them to history. keepOrderID, when non-empty, names the order
// whose own fill caused the close; it stays on the book so it can be
// recorded as filled rather than canceled.
func cancelExitOrders(acct models.PaperAccount, positionID, keepOrderID string, now int64) models.PaperAccount {
	kept := acct.OpenOrders[:0:0]
	for _, ord := range acct.OpenOrders {
		if ord.PositionID == positionID && ord.ID != keepOrderID && ord.Status == models.OrderOpen {
			ord.Status = models.OrderCanceled
			acct.OrderHistory = append(acct.OrderHistory, ord)
			continue
		}
		kept = append(kept, ord)
	}
	acct.OpenOrders = kept
	acct.UpdatedAt = now
	return acct
}

func removePosition(positions []models.AccountPosition, id string) []models.AccountPosition {
	kept := positions[:0:0]
	for _, p := range positions {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return kept
}
