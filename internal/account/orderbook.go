package account

import (
	"fmt"

	"chart-trigger-bot-go/internal/idgen"
	"chart-trigger-bot-go/internal/models"
)

// StepOrders advances every open order one tick: trailing stops are
// re-anchored, fill conditions checked, fills applied against the ledger,
// and OCO siblings of filled orders canceled. Filled and canceled orders
// are swept into order history. The input account is never mutated.
func StepOrders(acct models.PaperAccount, limits Limits, tick models.Tick, slip models.SlippageConfig) (models.PaperAccount, []models.ExecutionEvent) {
	next := acct.Clone()
	var events []models.ExecutionEvent

	// Iterate by id snapshot: a fill may cancel later siblings, and the
	// slice shifts as orders are swept.
	ids := make([]string, 0, len(next.OpenOrders))
	for _, ord := range next.OpenOrders {
		ids = append(ids, ord.ID)
	}

	for _, id := range ids {
		idx := openOrderIndex(next, id)
		if idx < 0 {
			continue // canceled by an earlier OCO fill this tick
		}
		ord := next.OpenOrders[idx]

		if ord.Type.IsTrailing() {
			ord = retrail(ord, tick.Price)
			next.OpenOrders[idx] = ord
		}

		if !shouldFill(ord, tick.Price) {
			continue
		}

		fillPrice := fillPriceFor(ord, tick, slip)
		var evts []models.ExecutionEvent
		next, evts = applyFill(next, limits, ord, fillPrice, tick)
		events = append(events, evts...)
	}

	next = sweepOrders(next, tick.Timestamp)
	return next, events
}

// retrail ratchets a trailing order's reference price favorably and
// recomputes the stop level. The reference never moves against the order:
// for a sell stop it only rises, for a buy stop it only falls.
func retrail(ord models.AccountOrder, price float64) models.AccountOrder {
	if ord.TrailRefPrice == 0 {
		ord.TrailRefPrice = price
	}
	if ord.Side == models.Sell {
		if price > ord.TrailRefPrice {
			ord.TrailRefPrice = price
		}
	} else {
		if price < ord.TrailRefPrice {
			ord.TrailRefPrice = price
		}
	}

	delta := ord.TrailingOffset
	if ord.TrailingOffsetUnit == models.OffsetPercent {
		delta = ord.TrailRefPrice * ord.TrailingOffset / 100
	}
	if ord.Side == models.Sell {
		ord.Price = ord.TrailRefPrice - delta
	} else {
		ord.Price = ord.TrailRefPrice + delta
	}
	return ord
}

// shouldFill evaluates the kind-specific fill predicate against the tick
// price. Order.Price is the operative level; for trailing orders it holds
// the stop computed by retrail.
func shouldFill(ord models.AccountOrder, price float64) bool {
	switch ord.Type {
	case models.Market:
		return true
	case models.Limit:
		if ord.Side == models.Buy {
			return price <= ord.Price
		}
		return price >= ord.Price
	case models.StopLoss, models.StopLossLimit, models.TrailingStop, models.TrailingStopLimit:
		// Stops fire on adverse movement through the level.
		if ord.Side == models.Sell {
			return price <= ord.Price
		}
		return price >= ord.Price
	case models.TakeProfit, models.TakeProfitLimit:
		// Take-profits fire on favorable movement through the trigger.
		if ord.Side == models.Sell {
			return price >= ord.Price
		}
		return price <= ord.Price
	}
	return false
}

// fillPriceFor chooses the execution price. Limit orders execute at their
// limit; limit-leg exits execute at the limit leg when configured; taker
// fills execute at the tick price adjusted by slippage.
func fillPriceFor(ord models.AccountOrder, tick models.Tick, slip models.SlippageConfig) float64 {
	switch ord.Type {
	case models.Limit:
		return ord.Price
	case models.StopLossLimit, models.TakeProfitLimit, models.TrailingStopLimit:
		if ord.Price2 > 0 {
			return ord.Price2
		}
	}
	return slip.Adjust(tick.Price, ord.Side)
}

// applyFill settles one order: exit orders close their percent of the
// attached position and cancel OCO siblings; standalone orders open a new
// position, or are canceled with an error event when the ledger rejects
// the open.
func applyFill(acct models.PaperAccount, limits Limits, ord models.AccountOrder, fillPrice float64, tick models.Tick) (models.PaperAccount, []models.ExecutionEvent) {
	now := tick.Timestamp
	var events []models.ExecutionEvent

	if ord.PositionID != "" {
		percent := ord.ClosePercent
		if percent == 0 {
			percent = 100
		}
		next, res, err := closePosition(acct, ord.PositionID, percent, fillPrice, now, ord.ID)
		if err != nil {
			next = markOrder(acct, ord.ID, models.OrderCanceled, 0)
			events = append(events, errorEvent(now, ord.ID, "", fmt.Sprintf("exit order %s canceled: %v", ord.ID, err)))
			return next, events
		}
		// Exit amount is derived from the live position at fill time.
		next = markOrder(next, ord.ID, models.OrderFilled, res.AmountClosed)
		next = cancelOCOSiblings(next, ord, now)
		events = append(events,
			event(models.EventOrderFilled, now, ord.ID, ord.PositionID,
				fmt.Sprintf("%s %s filled at %.4f (%.2f%% of position)", ord.Type, ord.Side, fillPrice, percent)),
			event(models.EventPositionClosed, now, ord.ID, ord.PositionID,
				fmt.Sprintf("closed %.6f %s at %.4f, realized PnL %.4f USD", res.AmountClosed, ord.Symbol, fillPrice, res.RealizedPnl)))
		return next, events
	}

	side := models.Long
	if ord.Side == models.Sell {
		side = models.Short
	}
	next, pos, err := OpenPosition(acct, limits, ord.Symbol, side, ord.Amount, fillPrice, ord.Leverage, now)
	if err != nil {
		next = markOrder(acct, ord.ID, models.OrderCanceled, ord.Amount)
		events = append(events, errorEvent(now, ord.ID, "", fmt.Sprintf("order %s canceled: %v", ord.ID, err)))
		return next, events
	}
	next = markOrder(next, ord.ID, models.OrderFilled, ord.Amount)
	events = append(events,
		event(models.EventOrderFilled, now, ord.ID, pos.ID,
			fmt.Sprintf("%s %s filled at %.4f, amount %.6f", ord.Type, ord.Side, fillPrice, ord.Amount)),
		event(models.EventPositionOpened, now, ord.ID, pos.ID,
			fmt.Sprintf("opened %s %.6f %s at %.4f, margin %.4f USD", pos.Side, pos.Amount, pos.Symbol, pos.EntryPrice, pos.MarginUsedUsd)))
	return next, events
}

// cancelOCOSiblings cancels every other open order sharing the filled
// order's OCO group.
func cancelOCOSiblings(acct models.PaperAccount, filled models.AccountOrder, now int64) models.PaperAccount {
	if filled.OCOGroupID == "" {
		return acct
	}
	for i := range acct.OpenOrders {
		sib := acct.OpenOrders[i]
		if sib.ID != filled.ID && sib.OCOGroupID == filled.OCOGroupID && sib.Status == models.OrderOpen {
			acct.OpenOrders[i].Status = models.OrderCanceled
		}
	}
	acct.UpdatedAt = now
	return acct
}

// CancelAllOpenOrders cancels every open order; the sweep moves them to
// history.
func CancelAllOpenOrders(acct models.PaperAccount, now int64) models.PaperAccount {
	next := acct.Clone()
	for i := range next.OpenOrders {
		if next.OpenOrders[i].Status == models.OrderOpen {
			next.OpenOrders[i].Status = models.OrderCanceled
		}
	}
	return sweepOrders(next, now)
}

// sweepOrders moves every non-open order from the live book into history.
func sweepOrders(acct models.PaperAccount, now int64) models.PaperAccount {
	kept := acct.OpenOrders[:0:0]
	for _, ord := range acct.OpenOrders {
		if ord.Status == models.OrderOpen {
			kept = append(kept, ord)
			continue
		}
		acct.OrderHistory = append(acct.OrderHistory, ord)
	}
	acct.OpenOrders = kept
	acct.UpdatedAt = now
	return acct
}

func markOrder(acct models.PaperAccount, id string, status models.OrderStatus, amount float64) models.PaperAccount {
	for i := range acct.OpenOrders {
		if acct.OpenOrders[i].ID == id && acct.OpenOrders[i].Status == models.OrderOpen {
			acct.OpenOrders[i].Status = status
			if amount > 0 {
				acct.OpenOrders[i].Amount = amount
			}
		}
	}
	return acct
}

func openOrderIndex(acct models.PaperAccount, id string) int {
	for i, ord := range acct.OpenOrders {
		if ord.ID == id && ord.Status == models.OrderOpen {
			return i
		}
	}
	return -1
}

func event(kind models.EventKind, ts int64, orderID, positionID, msg string) models.ExecutionEvent {
	return models.ExecutionEvent{
		ID:         idgen.New("evt"),
		Kind:       kind,
		Message:    msg,
		Timestamp:  ts,
		OrderID:    orderID,
		PositionID: positionID,
	}
}

func errorEvent(ts int64, orderID, positionID, msg string) models.ExecutionEvent {
	return event(models.EventError, ts, orderID, positionID, msg)
}
