package account

import (
	"fmt"
	"sort"

	"chart-trigger-bot-go/internal/models"
)

// EnforceMarginFloor ensures the margin level does not remain below the
// liquidation floor after any step. On a breach it cancels
// every open order, then force-closes positions in descending margin order
// at the mark price, re-checking the level after each close, until the
// account recovers or no positions remain. Exactly one error event
// carrying the level that triggered the pass is emitted.
func EnforceMarginFloor(acct models.PaperAccount, limits Limits, markPrice float64, now int64) (models.PaperAccount, []models.ExecutionEvent) {
	level := acct.MarginLevel(markPrice)
	if level >= limits.LiquidationLevel {
		return acct, nil
	}

	events := []models.ExecutionEvent{
		errorEvent(now, "", "", fmt.Sprintf(
			"margin level %.2f%% below liquidation floor %.2f%%, force-closing positions", level, limits.LiquidationLevel)),
	}

	next := CancelAllOpenOrders(acct, now)

	// Largest margin first frees the most used margin per close.
	order := append([]models.AccountPosition(nil), next.OpenPositions...)
	sort.Slice(order, func(i, j int) bool {
		return order[i].MarginUsedUsd > order[j].MarginUsedUsd
	})

	for _, pos := range order {
		closed, res, err := ClosePosition(next, pos.ID, 100, markPrice, now)
		if err != nil {
			events = append(events, errorEvent(now, "", pos.ID, fmt.Sprintf("liquidation close failed: %v", err)))
			continue
		}
		next = closed
		events = append(events, event(models.EventPositionClosed, now, "", pos.ID, fmt.Sprintf(
			"liquidated %s %.6f %s at %.4f, realized PnL %.4f USD", pos.Side, pos.Amount, pos.Symbol, markPrice, res.RealizedPnl)))
		if next.MarginLevel(markPrice) >= limits.LiquidationLevel {
			break
		}
	}

	next.UpdatedAt = now
	return next, events
}
