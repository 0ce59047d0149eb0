// Package action executes the action tree of a fired trigger: alerts,
// entry orders that open positions, and exit orders attached to the
// position an ancestor entry produced.
package action

import (
	"fmt"

	"chart-trigger-bot-go/internal/account"
	"chart-trigger-bot-go/internal/idgen"
	"chart-trigger-bot-go/internal/logger"
	"chart-trigger-bot-go/internal/models"
)

// Executor walks action trees against the paper account.
type Executor struct {
	limits account.Limits
	slip   models.SlippageConfig
}

// NewExecutor returns an executor bound to the given solvency limits and
// slippage model.
func NewExecutor(limits account.Limits, slip models.SlippageConfig) *Executor {
	return &Executor{limits: limits, slip: slip}
}

// chainCtx is the state inherited down one branch of the action tree.
type chainCtx struct {
	positionID string
	// ocoGroup is allocated lazily the first time a position exists, so
	// all sibling exit orders below the same entry cancel one another.
	ocoGroup *string
}

// Execute runs the fired trigger's actions depth-first. A failing action
// produces an error event and aborts only its own subtree; siblings and
// the rest of the tick continue.
func (x *Executor) Execute(acct models.PaperAccount, trig models.ShapeTrigger, tick models.Tick) (models.PaperAccount, []models.ExecutionEvent) {
	var events []models.ExecutionEvent
	for _, root := range trig.Actions.Roots {
		var evts []models.ExecutionEvent
		acct, evts = x.execNode(acct, trig, root, tick, chainCtx{ocoGroup: new(string)})
		events = append(events, evts...)
	}
	return acct, events
}

func (x *Executor) execNode(acct models.PaperAccount, trig models.ShapeTrigger, idx int, tick models.Tick, ctx chainCtx) (models.PaperAccount, []models.ExecutionEvent) {
	if idx < 0 || idx >= len(trig.Actions.Nodes) {
		return acct, []models.ExecutionEvent{x.errEvent(trig, tick, "", fmt.Sprintf("action index %d out of range", idx))}
	}
	node := trig.Actions.Nodes[idx]
	var events []models.ExecutionEvent

	switch {
	case node.Type == models.ActionAlert:
		msg := node.Config.Message
		if msg == "" {
			msg = fmt.Sprintf("trigger %s fired", trig.ID)
		}
		logger.S().Infof("alert from trigger %s: %s", trig.ID, msg)
		events = append(events, models.ExecutionEvent{
			ID:        idgen.New("evt"),
			Kind:      models.EventAlert,
			Message:   msg,
			Timestamp: tick.Timestamp,
			TriggerID: trig.ID,
		})

	case node.Type.IsEntry():
		var evts []models.ExecutionEvent
		var posID string
		acct, posID, evts = x.execEntry(acct, trig, node, tick)
		events = append(events, evts...)
		if node.Type == models.ActionMarketBuy || node.Type == models.ActionMarketSell {
			if posID == "" {
				return acct, events // open rejected, subtree aborted
			}
			ctx.positionID = posID
			ctx.ocoGroup = new(string)
		} else {
			// A resting limit entry has no position yet; exit children
			// below it will report the missing parent themselves.
			ctx.positionID = ""
			ctx.ocoGroup = new(string)
		}

	case node.Type.IsExit():
		if ctx.positionID == "" {
			events = append(events, x.errEvent(trig, tick, "",
				fmt.Sprintf("%s action requires a parent position", node.Type)))
			return acct, events
		}
		var evts []models.ExecutionEvent
		acct, evts = x.execExit(acct, trig, node, tick, ctx)
		events = append(events, evts...)

	default:
		events = append(events, x.errEvent(trig, tick, "", fmt.Sprintf("unsupported action type %q", node.Type)))
		return acct, events
	}

	for _, child := range node.Children {
		var evts []models.ExecutionEvent
		acct, evts = x.execNode(acct, trig, child, tick, ctx)
		events = append(events, evts...)
	}
	return acct, events
}

// execEntry sizes and places an entry order. Market entries fill
// immediately against the ledger; limit entries rest in the book.
func (x *Executor) execEntry(acct models.PaperAccount, trig models.ShapeTrigger, node models.ActionNode, tick models.Tick) (models.PaperAccount, string, []models.ExecutionEvent) {
	cfg := node.Config
	side := models.Buy
	if node.Type == models.ActionMarketSell || node.Type == models.ActionLimitSell {
		side = models.Sell
	}

	amount, err := x.sizeAmount(acct, cfg, tick.Price)
	if err != nil {
		return acct, "", []models.ExecutionEvent{x.errEvent(trig, tick, "", err.Error())}
	}

	ord := models.AccountOrder{
		ID:        idgen.New("ord"),
		Symbol:    tick.Symbol,
		Side:      side,
		Amount:    amount,
		Status:    models.OrderOpen,
		Leverage:  cfg.Leverage,
		CreatedAt: tick.Timestamp,
	}

	var events []models.ExecutionEvent

	switch node.Type {
	case models.ActionMarketBuy, models.ActionMarketSell:
		ord.Type = models.Market
		fillPrice := x.slip.Adjust(tick.Price, side)
		posSide := models.Long
		if side == models.Sell {
			posSide = models.Short
		}
		next, pos, err := account.OpenPosition(acct, x.limits, tick.Symbol, posSide, amount, fillPrice, cfg.Leverage, tick.Timestamp)
		if err != nil {
			ord.Status = models.OrderCanceled
			withOrder := acct.Clone()
			withOrder.OrderHistory = append(withOrder.OrderHistory, ord)
			events = append(events, x.errEvent(trig, tick, ord.ID, fmt.Sprintf("entry rejected: %v", err)))
			return withOrder, "", events
		}
		ord.Status = models.OrderFilled
		ord.Price = fillPrice
		ord.PositionID = pos.ID
		next.OrderHistory = append(next.OrderHistory, ord)
		events = append(events,
			x.orderEvent(models.EventOrderCreated, trig, tick, ord.ID, pos.ID,
				fmt.Sprintf("market %s %.6f %s", side, amount, tick.Symbol)),
			x.orderEvent(models.EventOrderFilled, trig, tick, ord.ID, pos.ID,
				fmt.Sprintf("market %s filled at %.4f", side, fillPrice)),
			x.orderEvent(models.EventPositionOpened, trig, tick, ord.ID, pos.ID,
				fmt.Sprintf("opened %s %.6f %s at %.4f, margin %.4f USD", pos.Side, pos.Amount, pos.Symbol, pos.EntryPrice, pos.MarginUsedUsd)))
		return next, pos.ID, events

	default: // limit_buy / limit_sell
		ord.Type = models.Limit
		ord.Price = cfg.Price
		if ord.Price <= 0 {
			events = append(events, x.errEvent(trig, tick, "", "limit entry requires a positive price"))
			return acct, "", events
		}
		next := acct.Clone()
		next.OpenOrders = append(next.OpenOrders, ord)
		next.UpdatedAt = tick.Timestamp
		events = append(events, x.orderEvent(models.EventOrderCreated, trig, tick, ord.ID, "",
			fmt.Sprintf("limit %s %.6f %s at %.4f", side, amount, tick.Symbol, ord.Price)))
		return next, "", events
	}
}

// execExit attaches an exit order to the chain's position. The side is
// always the opposite of the position's side, and all exit siblings under
// one entry share a lazily allocated OCO group.
func (x *Executor) execExit(acct models.PaperAccount, trig models.ShapeTrigger, node models.ActionNode, tick models.Tick, ctx chainCtx) (models.PaperAccount, []models.ExecutionEvent) {
	pos, ok := acct.Position(ctx.positionID)
	if !ok {
		return acct, []models.ExecutionEvent{x.errEvent(trig, tick, "",
			fmt.Sprintf("parent position %s no longer open", ctx.positionID))}
	}

	orderType, ok := exitOrderType(node.Type)
	if !ok {
		return acct, []models.ExecutionEvent{x.errEvent(trig, tick, "", fmt.Sprintf("unsupported exit action %q", node.Type))}
	}

	cfg := node.Config
	percent := cfg.ClosePercent
	if percent == 0 {
		percent = 100
	}

	if *ctx.ocoGroup == "" {
		*ctx.ocoGroup = idgen.New("oco")
	}

	ord := models.AccountOrder{
		ID:           idgen.New("ord"),
		Symbol:       pos.Symbol,
		Side:         pos.Side.Opposite(),
		Type:         orderType,
		Price:        cfg.Price,
		Price2:       cfg.Price2,
		Status:       models.OrderOpen,
		PositionID:   pos.ID,
		ClosePercent: percent,
		OCOGroupID:   *ctx.ocoGroup,
		CreatedAt:    tick.Timestamp,
	}

	if orderType.IsTrailing() {
		ord.TrailingOffset = cfg.TrailingOffset
		ord.TrailingOffsetUnit = cfg.TrailingOffsetUnit
		if ord.TrailingOffsetUnit == "" {
			ord.TrailingOffsetUnit = models.OffsetPercent
		}
		if ord.TrailingOffset <= 0 {
			return acct, []models.ExecutionEvent{x.errEvent(trig, tick, "", "trailing exit requires a positive offset")}
		}
		ord.TrailRefPrice = tick.Price
		ord = retrailInitial(ord)
	} else if ord.Price <= 0 {
		return acct, []models.ExecutionEvent{x.errEvent(trig, tick, "", fmt.Sprintf("%s requires a positive trigger price", node.Type))}
	}

	next := acct.Clone()
	next.OpenOrders = append(next.OpenOrders, ord)
	next.UpdatedAt = tick.Timestamp
	return next, []models.ExecutionEvent{x.orderEvent(models.EventOrderCreated, trig, tick, ord.ID, pos.ID,
		fmt.Sprintf("%s %s attached to position %s (%.2f%%)", ord.Type, ord.Side, pos.ID, percent))}
}

// retrailInitial computes the initial stop level from the just-anchored
// reference price.
func retrailInitial(ord models.AccountOrder) models.AccountOrder {
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

// sizeAmount converts an entry config into base units at the tick price.
func (x *Executor) sizeAmount(acct models.PaperAccount, cfg models.ActionConfig, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("cannot size order at price %.8f", price)
	}
	switch cfg.SizeUnit {
	case models.SizeBase:
		if cfg.Size <= 0 {
			return 0, fmt.Errorf("invalid base size %.8f", cfg.Size)
		}
		return cfg.Size, nil
	case models.SizePercent:
		if cfg.Size <= 0 || cfg.Size > 100 {
			return 0, fmt.Errorf("invalid equity percent %.2f", cfg.Size)
		}
		usd := acct.Equity(price) * cfg.Size / 100
		return usd / price, nil
	case models.SizeUSD, "":
		if cfg.Size <= 0 {
			return 0, fmt.Errorf("invalid usd size %.8f", cfg.Size)
		}
		return cfg.Size / price, nil
	}
	return 0, fmt.Errorf("unsupported size unit %q", cfg.SizeUnit)
}

func exitOrderType(t models.ActionType) (models.OrderType, bool) {
	switch t {
	case models.ActionStopLoss:
		return models.StopLoss, true
	case models.ActionStopLossLimit:
		return models.StopLossLimit, true
	case models.ActionTakeProfit:
		return models.TakeProfit, true
	case models.ActionTakeProfitLimit:
		return models.TakeProfitLimit, true
	case models.ActionTrailingStop:
		return models.TrailingStop, true
	case models.ActionTrailingStopLimit:
		return models.TrailingStopLimit, true
	}
	return "", false
}

func (x *Executor) errEvent(trig models.ShapeTrigger, tick models.Tick, orderID, msg string) models.ExecutionEvent {
	return models.ExecutionEvent{
		ID:        idgen.New("evt"),
		Kind:      models.EventError,
		Message:   msg,
		Timestamp: tick.Timestamp,
		OrderID:   orderID,
		TriggerID: trig.ID,
	}
}

func (x *Executor) orderEvent(kind models.EventKind, trig models.ShapeTrigger, tick models.Tick, orderID, positionID, msg string) models.ExecutionEvent {
	return models.ExecutionEvent{
		ID:         idgen.New("evt"),
		Kind:       kind,
		Message:    msg,
		Timestamp:  tick.Timestamp,
		OrderID:    orderID,
		PositionID: positionID,
		TriggerID:  trig.ID,
	}
}
