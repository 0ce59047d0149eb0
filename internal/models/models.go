package models

import "math"

// Tick is one sampled price point paired with its predecessor. The pair is
// the unit of engine advancement: every transition check compares the
// previous sample against the current one.
type Tick struct {
	Symbol        string  `json:"symbol"`
	Timestamp     int64   `json:"timestamp"` // unix milliseconds
	Price         float64 `json:"price"`
	PrevTimestamp int64   `json:"prevTimestamp"`
	PrevPrice     float64 `json:"prevPrice"`
}

// PricePoint is a single anchor in time-price space.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// ShapeKind discriminates the drawn shape variants.
type ShapeKind string

const (
	ShapeLine      ShapeKind = "line"
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
	ShapeChannel   ShapeKind = "parallel_channel"
)

// Shape is a drawn geometric trigger region. Each variant is a concrete
// struct so condition dispatch can switch exhaustively on the kind.
type Shape interface {
	Kind() ShapeKind
	// MaxTimestamp returns the latest anchor timestamp of the shape.
	// A trigger becomes geometrically impossible once this has passed.
	MaxTimestamp() int64
}

// Line is a segment between two anchors. Its value extrapolates beyond the
// anchors; retiring out-of-range triggers is the trigger engine's job.
type Line struct {
	ID string     `json:"id"`
	A  PricePoint `json:"a"`
	B  PricePoint `json:"b"`
}

func (l Line) Kind() ShapeKind { return ShapeLine }
func (l Line) MaxTimestamp() int64 {
	if l.A.Timestamp > l.B.Timestamp {
		return l.A.Timestamp
	}
	return l.B.Timestamp
}

// Rectangle is an axis-aligned box spanned by two opposite corners.
type Rectangle struct {
	ID string     `json:"id"`
	A  PricePoint `json:"a"`
	B  PricePoint `json:"b"`
}

func (r Rectangle) Kind() ShapeKind { return ShapeRectangle }
func (r Rectangle) MaxTimestamp() int64 {
	if r.A.Timestamp > r.B.Timestamp {
		return r.A.Timestamp
	}
	return r.B.Timestamp
}

// Circle is stored as a center plus one point on its edge. Geometrically it
// is an ellipse whose axes are scaled by the center-to-edge deltas.
type Circle struct {
	ID     string     `json:"id"`
	Center PricePoint `json:"center"`
	Edge   PricePoint `json:"edge"`
}

func (c Circle) Kind() ShapeKind { return ShapeCircle }
func (c Circle) MaxTimestamp() int64 {
	dt := c.Edge.Timestamp - c.Center.Timestamp
	if dt < 0 {
		dt = -dt
	}
	return c.Center.Timestamp + dt
}

// ParallelChannel is the (A,B) base line plus the same line translated so
// that A lands on Offset.
type ParallelChannel struct {
	ID     string     `json:"id"`
	A      PricePoint `json:"a"`
	B      PricePoint `json:"b"`
	Offset PricePoint `json:"offset"`
}

func (p ParallelChannel) Kind() ShapeKind { return ShapeChannel }
func (p ParallelChannel) MaxTimestamp() int64 {
	max := p.A.Timestamp
	if p.B.Timestamp > max {
		max = p.B.Timestamp
	}
	if p.Offset.Timestamp > max {
		max = p.Offset.Timestamp
	}
	return max
}

// TriggerCondition names the transition a trigger fires on. The valid set
// depends on the shape kind; the trigger engine switches exhaustively.
type TriggerCondition string

const (
	// Line conditions.
	CondCrossUp   TriggerCondition = "cross_up"
	CondCrossDown TriggerCondition = "cross_down"
	CondTouch     TriggerCondition = "touch"

	// Rectangle conditions.
	CondExitTop     TriggerCondition = "exit_top"
	CondExitBottom  TriggerCondition = "exit_bottom"
	CondExitLeft    TriggerCondition = "exit_left"
	CondExitRight   TriggerCondition = "exit_right"
	CondExitAny     TriggerCondition = "exit_any"
	CondEnterTop    TriggerCondition = "enter_top"
	CondEnterBottom TriggerCondition = "enter_bottom"
	CondEnterLeft   TriggerCondition = "enter_left"
	CondEnterRight  TriggerCondition = "enter_right"
	CondEnterAny    TriggerCondition = "enter_any"

	// Circle conditions.
	CondCircleEnter TriggerCondition = "enter"
	CondCircleExit  TriggerCondition = "exit"
	CondTouchEdge   TriggerCondition = "touch_edge"

	// Parallel channel conditions.
	CondBreakUpper   TriggerCondition = "break_upper"
	CondBreakLower   TriggerCondition = "break_lower"
	CondEnterChannel TriggerCondition = "enter_channel"
	CondExitChannel  TriggerCondition = "exit_any_channel"
)

// ShapeTrigger binds a shape and condition to an action tree.
// TriggeredAt is set only after a successful fire; a trigger whose tree
// contains no one-shot leaf may fire again on a later transition.
type ShapeTrigger struct {
	ID          string           `json:"id"`
	ShapeID     string           `json:"shapeId"`
	ShapeKind   ShapeKind        `json:"shapeType"`
	Condition   TriggerCondition `json:"condition"`
	Actions     ActionTree       `json:"actions"`
	IsActive    bool             `json:"isActive"`
	CreatedAt   int64            `json:"createdAt"`
	TriggeredAt *int64           `json:"triggeredAt,omitempty"`
}

// HasFired reports whether the trigger has fired at least once.
func (t ShapeTrigger) HasFired() bool { return t.TriggeredAt != nil }

// ActionType enumerates the executable action kinds.
type ActionType string

const (
	ActionAlert             ActionType = "alert"
	ActionMarketBuy         ActionType = "market_buy"
	ActionMarketSell        ActionType = "market_sell"
	ActionLimitBuy          ActionType = "limit_buy"
	ActionLimitSell         ActionType = "limit_sell"
	ActionStopLoss          ActionType = "stop_loss"
	ActionStopLossLimit     ActionType = "stop_loss_limit"
	ActionTakeProfit        ActionType = "take_profit"
	ActionTakeProfitLimit   ActionType = "take_profit_limit"
	ActionTrailingStop      ActionType = "trailing_stop"
	ActionTrailingStopLimit ActionType = "trailing_stop_limit"
)

// IsEntry reports whether the action opens new exposure.
func (a ActionType) IsEntry() bool {
	switch a {
	case ActionMarketBuy, ActionMarketSell, ActionLimitBuy, ActionLimitSell:
		return true
	}
	return false
}

// IsExit reports whether the action closes an existing position and
// therefore requires a parent position.
func (a ActionType) IsExit() bool {
	switch a {
	case ActionStopLoss, ActionStopLossLimit, ActionTakeProfit,
		ActionTakeProfitLimit, ActionTrailingStop, ActionTrailingStopLimit:
		return true
	}
	return false
}

// SizeUnit selects how an entry action's size is interpreted.
type SizeUnit string

const (
	SizeUSD     SizeUnit = "usd"     // fixed quote value
	SizeBase    SizeUnit = "base"    // fixed base units
	SizePercent SizeUnit = "percent" // percent of current equity
)

// OffsetUnit selects how a trailing offset is interpreted.
type OffsetUnit string

const (
	OffsetPercent  OffsetUnit = "percent"
	OffsetAbsolute OffsetUnit = "absolute"
)

// ActionConfig carries all per-action parameters. Construct it through
// NewActionConfig so defaults are applied in exactly one place.
type ActionConfig struct {
	SizeUnit           SizeUnit   `json:"sizeUnit"`
	Size               float64    `json:"size"`
	Price              float64    `json:"price,omitempty"`  // limit price or stop/trigger level
	Price2             float64    `json:"price2,omitempty"` // limit leg of *_limit exit variants
	Leverage           float64    `json:"leverage"`
	ClosePercent       float64    `json:"closePercent"`
	TrailingOffset     float64    `json:"trailingOffset,omitempty"`
	TrailingOffsetUnit OffsetUnit `json:"trailingOffsetUnit,omitempty"`
	OneShot            bool       `json:"oneShot,omitempty"`
	Message            string     `json:"message,omitempty"`
}

// NewActionConfig returns a config with every optional field defaulted:
// leverage 1, full close, USD sizing, percent trailing offsets.
func NewActionConfig() ActionConfig {
	return ActionConfig{
		SizeUnit:           SizeUSD,
		Leverage:           1,
		ClosePercent:       100,
		TrailingOffsetUnit: OffsetPercent,
	}
}

// ActionNode is one node of a trigger's action tree. Children are indices
// into the owning ActionTree arena, never pointers, so trees serialize
// flat and execution never recurses through owned collections.
type ActionNode struct {
	ID       string       `json:"id"`
	Type     ActionType   `json:"type"`
	Config   ActionConfig `json:"config"`
	Children []int        `json:"children,omitempty"`
}

// ActionTree is an arena of nodes plus the root indices.
type ActionTree struct {
	Nodes []ActionNode `json:"nodes"`
	Roots []int        `json:"roots"`
}

// Clone returns a deep copy of the tree, including each node's child
// index slice.
func (t ActionTree) Clone() ActionTree {
	cp := ActionTree{
		Nodes: append([]ActionNode(nil), t.Nodes...),
		Roots: append([]int(nil), t.Roots...),
	}
	for i, n := range cp.Nodes {
		cp.Nodes[i].Children = append([]int(nil), n.Children...)
	}
	return cp
}

// HasOneShot reports whether any node in the tree is marked one-shot.
// A trigger containing such a node never re-fires.
func (t ActionTree) HasOneShot() bool {
	for _, n := range t.Nodes {
		if n.Config.OneShot {
			return true
		}
	}
	return false
}

// OrderSide is the taker direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// PositionSide is the exposure direction of a position.
type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// Opposite returns the closing order side for a position side.
func (s PositionSide) Opposite() OrderSide {
	if s == Long {
		return Sell
	}
	return Buy
}

// OrderType enumerates the simulated order variants.
type OrderType string

const (
	Market            OrderType = "market"
	Limit             OrderType = "limit"
	StopLoss          OrderType = "stop_loss"
	StopLossLimit     OrderType = "stop_loss_limit"
	TakeProfit        OrderType = "take_profit"
	TakeProfitLimit   OrderType = "take_profit_limit"
	TrailingStop      OrderType = "trailing_stop"
	TrailingStopLimit OrderType = "trailing_stop_limit"
)

// IsTrailing reports whether the order's stop level follows the price.
func (t OrderType) IsTrailing() bool {
	return t == TrailingStop || t == TrailingStopLimit
}

// OrderStatus is the lifecycle state of an order. The only legal
// transitions are open->filled and open->canceled.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderFilled   OrderStatus = "filled"
	OrderCanceled OrderStatus = "canceled"
)

// AccountOrder is a simulated order resting in the paper account.
// For exit orders (PositionID set) Amount stays zero; the filled amount is
// derived from ClosePercent of the live position at fill time.
type AccountOrder struct {
	ID                 string      `json:"id"`
	Symbol             string      `json:"symbol"`
	Side               OrderSide   `json:"side"`
	Type               OrderType   `json:"type"`
	Price              float64     `json:"price"`
	Price2             float64     `json:"price2,omitempty"`
	Amount             float64     `json:"amount"`
	Status             OrderStatus `json:"status"`
	PositionID         string      `json:"positionId,omitempty"`
	ClosePercent       float64     `json:"closePercent,omitempty"`
	TrailingOffset     float64     `json:"trailingOffset,omitempty"`
	TrailingOffsetUnit OffsetUnit  `json:"trailingOffsetUnit,omitempty"`
	TrailRefPrice      float64     `json:"trailRefPrice,omitempty"`
	OCOGroupID         string      `json:"ocoGroupId,omitempty"`
	Leverage           float64     `json:"leverage,omitempty"`
	CreatedAt          int64       `json:"createdAt"`
}

// AccountPosition is an open leveraged position. It is mutated only by
// partial or full closes; a full close removes it and appends a
// PositionHistory record instead.
type AccountPosition struct {
	ID            string       `json:"id"`
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Amount        float64      `json:"amount"`
	EntryPrice    float64      `json:"entryPrice"`
	Leverage      float64      `json:"leverage"`
	MarginUsedUsd float64      `json:"marginUsedUsd"`
	OpenedAt      int64        `json:"openedAt"`
}

// UnrealizedPnl values the position against a mark price.
func (p AccountPosition) UnrealizedPnl(markPrice float64) float64 {
	if p.Side == Long {
		return (markPrice - p.EntryPrice) * p.Amount
	}
	return (p.EntryPrice - markPrice) * p.Amount
}

// PositionHistory records a fully closed position.
type PositionHistory struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	Side        PositionSide `json:"side"`
	Amount      float64      `json:"amount"`
	EntryPrice  float64      `json:"entryPrice"`
	ExitPrice   float64      `json:"exitPrice"`
	RealizedPnl float64      `json:"realizedPnl"`
	OpenedAt    int64        `json:"openedAt"`
	ClosedAt    int64        `json:"closedAt"`
}

// EventKind classifies execution events.
type EventKind string

const (
	EventOrderCreated   EventKind = "order_created"
	EventOrderFilled    EventKind = "order_filled"
	EventPositionOpened EventKind = "position_opened"
	EventPositionClosed EventKind = "position_closed"
	EventTriggerFired   EventKind = "trigger_fired"
	EventAlert          EventKind = "alert"
	EventError          EventKind = "error"
)

// ExecutionEvent is one entry of the append-only engine log. Failures are
// events too; the engine never raises them as errors to the caller.
type ExecutionEvent struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	Message    string    `json:"message"`
	Timestamp  int64     `json:"timestamp"`
	OrderID    string    `json:"orderId,omitempty"`
	PositionID string    `json:"positionId,omitempty"`
	TriggerID  string    `json:"triggerId,omitempty"`
}

// PaperAccount is the full simulated ledger. It is threaded through the
// engine as a value: every step consumes one account and returns the next.
type PaperAccount struct {
	BalanceUSD      float64           `json:"balanceUsd"`
	OpenOrders      []AccountOrder    `json:"openOrders"`
	OpenPositions   []AccountPosition `json:"openPositions"`
	OrderHistory    []AccountOrder    `json:"orderHistory"`
	PositionHistory []PositionHistory `json:"positionHistory"`
	ExecutionEvents []ExecutionEvent  `json:"executionEvents"`
	UpdatedAt       int64             `json:"updatedAt"`
}

// NewPaperAccount returns an empty account funded with the given USD.
func NewPaperAccount(initialUSD float64) PaperAccount {
	return PaperAccount{BalanceUSD: initialUSD}
}

// Clone returns a deep copy so callers can derive the next state without
// aliasing the previous one.
func (a PaperAccount) Clone() PaperAccount {
	cp := a
	cp.OpenOrders = append([]AccountOrder(nil), a.OpenOrders...)
	cp.OpenPositions = append([]AccountPosition(nil), a.OpenPositions...)
	cp.OrderHistory = append([]AccountOrder(nil), a.OrderHistory...)
	cp.PositionHistory = append([]PositionHistory(nil), a.PositionHistory...)
	cp.ExecutionEvents = append([]ExecutionEvent(nil), a.ExecutionEvents...)
	return cp
}

// UsedMargin sums the margin locked by all open positions.
func (a PaperAccount) UsedMargin() float64 {
	var used float64
	for _, p := range a.OpenPositions {
		used += p.MarginUsedUsd
	}
	return used
}

// Equity is free USD plus locked margin plus unrealized PnL at the mark.
func (a PaperAccount) Equity(markPrice float64) float64 {
	equity := a.BalanceUSD
	for _, p := range a.OpenPositions {
		equity += p.MarginUsedUsd + p.UnrealizedPnl(markPrice)
	}
	return equity
}

// MarginLevel is equity / used margin * 100, the core solvency metric.
// With no margin in use the account is unconstrained and the level is +Inf.
func (a PaperAccount) MarginLevel(markPrice float64) float64 {
	used := a.UsedMargin()
	if used <= 0 {
		return math.Inf(1)
	}
	return a.Equity(markPrice) / used * 100
}

// Position returns the open position with the given id, if any.
func (a PaperAccount) Position(id string) (AccountPosition, bool) {
	for _, p := range a.OpenPositions {
		if p.ID == id {
			return p, true
		}
	}
	return AccountPosition{}, false
}

// SlippageConfig adjusts taker fills away from the observed price.
type SlippageConfig struct {
	Rate float64 `json:"rate"` // e.g. 0.0005 = 5 bps
}

// Adjust applies slippage in the taker's disfavor: buys pay more,
// sells receive less.
func (s SlippageConfig) Adjust(price float64, side OrderSide) float64 {
	if side == Buy {
		return price * (1 + s.Rate)
	}
	return price * (1 - s.Rate)
}

// IndicatorSnapshot carries externally computed indicator values for block
// gates. Nil means the indicator is not available yet; gates treat that as
// a failure with a reason.
type IndicatorSnapshot struct {
	RSI       *float64 `json:"rsi"`
	AvgVolume *float64 `json:"avgVolume"`
}

// BlockKind enumerates the single-order block variants.
type BlockKind string

const (
	BlockMarket            BlockKind = "market"
	BlockLimit             BlockKind = "limit"
	BlockIceberg           BlockKind = "iceberg"
	BlockStop              BlockKind = "stop"
	BlockTakeProfit        BlockKind = "take_profit"
	BlockTrailingStop      BlockKind = "trailing_stop"
	BlockTrailingStopLimit BlockKind = "trailing_stop_limit"
)

// GateIndicator names the indicator a gate reads.
type GateIndicator string

const (
	GateRSI    GateIndicator = "rsi"
	GateVolume GateIndicator = "volume"
)

// GateOp is the comparison a gate applies.
type GateOp string

const (
	GateLT GateOp = "lt"
	GateGT GateOp = "gt"
)

// BlockGate is an indicator precondition evaluated at price-hit time.
type BlockGate struct {
	Indicator GateIndicator `json:"indicator"`
	Op        GateOp        `json:"op"`
	Value     float64       `json:"value"`
}

// FailAction selects what a block does when its gates fail.
type FailAction string

const (
	FailFreeze      FailAction = "freeze"
	FailPartialFill FailAction = "partial_fill"
	FailOverride    FailAction = "override"
)

// BlockParams holds the kind-specific price parameters of a block.
type BlockParams struct {
	LimitPrice         float64 `json:"limitPrice,omitempty"`
	StopPrice          float64 `json:"stopPrice,omitempty"`
	TrailingOffset     float64 `json:"trailingOffset,omitempty"`
	PartialFillPercent float64 `json:"partialFillPercent,omitempty"`
}

// Block is a single gated order intent placed on the canvas.
type Block struct {
	ID         string      `json:"id"`
	Kind       BlockKind   `json:"kind"`
	Side       OrderSide   `json:"side"`
	Active     bool        `json:"active"`
	Anchor     float64     `json:"anchor"`
	Allocation float64     `json:"allocation"`
	Params     BlockParams `json:"params"`
	Gates      []BlockGate `json:"gates,omitempty"`
	FailAction FailAction  `json:"failAction,omitempty"`
}

// BlockStatus is the runtime state of a block; filled is terminal.
type BlockStatus string

const (
	BlockIdle   BlockStatus = "idle"
	BlockArmed  BlockStatus = "armed"
	BlockFrozen BlockStatus = "frozen"
	BlockFilled BlockStatus = "filled"
)

// BlockState is the mutable runtime companion of a Block.
type BlockState struct {
	Status        BlockStatus `json:"status"`
	FillPrice     float64     `json:"fillPrice,omitempty"`
	FilledPercent float64     `json:"filledPercent,omitempty"`
	Note          string      `json:"note,omitempty"`
	RiskLevel     string      `json:"riskLevel,omitempty"`
}
