// Package engine orchestrates one tick of the paper-trading simulation.
// The per-tick order is fixed: the order book advances and a liquidation
// pass runs before triggers are evaluated, and a second liquidation pass
// runs after action chains execute, so liquidation has final authority
// over solvency no matter how much exposure a trigger chain created.
package engine

import (
	"fmt"

	"chart-trigger-bot-go/internal/account"
	"chart-trigger-bot-go/internal/action"
	"chart-trigger-bot-go/internal/geometry"
	"chart-trigger-bot-go/internal/idgen"
	"chart-trigger-bot-go/internal/models"
	"chart-trigger-bot-go/internal/trigger"
)

// DefaultEventCap bounds the account's execution event ring.
const DefaultEventCap = 500

// Engine holds the per-session collaborators. It carries no tick state;
// Step is a pure function over the values it is handed.
type Engine struct {
	limits   account.Limits
	slip     models.SlippageConfig
	executor *action.Executor
	eventCap int
}

// New returns an engine with the given solvency limits and slippage model.
func New(limits account.Limits, slip models.SlippageConfig, eventCap int) *Engine {
	if eventCap <= 0 {
		eventCap = DefaultEventCap
	}
	return &Engine{
		limits:   limits,
		slip:     slip,
		executor: action.NewExecutor(limits, slip),
		eventCap: eventCap,
	}
}

// StepInput bundles the per-tick read-only collaborators.
type StepInput struct {
	Shapes map[string]models.Shape
	// ThresholdPrice is the geometry epsilon, derived by the caller from
	// the visible price range.
	ThresholdPrice float64
}

// StepResult is the engine's output for one tick.
type StepResult struct {
	Account  models.PaperAccount
	Triggers []models.ShapeTrigger
	FiredIDs []string
	Events   []models.ExecutionEvent
}

// Step advances the simulation by one tick. The caller's account and
// trigger slices are never mutated; updated copies are returned along with
// the tick's event log.
func (e *Engine) Step(acct models.PaperAccount, triggers []models.ShapeTrigger, tick models.Tick, in StepInput) StepResult {
	var events []models.ExecutionEvent

	next, evts := account.StepOrders(acct, e.limits, tick, e.slip)
	events = append(events, evts...)

	next, evts = account.EnforceMarginFloor(next, e.limits, tick.Price, tick.Timestamp)
	events = append(events, evts...)

	eval := geometry.NewEvaluator(in.ThresholdPrice)
	res := trigger.NewEngine(eval).Evaluate(triggers, in.Shapes, tick)

	nextTriggers := append([]models.ShapeTrigger(nil), triggers...)
	for _, id := range res.Deactivate {
		for i := range nextTriggers {
			if nextTriggers[i].ID == id {
				nextTriggers[i].IsActive = false
			}
		}
	}

	for _, id := range res.Fired {
		trig, ok := findTrigger(nextTriggers, id)
		if !ok {
			continue
		}
		events = append(events, models.ExecutionEvent{
			ID:        idgen.New("evt"),
			Kind:      models.EventTriggerFired,
			Message:   fmt.Sprintf("%s %s trigger fired on %s", trig.ShapeKind, trig.Condition, trig.ShapeID),
			Timestamp: tick.Timestamp,
			TriggerID: trig.ID,
		})
		next, evts = e.executor.Execute(next, trig, tick)
		events = append(events, evts...)

		ts := tick.Timestamp
		for i := range nextTriggers {
			if nextTriggers[i].ID == id {
				nextTriggers[i].TriggeredAt = &ts
			}
		}
	}

	next, evts = account.EnforceMarginFloor(next, e.limits, tick.Price, tick.Timestamp)
	events = append(events, evts...)

	next.ExecutionEvents = appendBounded(next.ExecutionEvents, events, e.eventCap)
	next.UpdatedAt = tick.Timestamp

	return StepResult{
		Account:  next,
		Triggers: nextTriggers,
		FiredIDs: res.Fired,
		Events:   events,
	}
}

// appendBounded appends to the event ring, dropping the oldest entries
// once the cap is exceeded.
func appendBounded(ring, events []models.ExecutionEvent, max int) []models.ExecutionEvent {
	ring = append(ring, events...)
	if len(ring) > max {
		ring = append([]models.ExecutionEvent(nil), ring[len(ring)-max:]...)
	}
	return ring
}

func findTrigger(triggers []models.ShapeTrigger, id string) (models.ShapeTrigger, bool) {
	for _, t := range triggers {
		if t.ID == id {
			return t, true
		}
	}
	return models.ShapeTrigger{}, false
}
