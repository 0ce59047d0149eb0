// Package trigger detects condition transitions between consecutive ticks
// for shape-bound triggers. The engine only classifies; it never mutates
// trigger state or touches the account. Firing bookkeeping (triggeredAt,
// deactivation) is applied by the caller.
package trigger

import (
	"chart-trigger-bot-go/internal/geometry"
	"chart-trigger-bot-go/internal/models"
)

// Engine evaluates registered triggers against tick transitions.
type Engine struct {
	eval *geometry.Evaluator
}

// NewEngine returns a trigger engine using the given geometry evaluator.
func NewEngine(eval *geometry.Evaluator) *Engine {
	return &Engine{eval: eval}
}

// Result lists the triggers that fired on this tick and the triggers that
// have become impossible and should be force-deactivated.
type Result struct {
	Fired      []string
	Deactivate []string
}

// Evaluate classifies every registered trigger against the tick. Inactive
// triggers are skipped, as are one-shot triggers that already fired. A
// trigger that does not fire is checked against the deactivation rule so
// dangling always-active triggers get retired.
func (e *Engine) Evaluate(triggers []models.ShapeTrigger, shapes map[string]models.Shape, tick models.Tick) Result {
	var res Result
	for _, trig := range triggers {
		if !trig.IsActive {
			continue
		}
		if trig.HasFired() && trig.Actions.HasOneShot() {
			continue
		}
		shape, ok := shapes[trig.ShapeID]
		if !ok {
			// Shape was deleted out from under the trigger.
			res.Deactivate = append(res.Deactivate, trig.ID)
			continue
		}
		if e.fires(trig, shape, tick) {
			res.Fired = append(res.Fired, trig.ID)
			continue
		}
		if e.shouldDeactivate(trig, shape, tick) {
			res.Deactivate = append(res.Deactivate, trig.ID)
		}
	}
	return res
}

// fires reports whether the trigger's condition transitioned between the
// previous and current sample.
func (e *Engine) fires(trig models.ShapeTrigger, shape models.Shape, tick models.Tick) bool {
	switch s := shape.(type) {
	case models.Line:
		return e.lineFires(trig.Condition, s, tick)
	case models.Rectangle:
		return rectFires(trig.Condition, s, tick)
	case models.Circle:
		return e.circleFires(trig.Condition, s, tick)
	case models.ParallelChannel:
		return e.channelFires(trig.Condition, s, tick)
	}
	return false
}

func (e *Engine) lineFires(cond models.TriggerCondition, l models.Line, tick models.Tick) bool {
	levelPrev := geometry.LineValueAt(l.A, l.B, tick.PrevTimestamp)
	levelNext := geometry.LineValueAt(l.A, l.B, tick.Timestamp)
	a := tick.PrevPrice - levelPrev
	b := tick.Price - levelNext

	switch cond {
	case models.CondCrossUp:
		return a <= 0 && b > 0
	case models.CondCrossDown:
		return a >= 0 && b < 0
	case models.CondTouch:
		return e.eval.Touching(l, tick.Timestamp, tick.Price)
	}
	return false
}

func rectFires(cond models.TriggerCondition, r models.Rectangle, tick models.Tick) bool {
	prevIn := geometry.RectContains(r, tick.PrevTimestamp, tick.PrevPrice)
	nextIn := geometry.RectContains(r, tick.Timestamp, tick.Price)

	switch cond {
	case models.CondExitTop, models.CondExitBottom, models.CondExitLeft,
		models.CondExitRight, models.CondExitAny:
		if !prevIn || nextIn {
			return false
		}
		// Exit edge is the bound the current sample ended up beyond.
		return edgeMatches(cond, geometry.RectEdge(r, tick.Timestamp, tick.Price))
	case models.CondEnterTop, models.CondEnterBottom, models.CondEnterLeft,
		models.CondEnterRight, models.CondEnterAny:
		if prevIn || !nextIn {
			return false
		}
		// Enter edge is the bound the previous sample came from.
		return edgeMatches(cond, geometry.RectEdge(r, tick.PrevTimestamp, tick.PrevPrice))
	}
	return false
}

func edgeMatches(cond models.TriggerCondition, edge geometry.Edge) bool {
	switch cond {
	case models.CondExitAny, models.CondEnterAny:
		return true
	case models.CondExitTop, models.CondEnterTop:
		return edge == geometry.EdgeTop
	case models.CondExitBottom, models.CondEnterBottom:
		return edge == geometry.EdgeBottom
	case models.CondExitLeft, models.CondEnterLeft:
		return edge == geometry.EdgeLeft
	case models.CondExitRight, models.CondEnterRight:
		return edge == geometry.EdgeRight
	}
	return false
}

func (e *Engine) circleFires(cond models.TriggerCondition, c models.Circle, tick models.Tick) bool {
	prevIn := geometry.CircleContains(c, tick.PrevTimestamp, tick.PrevPrice)
	nextIn := geometry.CircleContains(c, tick.Timestamp, tick.Price)

	switch cond {
	case models.CondCircleEnter:
		return !prevIn && nextIn
	case models.CondCircleExit:
		return prevIn && !nextIn
	case models.CondTouchEdge:
		prevTouch := e.eval.TouchingEdge(c, tick.PrevTimestamp, tick.PrevPrice)
		nextTouch := e.eval.TouchingEdge(c, tick.Timestamp, tick.Price)
		return nextTouch && !prevTouch
	}
	return false
}

func (e *Engine) channelFires(cond models.TriggerCondition, ch models.ParallelChannel, tick models.Tick) bool {
	prev := e.eval.ChannelRegionAt(ch, tick.PrevTimestamp, tick.PrevPrice)
	next := e.eval.ChannelRegionAt(ch, tick.Timestamp, tick.Price)

	switch cond {
	case models.CondBreakUpper:
		return prev == geometry.InChannel && next == geometry.AboveUpper
	case models.CondBreakLower:
		return prev == geometry.InChannel && next == geometry.BelowLower
	case models.CondEnterChannel:
		return prev != geometry.InChannel && next == geometry.InChannel
	case models.CondExitChannel:
		return prev == geometry.InChannel && next != geometry.InChannel
	}
	return false
}

// shouldDeactivate retires triggers that can no longer fire: the shape's
// time span has passed, or the current state already sits on the
// condition's done side without ever having transitioned through it.
// The done-side rule only applies to triggers that have never fired, so a
// re-fireable trigger survives the ticks after its own firing.
func (e *Engine) shouldDeactivate(trig models.ShapeTrigger, shape models.Shape, tick models.Tick) bool {
	if tick.Timestamp > shape.MaxTimestamp() {
		return true
	}
	if trig.HasFired() {
		return false
	}

	switch s := shape.(type) {
	case models.Line:
		level := geometry.LineValueAt(s.A, s.B, tick.Timestamp)
		switch trig.Condition {
		case models.CondCrossUp:
			return tick.Price > level
		case models.CondCrossDown:
			return tick.Price < level
		}
	case models.Rectangle:
		inside := geometry.RectContains(s, tick.Timestamp, tick.Price)
		switch {
		case isEnterCond(trig.Condition):
			return inside
		case isExitCond(trig.Condition):
			return !inside
		}
	case models.Circle:
		inside := geometry.CircleContains(s, tick.Timestamp, tick.Price)
		switch trig.Condition {
		case models.CondCircleEnter:
			return inside
		case models.CondCircleExit:
			return !inside
		}
	case models.ParallelChannel:
		region := e.eval.ChannelRegionAt(s, tick.Timestamp, tick.Price)
		switch trig.Condition {
		case models.CondBreakUpper:
			return region == geometry.AboveUpper
		case models.CondBreakLower:
			return region == geometry.BelowLower
		case models.CondEnterChannel:
			return region == geometry.InChannel
		case models.CondExitChannel:
			return region != geometry.InChannel
		}
	}
	return false
}

func isEnterCond(c models.TriggerCondition) bool {
	switch c {
	case models.CondEnterTop, models.CondEnterBottom, models.CondEnterLeft,
		models.CondEnterRight, models.CondEnterAny:
		return true
	}
	return false
}

func isExitCond(c models.TriggerCondition) bool {
	switch c {
	case models.CondExitTop, models.CondExitBottom, models.CondExitLeft,
		models.CondExitRight, models.CondExitAny:
		return true
	}
	return false
}
