package trigger

import (
	"testing"

	"chart-trigger-bot-go/internal/geometry"
	"chart-trigger-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(ts int64, price float64) models.PricePoint {
	return models.PricePoint{Timestamp: ts, Price: price}
}

func tick(prevTS int64, prevPrice float64, ts int64, price float64) models.Tick {
	return models.Tick{
		Symbol:        "BTCUSDT",
		Timestamp:     ts,
		Price:         price,
		PrevTimestamp: prevTS,
		PrevPrice:     prevPrice,
	}
}

func newEngine() *Engine {
	return NewEngine(geometry.NewEvaluator(0.5))
}

func activeTrigger(shapeID string, kind models.ShapeKind, cond models.TriggerCondition) models.ShapeTrigger {
	return models.ShapeTrigger{
		ID:        "trig-" + shapeID,
		ShapeID:   shapeID,
		ShapeKind: kind,
		Condition: cond,
		IsActive:  true,
	}
}

func oneShotTree() models.ActionTree {
	cfg := models.NewActionConfig()
	cfg.OneShot = true
	cfg.Message = "fired"
	return models.ActionTree{
		Nodes: []models.ActionNode{{ID: "a1", Type: models.ActionAlert, Config: cfg}},
		Roots: []int{0},
	}
}

func TestLineCrossUpFires(t *testing.T) {
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(10000, 100)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossUp)

	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 99, 2000, 101))
	assert.Equal(t, []string{trig.ID}, res.Fired)
	assert.Empty(t, res.Deactivate)

	// Moving further up without re-crossing does not fire again.
	res = newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(2000, 101, 3000, 102))
	assert.Empty(t, res.Fired)
}

func TestLineCrossDownFromLevel(t *testing.T) {
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(10000, 100)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossDown)

	// Starting exactly on the level counts as the upper side.
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 100, 2000, 99))
	assert.Equal(t, []string{trig.ID}, res.Fired)
}

func TestSlopedLineCrossUsesLevelAtEachSample(t *testing.T) {
	// Rising line: level 100 at t=0, level 200 at t=10000.
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(10000, 200)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossDown)

	// Price is flat at 125 while the line rises through it: level was 120
	// at t=2000 and 130 at t=3000, so the flat price crosses down.
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(2000, 125, 3000, 125))
	assert.Equal(t, []string{trig.ID}, res.Fired)
}

func TestInactiveTriggerSkipped(t *testing.T) {
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(10000, 100)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossUp)
	trig.IsActive = false

	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 99, 2000, 101))
	assert.Empty(t, res.Fired)
	assert.Empty(t, res.Deactivate)
}

func TestMissingShapeDeactivates(t *testing.T) {
	trig := activeTrigger("gone", models.ShapeLine, models.CondCrossUp)
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, map[string]models.Shape{}, tick(1000, 99, 2000, 101))
	assert.Empty(t, res.Fired)
	assert.Equal(t, []string{trig.ID}, res.Deactivate)
}

func TestRectExitTopRefires(t *testing.T) {
	rect := models.Rectangle{ID: "r1", A: pt(0, 90), B: pt(10000, 110)}
	shapes := map[string]models.Shape{"r1": rect}
	trig := activeTrigger("r1", models.ShapeRectangle, models.CondExitTop)

	eng := newEngine()

	// Leave through the top: fires.
	res := eng.Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 100, 2000, 115))
	require.Equal(t, []string{trig.ID}, res.Fired)

	fired := int64(2000)
	trig.TriggeredAt = &fired

	// Re-enter: no fire, and the fired trigger is not retired by the
	// done-side rule.
	res = eng.Evaluate([]models.ShapeTrigger{trig}, shapes, tick(2000, 115, 3000, 105))
	assert.Empty(t, res.Fired)
	assert.Empty(t, res.Deactivate, "a fired trigger without one-shot actions stays active")

	// Leave through the top again: fires a second time.
	res = eng.Evaluate([]models.ShapeTrigger{trig}, shapes, tick(3000, 105, 4000, 120))
	assert.Equal(t, []string{trig.ID}, res.Fired)
}

func TestOneShotTriggerFiresOnce(t *testing.T) {
	rect := models.Rectangle{ID: "r1", A: pt(0, 90), B: pt(10000, 110)}
	shapes := map[string]models.Shape{"r1": rect}
	trig := activeTrigger("r1", models.ShapeRectangle, models.CondExitTop)
	trig.Actions = oneShotTree()

	eng := newEngine()
	res := eng.Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 100, 2000, 115))
	require.Equal(t, []string{trig.ID}, res.Fired)

	fired := int64(2000)
	trig.TriggeredAt = &fired

	res = eng.Evaluate([]models.ShapeTrigger{trig}, shapes, tick(3000, 105, 4000, 120))
	assert.Empty(t, res.Fired, "one-shot trigger never fires twice")
}

func TestRectExitEdgeSelection(t *testing.T) {
	rect := models.Rectangle{ID: "r1", A: pt(0, 90), B: pt(10000, 110)}
	shapes := map[string]models.Shape{"r1": rect}

	top := activeTrigger("r1", models.ShapeRectangle, models.CondExitTop)
	bottom := activeTrigger("r1", models.ShapeRectangle, models.CondExitBottom)
	bottom.ID = "trig-bottom"
	any := activeTrigger("r1", models.ShapeRectangle, models.CondExitAny)
	any.ID = "trig-any"

	// Exit downward: only exit_bottom and exit_any fire.
	res := newEngine().Evaluate([]models.ShapeTrigger{top, bottom, any}, shapes, tick(1000, 100, 2000, 85))
	assert.ElementsMatch(t, []string{bottom.ID, any.ID}, res.Fired)
}

func TestRectEnterFromLeft(t *testing.T) {
	rect := models.Rectangle{ID: "r1", A: pt(1000, 90), B: pt(10000, 110)}
	shapes := map[string]models.Shape{"r1": rect}
	trig := activeTrigger("r1", models.ShapeRectangle, models.CondEnterLeft)

	// The previous sample sat before the left time bound.
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(500, 100, 1500, 100))
	assert.Equal(t, []string{trig.ID}, res.Fired)
}

func TestCircleEnterExit(t *testing.T) {
	circle := models.Circle{ID: "c1", Center: pt(5000, 100), Edge: pt(8000, 150)}
	shapes := map[string]models.Shape{"c1": circle}

	enter := activeTrigger("c1", models.ShapeCircle, models.CondCircleEnter)
	res := newEngine().Evaluate([]models.ShapeTrigger{enter}, shapes, tick(1000, 100, 5000, 110))
	assert.Equal(t, []string{enter.ID}, res.Fired, "moving from outside to inside fires enter")

	exit := activeTrigger("c1", models.ShapeCircle, models.CondCircleExit)
	res = newEngine().Evaluate([]models.ShapeTrigger{exit}, shapes, tick(5000, 110, 5000, 200))
	assert.Equal(t, []string{exit.ID}, res.Fired)
}

func TestChannelBreakUpper(t *testing.T) {
	ch := models.ParallelChannel{ID: "p1", A: pt(0, 100), B: pt(10000, 100), Offset: pt(0, 110)}
	shapes := map[string]models.Shape{"p1": ch}
	trig := activeTrigger("p1", models.ShapeChannel, models.CondBreakUpper)

	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 105, 2000, 115))
	assert.Equal(t, []string{trig.ID}, res.Fired)

	// A jump from below the channel straight above it is not a break from
	// inside.
	res = newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 95, 2000, 115))
	assert.Empty(t, res.Fired)
}

func TestDeactivateAfterMaxTimestamp(t *testing.T) {
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(5000, 100)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossUp)
	fired := int64(3000)
	trig.TriggeredAt = &fired

	// Past the shape's span even a previously fired trigger is retired.
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(5500, 99, 6000, 99))
	assert.Empty(t, res.Fired)
	assert.Equal(t, []string{trig.ID}, res.Deactivate)
}

func TestDeactivateOnDoneSide(t *testing.T) {
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(10000, 100)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossUp)

	// Never fired and already above the level: the cross can no longer
	// happen from below.
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 105, 2000, 106))
	assert.Equal(t, []string{trig.ID}, res.Deactivate)

	// Below the level the trigger is still viable.
	res = newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(1000, 95, 2000, 96))
	assert.Empty(t, res.Deactivate)
}

func TestDoneSideRuleSparesFiredTriggers(t *testing.T) {
	line := models.Line{ID: "l1", A: pt(0, 100), B: pt(10000, 100)}
	shapes := map[string]models.Shape{"l1": line}
	trig := activeTrigger("l1", models.ShapeLine, models.CondCrossUp)
	fired := int64(2000)
	trig.TriggeredAt = &fired

	// Sitting above the level after firing is the expected aftermath, not
	// grounds for retirement.
	res := newEngine().Evaluate([]models.ShapeTrigger{trig}, shapes, tick(2000, 101, 3000, 102))
	assert.Empty(t, res.Deactivate)
}
