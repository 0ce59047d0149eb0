package geometry

import (
	"math"
	"testing"

	"chart-trigger-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func pt(ts int64, price float64) models.PricePoint {
	return models.PricePoint{Timestamp: ts, Price: price}
}

func TestLineValueAt(t *testing.T) {
	a := pt(1000, 100)
	b := pt(2000, 200)

	assert.Equal(t, 100.0, LineValueAt(a, b, 1000), "value at the first anchor")
	assert.Equal(t, 200.0, LineValueAt(a, b, 2000), "value at the second anchor")
	assert.Equal(t, 150.0, LineValueAt(a, b, 1500), "linear interpolation between anchors")

	// Values extrapolate beyond the anchors along the same slope.
	assert.Equal(t, 300.0, LineValueAt(a, b, 3000))
	assert.Equal(t, 50.0, LineValueAt(a, b, 500))

	// Degenerate line with equal timestamps evaluates to the second anchor.
	assert.Equal(t, 42.0, LineValueAt(pt(1000, 10), pt(1000, 42), 999))
}

func TestCrossed(t *testing.T) {
	assert.True(t, Crossed(99, 101, 100), "upward cross")
	assert.True(t, Crossed(101, 99, 100), "downward cross")
	assert.False(t, Crossed(101, 102, 100), "both above")
	assert.False(t, Crossed(98, 99, 100), "both below")

	// Resting exactly on the level counts as the starting side.
	assert.True(t, Crossed(100, 101, 100), "from the level upward")
	assert.True(t, Crossed(100, 99, 100), "from the level downward")
	assert.False(t, Crossed(99, 100, 100), "landing on the level is not a cross")
	assert.False(t, Crossed(100, 100, 100))
}

func TestRectContains(t *testing.T) {
	// Corners given in either order span the same box.
	r := models.Rectangle{A: pt(2000, 20), B: pt(1000, 10)}

	assert.True(t, RectContains(r, 1500, 15))
	assert.True(t, RectContains(r, 1000, 10), "bounds are inclusive")
	assert.True(t, RectContains(r, 2000, 20))
	assert.False(t, RectContains(r, 1500, 21))
	assert.False(t, RectContains(r, 999, 15))
	assert.False(t, RectContains(r, 2001, 15))
}

func TestRectEdge(t *testing.T) {
	r := models.Rectangle{A: pt(1000, 10), B: pt(2000, 20)}

	assert.Equal(t, EdgeTop, RectEdge(r, 1500, 25))
	assert.Equal(t, EdgeBottom, RectEdge(r, 1500, 5))
	assert.Equal(t, EdgeLeft, RectEdge(r, 500, 15))
	assert.Equal(t, EdgeRight, RectEdge(r, 2500, 15))
	assert.Equal(t, EdgeNone, RectEdge(r, 1500, 15))

	// Beyond a corner the price bound wins.
	assert.Equal(t, EdgeTop, RectEdge(r, 2500, 25))
	assert.Equal(t, EdgeBottom, RectEdge(r, 500, 5))
}

func TestCircleDistance(t *testing.T) {
	c := models.Circle{Center: pt(1000, 100), Edge: pt(2000, 150)}

	assert.Equal(t, 0.0, CircleDistance(c, 1000, 100), "center")
	assert.InDelta(t, 1.0, CircleDistance(c, 2000, 100), 1e-12, "on the time axis radius")
	assert.InDelta(t, 1.0, CircleDistance(c, 1000, 150), 1e-12, "on the price axis radius")
	assert.InDelta(t, math.Sqrt2, CircleDistance(c, 2000, 150), 1e-12, "the edge anchor of an ellipse is outside")

	assert.True(t, CircleContains(c, 1500, 110))
	assert.False(t, CircleContains(c, 2000, 150))
}

func TestCircleDistanceDegenerate(t *testing.T) {
	flat := models.Circle{Center: pt(1000, 100), Edge: pt(2000, 100)}
	assert.True(t, math.IsInf(CircleDistance(flat, 1500, 101), 1), "zero price radius excludes off-level samples")
	assert.InDelta(t, 0.5, CircleDistance(flat, 1500, 100), 1e-12)

	vertical := models.Circle{Center: pt(1000, 100), Edge: pt(1000, 150)}
	assert.True(t, math.IsInf(CircleDistance(vertical, 1500, 110), 1), "zero time radius excludes off-center timestamps")
}

func TestTouchingEdge(t *testing.T) {
	eval := NewEvaluator(0)
	c := models.Circle{Center: pt(1000, 100), Edge: pt(2000, 150)}

	// Normalized distance 1.04 is within the 0.05 edge tolerance.
	assert.True(t, eval.TouchingEdge(c, 1000, 152))
	// Distance 1.2 is not.
	assert.False(t, eval.TouchingEdge(c, 1000, 160))
	// Samples just inside the edge also touch.
	assert.True(t, eval.TouchingEdge(c, 1000, 148))
	assert.False(t, eval.TouchingEdge(c, 1000, 100), "the center does not touch the edge")
}

func TestChannelBounds(t *testing.T) {
	ch := models.ParallelChannel{
		A:      pt(0, 100),
		B:      pt(1000, 100),
		Offset: pt(0, 110),
	}
	lower, upper := ChannelBounds(ch, 500)
	assert.Equal(t, 100.0, lower)
	assert.Equal(t, 110.0, upper)

	// A downward offset flips which line is the upper bound.
	ch.Offset = pt(0, 90)
	lower, upper = ChannelBounds(ch, 500)
	assert.Equal(t, 90.0, lower)
	assert.Equal(t, 100.0, upper)
}

func TestChannelBoundsSloped(t *testing.T) {
	ch := models.ParallelChannel{
		A:      pt(0, 100),
		B:      pt(1000, 200),
		Offset: pt(0, 120),
	}
	lower, upper := ChannelBounds(ch, 500)
	assert.InDelta(t, 150.0, lower, 1e-9)
	assert.InDelta(t, 170.0, upper, 1e-9, "the shifted line keeps the base slope")
}

func TestChannelRegionAt(t *testing.T) {
	eval := NewEvaluator(1)
	ch := models.ParallelChannel{
		A:      pt(0, 100),
		B:      pt(1000, 100),
		Offset: pt(0, 110),
	}

	assert.Equal(t, InChannel, eval.ChannelRegionAt(ch, 500, 105))
	assert.Equal(t, AboveUpper, eval.ChannelRegionAt(ch, 500, 112))
	assert.Equal(t, BelowLower, eval.ChannelRegionAt(ch, 500, 98))

	// The threshold widens the band on both sides.
	assert.Equal(t, InChannel, eval.ChannelRegionAt(ch, 500, 110.5))
	assert.Equal(t, InChannel, eval.ChannelRegionAt(ch, 500, 99.5))
}

func TestTouchingLine(t *testing.T) {
	eval := NewEvaluator(1)
	l := models.Line{A: pt(0, 100), B: pt(1000, 100)}

	assert.True(t, eval.Touching(l, 500, 100.5))
	assert.True(t, eval.Touching(l, 500, 99.0))
	assert.False(t, eval.Touching(l, 500, 101.5))
}
