// Package geometry classifies price/timestamp samples against drawn
// shapes. All classification is done in time-price space; the price
// epsilon (threshold) is supplied by the caller, derived from the visible
// price range of the chart.
package geometry

import (
	"math"

	"chart-trigger-bot-go/internal/models"
)

// circleEdgeEps is the default tolerance, in normalized ellipse distance,
// for the touchingEdge predicate.
const circleEdgeEps = 0.05

// Evaluator classifies samples against shapes with a fixed price
// threshold.
type Evaluator struct {
	Threshold float64 // price epsilon for touch and channel membership
	EdgeEps   float64 // normalized distance epsilon for circle edges
}

// NewEvaluator returns an evaluator for the given price threshold.
func NewEvaluator(thresholdPrice float64) *Evaluator {
	return &Evaluator{Threshold: thresholdPrice, EdgeEps: circleEdgeEps}
}

// LineValueAt interpolates the line's price at timestamp t. The value is
// deliberately unclamped: timestamps outside [a.t, b.t] extrapolate along
// the same slope, matching how a drawn ray behaves on the chart. Retiring
// triggers whose shape has expired is the trigger engine's responsibility.
func LineValueAt(a, b models.PricePoint, t int64) float64 {
	if a.Timestamp == b.Timestamp {
		return b.Price
	}
	frac := float64(t-a.Timestamp) / float64(b.Timestamp-a.Timestamp)
	return a.Price + frac*(b.Price-a.Price)
}

// Crossed reports whether the price moved from one side of level to the
// other between the two samples. Zero is inclusive on either side: a
// sample resting exactly on the level counts as the starting side.
func Crossed(prev, next, level float64) bool {
	a := prev - level
	b := next - level
	return (a <= 0 && b > 0) || (a >= 0 && b < 0)
}

// Edge names the rectangle boundary a sample lies beyond.
type Edge string

const (
	EdgeNone   Edge = ""
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
)

// RectContains reports whether the sample lies inside the axis-aligned
// box, bounds inclusive.
func RectContains(r models.Rectangle, ts int64, price float64) bool {
	minP, maxP := order(r.A.Price, r.B.Price)
	minT, maxT := orderTS(r.A.Timestamp, r.B.Timestamp)
	return price >= minP && price <= maxP && ts >= minT && ts <= maxT
}

// RectEdge classifies which bound a sample outside the rectangle exceeds.
// Price bounds win over time bounds, so a sample beyond a corner reports
// top or bottom. Returns EdgeNone for samples inside the box.
func RectEdge(r models.Rectangle, ts int64, price float64) Edge {
	minP, maxP := order(r.A.Price, r.B.Price)
	minT, maxT := orderTS(r.A.Timestamp, r.B.Timestamp)
	switch {
	case price > maxP:
		return EdgeTop
	case price < minP:
		return EdgeBottom
	case ts < minT:
		return EdgeLeft
	case ts > maxT:
		return EdgeRight
	}
	return EdgeNone
}

// CircleDistance returns the sample's distance from the circle's center in
// normalized ellipse coordinates: 1.0 is exactly on the edge.
func CircleDistance(c models.Circle, ts int64, price float64) float64 {
	radT := math.Abs(float64(c.Edge.Timestamp - c.Center.Timestamp))
	radP := math.Abs(c.Edge.Price - c.Center.Price)

	var dx, dy float64
	if radT > 0 {
		dx = float64(ts-c.Center.Timestamp) / radT
	} else if ts != c.Center.Timestamp {
		return math.Inf(1) // degenerate circle with zero time radius
	}
	if radP > 0 {
		dy = (price - c.Center.Price) / radP
	} else if price != c.Center.Price {
		return math.Inf(1)
	}
	return math.Hypot(dx, dy)
}

// CircleContains reports whether the sample lies inside or on the ellipse.
func CircleContains(c models.Circle, ts int64, price float64) bool {
	return CircleDistance(c, ts, price) <= 1
}

// TouchingEdge reports whether the sample is within EdgeEps of the
// ellipse's edge.
func (e *Evaluator) TouchingEdge(c models.Circle, ts int64, price float64) bool {
	return math.Abs(CircleDistance(c, ts, price)-1) <= e.EdgeEps
}

// ChannelRegion classifies a sample relative to a parallel channel.
type ChannelRegion string

const (
	InChannel  ChannelRegion = "in_channel"
	AboveUpper ChannelRegion = "above_upper"
	BelowLower ChannelRegion = "below_lower"
)

// ChannelBounds returns the channel's lower and upper line values at t.
// The shifted line is the base translated by the offset-minus-A vector;
// whichever evaluates higher at t is the upper bound.
func ChannelBounds(ch models.ParallelChannel, t int64) (lower, upper float64) {
	base := LineValueAt(ch.A, ch.B, t)
	shiftA := models.PricePoint{
		Timestamp: ch.A.Timestamp + (ch.Offset.Timestamp - ch.A.Timestamp),
		Price:     ch.A.Price + (ch.Offset.Price - ch.A.Price),
	}
	shiftB := models.PricePoint{
		Timestamp: ch.B.Timestamp + (ch.Offset.Timestamp - ch.A.Timestamp),
		Price:     ch.B.Price + (ch.Offset.Price - ch.A.Price),
	}
	shifted := LineValueAt(shiftA, shiftB, t)
	if base < shifted {
		return base, shifted
	}
	return shifted, base
}

// ChannelRegionAt classifies the sample against the channel, widening the
// band by the evaluator's price threshold on both sides.
func (e *Evaluator) ChannelRegionAt(ch models.ParallelChannel, ts int64, price float64) ChannelRegion {
	lower, upper := ChannelBounds(ch, ts)
	switch {
	case price > upper+e.Threshold:
		return AboveUpper
	case price < lower-e.Threshold:
		return BelowLower
	}
	return InChannel
}

// Touching reports whether the price is within the threshold of the line's
// value at ts.
func (e *Evaluator) Touching(l models.Line, ts int64, price float64) bool {
	return math.Abs(price-LineValueAt(l.A, l.B, ts)) <= e.Threshold
}

func order(a, b float64) (float64, float64) {
	if a < b {
		return a, b
	}
	return b, a
}

func orderTS(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}
