// Package indicator maintains the streaming RSI and average-volume values
// the block runtime gates on. Values stay nil until enough samples have
// accumulated, which the runtime reports as a gate failure rather than
// guessing.
package indicator

import "chart-trigger-bot-go/internal/models"

// RSI is a streaming Wilder-smoothed relative strength index.
type RSI struct {
	period    int
	count     int
	avgGain   float64
	avgLoss   float64
	prevClose float64
	seeded    bool
}

// NewRSI returns a calculator over the given period.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update feeds one closing price into the calculator.
func (r *RSI) Update(closePrice float64) {
	if !r.seeded {
		r.prevClose = closePrice
		r.seeded = true
		return
	}

	change := closePrice - r.prevClose
	r.prevClose = closePrice

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	r.count++
	if r.count <= r.period {
		// Simple average until the first full period, then Wilder's
		// smoothing takes over.
		r.avgGain += (gain - r.avgGain) / float64(r.count)
		r.avgLoss += (loss - r.avgLoss) / float64(r.count)
		return
	}
	r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
	r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
}

// Ready reports whether a full period of changes has been observed.
func (r *RSI) Ready() bool {
	return r.count >= r.period
}

// Value returns the current RSI in [0, 100].
func (r *RSI) Value() float64 {
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := r.avgGain / r.avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// AvgVolume is a rolling simple average over the last window volumes.
type AvgVolume struct {
	window  int
	samples []float64
	sum     float64
	next    int
	filled  bool
}

// NewAvgVolume returns an average over the given window size.
func NewAvgVolume(window int) *AvgVolume {
	if window < 1 {
		window = 1
	}
	return &AvgVolume{
		window:  window,
		samples: make([]float64, window),
	}
}

// Update feeds one volume sample into the rolling window.
func (a *AvgVolume) Update(volume float64) {
	a.sum += volume - a.samples[a.next]
	a.samples[a.next] = volume
	a.next++
	if a.next == a.window {
		a.next = 0
		a.filled = true
	}
}

// Ready reports whether the window has filled at least once.
func (a *AvgVolume) Ready() bool {
	return a.filled
}

// Value returns the current window average.
func (a *AvgVolume) Value() float64 {
	return a.sum / float64(a.window)
}

// Builder bundles the calculators and exposes their combined snapshot.
type Builder struct {
	rsi *RSI
	vol *AvgVolume
}

// NewBuilder returns a builder with the given RSI period and volume
// window.
func NewBuilder(rsiPeriod, volumeWindow int) *Builder {
	return &Builder{
		rsi: NewRSI(rsiPeriod),
		vol: NewAvgVolume(volumeWindow),
	}
}

// Update feeds one candle's close and volume into the calculators.
func (b *Builder) Update(closePrice, volume float64) {
	b.rsi.Update(closePrice)
	b.vol.Update(volume)
}

// Snapshot returns the current indicator values. Fields for calculators
// that are not yet warmed up stay nil.
func (b *Builder) Snapshot() models.IndicatorSnapshot {
	var snap models.IndicatorSnapshot
	if b.rsi.Ready() {
		v := b.rsi.Value()
		snap.RSI = &v
	}
	if b.vol.Ready() {
		v := b.vol.Value()
		snap.AvgVolume = &v
	}
	return snap
}
