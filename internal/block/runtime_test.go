package block

import (
	"testing"

	"chart-trigger-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func buyLimitBlock() models.Block {
	return models.Block{
		ID:     "b1",
		Kind:   models.BlockLimit,
		Side:   models.Buy,
		Active: true,
		Params: models.BlockParams{LimitPrice: 95},
	}
}

func TestInactiveBlockIdles(t *testing.T) {
	b := buyLimitBlock()
	b.Active = false

	st := Step(b, models.BlockState{Status: models.BlockArmed}, 90, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockIdle, st.Status, "deactivating a block resets it")
}

func TestFilledIsAbsorbing(t *testing.T) {
	b := buyLimitBlock()
	prev := models.BlockState{Status: models.BlockFilled, FillPrice: 94, FilledPercent: 100}

	st := Step(b, prev, 90, models.IndicatorSnapshot{})
	assert.Equal(t, prev, st, "a filled block never changes again")
}

func TestArmsUntilPriceHit(t *testing.T) {
	b := buyLimitBlock()

	st := Step(b, models.BlockState{}, 100, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockArmed, st.Status, "above the buy limit the block waits")

	st = Step(b, st, 94, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockFilled, st.Status, "no gates means a hit fills outright")
	assert.Equal(t, 94.0, st.FillPrice)
	assert.Equal(t, 100.0, st.FilledPercent)
}

func TestLimitFallsBackToAnchor(t *testing.T) {
	b := buyLimitBlock()
	b.Params.LimitPrice = 0
	b.Anchor = 92

	st := Step(b, models.BlockState{}, 91, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockFilled, st.Status)
}

func TestStopHitsOnAdverseMove(t *testing.T) {
	b := models.Block{
		ID: "b2", Kind: models.BlockStop, Side: models.Sell, Active: true,
		Params: models.BlockParams{StopPrice: 90},
	}

	st := Step(b, models.BlockState{}, 95, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockArmed, st.Status)

	st = Step(b, st, 89, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockFilled, st.Status)
}

func TestTakeProfitHitsOnFavorableMove(t *testing.T) {
	b := models.Block{
		ID: "b3", Kind: models.BlockTakeProfit, Side: models.Sell, Active: true,
		Params: models.BlockParams{StopPrice: 110},
	}

	st := Step(b, models.BlockState{}, 105, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockArmed, st.Status)

	st = Step(b, st, 111, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockFilled, st.Status)
}

func TestGateFailureFreezes(t *testing.T) {
	b := buyLimitBlock()
	b.Gates = []models.BlockGate{{Indicator: models.GateRSI, Op: models.GateLT, Value: 30}}
	b.FailAction = models.FailFreeze

	ind := models.IndicatorSnapshot{RSI: fptr(55)}
	st := Step(b, models.BlockState{}, 94, ind)

	assert.Equal(t, models.BlockFrozen, st.Status)
	assert.Contains(t, st.Note, "not <")

	// Frozen holds while the price stays away from the level.
	st = Step(b, st, 100, ind)
	assert.Equal(t, models.BlockFrozen, st.Status)

	// On the next hit with a passing gate the block fills.
	st = Step(b, st, 94, models.IndicatorSnapshot{RSI: fptr(25)})
	assert.Equal(t, models.BlockFilled, st.Status)
}

func TestMissingIndicatorFailsGate(t *testing.T) {
	b := buyLimitBlock()
	b.Gates = []models.BlockGate{{Indicator: models.GateVolume, Op: models.GateGT, Value: 1000}}

	st := Step(b, models.BlockState{}, 94, models.IndicatorSnapshot{})
	assert.Equal(t, models.BlockFrozen, st.Status, "freeze is the default fail action")
	assert.Contains(t, st.Note, "unavailable")
}

func TestPartialFillDefaultsAndClamps(t *testing.T) {
	b := buyLimitBlock()
	b.Gates = []models.BlockGate{{Indicator: models.GateRSI, Op: models.GateLT, Value: 30}}
	b.FailAction = models.FailPartialFill

	ind := models.IndicatorSnapshot{RSI: fptr(55)}

	st := Step(b, models.BlockState{}, 94, ind)
	assert.Equal(t, models.BlockFilled, st.Status)
	assert.Equal(t, 25.0, st.FilledPercent, "unset percent defaults to 25")

	b.Params.PartialFillPercent = 500
	st = Step(b, models.BlockState{}, 94, ind)
	assert.Equal(t, 100.0, st.FilledPercent, "percent clamps to 100")

	b.Params.PartialFillPercent = 0.2
	st = Step(b, models.BlockState{}, 94, ind)
	assert.Equal(t, 1.0, st.FilledPercent, "percent clamps up to 1")
}

func TestOverrideFillsDespiteGate(t *testing.T) {
	b := buyLimitBlock()
	b.Gates = []models.BlockGate{{Indicator: models.GateRSI, Op: models.GateGT, Value: 70}}
	b.FailAction = models.FailOverride

	st := Step(b, models.BlockState{}, 94, models.IndicatorSnapshot{RSI: fptr(50)})
	assert.Equal(t, models.BlockFilled, st.Status)
	assert.Equal(t, 100.0, st.FilledPercent)
	assert.Contains(t, st.Note, "overridden")
}

func TestAllGatesMustPass(t *testing.T) {
	b := buyLimitBlock()
	b.Gates = []models.BlockGate{
		{Indicator: models.GateRSI, Op: models.GateLT, Value: 30},
		{Indicator: models.GateVolume, Op: models.GateGT, Value: 1000},
	}

	ind := models.IndicatorSnapshot{RSI: fptr(25), AvgVolume: fptr(500)}
	st := Step(b, models.BlockState{}, 94, ind)
	assert.Equal(t, models.BlockFrozen, st.Status, "the failing volume gate blocks the fill")

	ind.AvgVolume = fptr(1500)
	st = Step(b, st, 94, ind)
	assert.Equal(t, models.BlockFilled, st.Status)
}
