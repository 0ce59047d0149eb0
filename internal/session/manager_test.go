package session

import (
	"sync"
	"testing"
	"time"

	"chart-trigger-bot-go/internal/account"
	"chart-trigger-bot-go/internal/engine"
	"chart-trigger-bot-go/internal/indicator"
	"chart-trigger-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSnapshotRepository is a mock implementation of the
// SnapshotRepository interface for testing.
type mockSnapshotRepository struct {
	sync.Mutex
	saved        *models.SessionSnapshot
	saveCalled   bool
	saveDoneChan chan bool
}

func newMockSnapshotRepository() *mockSnapshotRepository {
	return &mockSnapshotRepository{
		saveDoneChan: make(chan bool, 16),
	}
}

func (m *mockSnapshotRepository) SaveSnapshot(snap *models.SessionSnapshot) error {
	m.Lock()
	defer m.Unlock()
	m.saveCalled = true
	m.saved = snap.Clone()
	m.saveDoneChan <- true
	return nil
}

func (m *mockSnapshotRepository) LoadSnapshot() (*models.SessionSnapshot, error) {
	return nil, nil
}

func (m *mockSnapshotRepository) Close() error { return nil }

func (m *mockSnapshotRepository) getSaved() *models.SessionSnapshot {
	m.Lock()
	defer m.Unlock()
	return m.saved
}

func newTestManager(repo *mockSnapshotRepository) *Manager {
	snap := models.NewSessionSnapshot("BTCUSDT", models.NewPaperAccount(1000))
	snap.ActivationLines = []models.Line{{
		ID: "l1",
		A:  models.PricePoint{Timestamp: 0, Price: 100},
		B:  models.PricePoint{Timestamp: 100000, Price: 100},
	}}
	cfg := models.NewActionConfig()
	cfg.Size = 100
	snap.ShapeTriggers = []models.ShapeTrigger{{
		ID: "trig1", ShapeID: "l1", ShapeKind: models.ShapeLine,
		Condition: models.CondCrossUp, IsActive: true,
		Actions: models.ActionTree{
			Nodes: []models.ActionNode{{ID: "e", Type: models.ActionMarketBuy, Config: cfg}},
			Roots: []int{0},
		},
	}}

	eng := engine.New(account.DefaultLimits(), models.SlippageConfig{}, 0)
	return NewManager(snap, repo, eng, indicator.NewBuilder(14, 20))
}

func crossTick() models.Tick {
	return models.Tick{Symbol: "BTCUSDT", Timestamp: 2000, Price: 101, PrevTimestamp: 1000, PrevPrice: 99}
}

func TestApplyTickAdvancesSession(t *testing.T) {
	mgr := newTestManager(newMockSnapshotRepository())

	events := mgr.ApplyTick(crossTick(), 0.1)
	assert.NotEmpty(t, events)

	snap := mgr.Snapshot()
	assert.Len(t, snap.Account.OpenPositions, 1, "the fired trigger opened a position")
	require.NotNil(t, snap.ShapeTriggers[0].TriggeredAt)

	curve := mgr.EquityCurve()
	require.Len(t, curve, 1)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	mgr := newTestManager(newMockSnapshotRepository())
	mgr.ApplyTick(crossTick(), 0.1)

	snap := mgr.Snapshot()
	snap.Account.BalanceUSD = -1
	snap.ShapeTriggers[0].IsActive = false
	snap.BlockStates["x"] = models.BlockState{Status: models.BlockFilled}

	fresh := mgr.Snapshot()
	assert.NotEqual(t, -1.0, fresh.Account.BalanceUSD)
	assert.True(t, fresh.ShapeTriggers[0].IsActive)
	assert.NotContains(t, fresh.BlockStates, "x")
}

func TestDispatchPersistsAsynchronously(t *testing.T) {
	repo := newMockSnapshotRepository()
	mgr := newTestManager(repo)
	mgr.Start()
	defer mgr.Stop()

	mgr.Dispatch(TickEvent{Tick: crossTick(), Threshold: 0.1})

	select {
	case <-repo.saveDoneChan:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the persistence loop to save")
	}

	saved := repo.getSaved()
	require.NotNil(t, saved)
	assert.Len(t, saved.Account.OpenPositions, 1)
}

func TestSaveSynchronously(t *testing.T) {
	repo := newMockSnapshotRepository()
	mgr := newTestManager(repo)
	mgr.ApplyTick(crossTick(), 0.1)

	require.NoError(t, mgr.Save())
	require.NotNil(t, repo.getSaved())
}

func TestBlockRuntimeStepsWithSession(t *testing.T) {
	repo := newMockSnapshotRepository()
	mgr := newTestManager(repo)
	mgr.snap.Blocks = []models.Block{{
		ID: "b1", Kind: models.BlockLimit, Side: models.Buy, Active: true,
		Params: models.BlockParams{LimitPrice: 95},
	}}

	// Price above the limit: the block arms.
	mgr.ApplyTick(models.Tick{Symbol: "BTCUSDT", Timestamp: 2000, Price: 98, PrevTimestamp: 1000, PrevPrice: 99}, 0.1)
	assert.Equal(t, models.BlockArmed, mgr.Snapshot().BlockStates["b1"].Status)

	// Price hits the limit with no gates: filled.
	mgr.ApplyTick(models.Tick{Symbol: "BTCUSDT", Timestamp: 3000, Price: 94, PrevTimestamp: 2000, PrevPrice: 98}, 0.1)
	assert.Equal(t, models.BlockFilled, mgr.Snapshot().BlockStates["b1"].Status)
}
