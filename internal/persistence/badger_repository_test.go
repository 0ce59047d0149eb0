package persistence

import (
	"testing"

	"chart-trigger-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T, symbol string) SnapshotRepository {
	t.Helper()
	repo, err := NewBadgerRepository(t.TempDir(), symbol)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadSnapshotFreshSession(t *testing.T) {
	repo := openTestRepo(t, "BTCUSDT")

	snap, err := repo.LoadSnapshot()
	require.NoError(t, err, "a missing snapshot is not an error")
	assert.Nil(t, snap)
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := openTestRepo(t, "BTCUSDT")

	snap := models.NewSessionSnapshot("BTCUSDT", models.NewPaperAccount(10000))
	snap.ActivationLines = []models.Line{{
		ID: "l1",
		A:  models.PricePoint{Timestamp: 1000, Price: 100},
		B:  models.PricePoint{Timestamp: 2000, Price: 110},
	}}
	fired := int64(1500)
	snap.ShapeTriggers = []models.ShapeTrigger{{
		ID: "t1", ShapeID: "l1", ShapeKind: models.ShapeLine,
		Condition: models.CondCrossUp, IsActive: true, TriggeredAt: &fired,
	}}
	snap.BlockStates = map[string]models.BlockState{
		"b1": {Status: models.BlockFrozen, Note: "rsi unavailable"},
	}

	require.NoError(t, repo.SaveSnapshot(snap))

	loaded, err := repo.LoadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, models.SnapshotVersion, loaded.Version)
	assert.Equal(t, "BTCUSDT", loaded.Symbol)
	assert.Equal(t, 10000.0, loaded.Account.BalanceUSD)
	require.Len(t, loaded.ActivationLines, 1)
	assert.Equal(t, "l1", loaded.ActivationLines[0].ID)

	require.Len(t, loaded.ShapeTriggers, 1)
	require.NotNil(t, loaded.ShapeTriggers[0].TriggeredAt)
	assert.Equal(t, int64(1500), *loaded.ShapeTriggers[0].TriggeredAt)

	assert.Equal(t, models.BlockFrozen, loaded.BlockStates["b1"].Status)
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	repo := openTestRepo(t, "ETHUSDT")

	first := models.NewSessionSnapshot("ETHUSDT", models.NewPaperAccount(1000))
	require.NoError(t, repo.SaveSnapshot(first))

	second := models.NewSessionSnapshot("ETHUSDT", models.NewPaperAccount(2000))
	require.NoError(t, repo.SaveSnapshot(second))

	loaded, err := repo.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, loaded.Account.BalanceUSD)
}
