// Package session owns the live state of one trading session: the
// snapshot, its tick-by-tick advancement through the engine, and its
// asynchronous persistence. All mutations are processed serially; readers
// get deep copies.
package session

import (
	"sync"

	"chart-trigger-bot-go/internal/block"
	"chart-trigger-bot-go/internal/engine"
	"chart-trigger-bot-go/internal/indicator"
	"chart-trigger-bot-go/internal/logger"
	"chart-trigger-bot-go/internal/models"
	"chart-trigger-bot-go/internal/persistence"
)

// TickEvent is one unit of session advancement.
type TickEvent struct {
	Tick models.Tick
	// Threshold is the geometry price epsilon for this tick, derived by
	// the feed from the visible price range.
	Threshold float64
}

// Manager serializes all session mutations and persists snapshots off the
// hot path. ApplyTick can also be called directly for deterministic
// replays; Start/Dispatch run the same logic behind channels for live
// feeds.
type Manager struct {
	mu       sync.Mutex
	snap     *models.SessionSnapshot
	repo     persistence.SnapshotRepository
	eng      *engine.Engine
	ind      *indicator.Builder
	equities []float64

	tickChan    chan TickEvent
	persistChan chan *models.SessionSnapshot
	stopChan    chan struct{}
	loops       sync.WaitGroup
}

// NewManager wraps a loaded (or fresh) snapshot. repo may be nil, in which
// case persistence is skipped.
func NewManager(snap *models.SessionSnapshot, repo persistence.SnapshotRepository, eng *engine.Engine, ind *indicator.Builder) *Manager {
	if snap.BlockStates == nil {
		snap.BlockStates = make(map[string]models.BlockState)
	}
	return &Manager{
		snap:        snap,
		repo:        repo,
		eng:         eng,
		ind:         ind,
		tickChan:    make(chan TickEvent, 1024),
		persistChan: make(chan *models.SessionSnapshot, 128),
		stopChan:    make(chan struct{}),
	}
}

// Start launches the event and persistence loops for asynchronous use.
func (m *Manager) Start() {
	m.loops.Add(2)
	go m.eventLoop()
	go m.persistenceLoop()
}

// Stop shuts both loops down and waits for them. Pending ticks in the
// channel are dropped; callers should Save afterwards for a final
// consistent snapshot.
func (m *Manager) Stop() {
	close(m.stopChan)
	m.loops.Wait()
}

// Dispatch enqueues a tick for serial processing.
func (m *Manager) Dispatch(evt TickEvent) {
	m.tickChan <- evt
}

// ApplyTick advances the session synchronously: resting orders, margin
// floor, triggers, action chains, block runtime, equity curve.
func (m *Manager) ApplyTick(tick models.Tick, threshold float64) []models.ExecutionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := m.eng.Step(m.snap.Account, m.snap.ShapeTriggers, tick, engine.StepInput{
		Shapes:         m.snap.Shapes(),
		ThresholdPrice: threshold,
	})
	m.snap.Account = res.Account
	m.snap.ShapeTriggers = res.Triggers

	ind := m.ind.Snapshot()
	for _, b := range m.snap.Blocks {
		prev := m.snap.BlockStates[b.ID]
		next := block.Step(b, prev, tick.Price, ind)
		if next.Status != prev.Status {
			logger.S().Infof("block %s: %s -> %s %s", b.ID, prev.Status, next.Status, next.Note)
		}
		m.snap.BlockStates[b.ID] = next
	}

	m.equities = append(m.equities, m.snap.Account.Equity(tick.Price))
	return res.Events
}

// ObserveCandle feeds one closed candle into the indicator calculators.
func (m *Manager) ObserveCandle(closePrice, volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ind.Update(closePrice, volume)
}

// Snapshot returns a deep copy of the current session state.
func (m *Manager) Snapshot() *models.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

// Account returns a deep copy of the paper account.
func (m *Manager) Account() models.PaperAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Account.Clone()
}

// EquityCurve returns the per-tick equity history recorded so far.
func (m *Manager) EquityCurve() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.equities...)
}

// Save persists the current snapshot synchronously.
func (m *Manager) Save() error {
	if m.repo == nil {
		return nil
	}
	return m.repo.SaveSnapshot(m.Snapshot())
}

// eventLoop processes dispatched ticks serially and hands the resulting
// snapshot to the persistence loop.
func (m *Manager) eventLoop() {
	defer m.loops.Done()
	for {
		select {
		case evt := <-m.tickChan:
			events := m.ApplyTick(evt.Tick, evt.Threshold)
			for _, e := range events {
				logger.S().Infof("[%s] %s", e.Kind, e.Message)
			}
			select {
			case m.persistChan <- m.Snapshot():
			default:
				// Persistence is behind; skipping an intermediate
				// snapshot loses nothing, the next one supersedes it.
			}
		case <-m.stopChan:
			return
		}
	}
}

// persistenceLoop saves snapshots off the hot path.
func (m *Manager) persistenceLoop() {
	defer m.loops.Done()
	for {
		select {
		case snap := <-m.persistChan:
			if m.repo == nil {
				continue
			}
			if err := m.repo.SaveSnapshot(snap); err != nil {
				logger.S().Errorf("saving session snapshot: %v", err)
			}
		case <-m.stopChan:
			return
		}
	}
}
