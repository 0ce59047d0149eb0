package models

import (
	"encoding/json"
	"time"
)

// SnapshotVersion is the current session snapshot schema version.
const SnapshotVersion = 1

// SessionSnapshot is the persisted form of a trading session. The field
// names are the stable storage contract and must round-trip losslessly.
// Chart, node and edge layout are owned by the UI layer; they are carried
// opaquely so the engine never depends on their shape.
type SessionSnapshot struct {
	Version         int               `json:"version"`
	Symbol          string            `json:"symbol"`
	Chart           json.RawMessage   `json:"chart,omitempty"`
	Nodes           json.RawMessage   `json:"nodes,omitempty"`
	Edges           json.RawMessage   `json:"edges,omitempty"`
	ActivationLines []Line            `json:"activationLines"`
	Circles         []Circle          `json:"circles"`
	Rectangles      []Rectangle       `json:"rectangles"`
	ParallelLines   []ParallelChannel `json:"parallelLines"`
	ShapeTriggers   []ShapeTrigger    `json:"shapeTriggers"`
	Account         PaperAccount      `json:"account"`
	Blocks          []Block           `json:"blocks,omitempty"`
	BlockStates     map[string]BlockState `json:"blockStates,omitempty"`
	LastUpdateTime  time.Time         `json:"last_update_time"`
}

// NewSessionSnapshot returns an empty, versioned snapshot for a symbol.
func NewSessionSnapshot(symbol string, account PaperAccount) *SessionSnapshot {
	return &SessionSnapshot{
		Version:        SnapshotVersion,
		Symbol:         symbol,
		Account:        account,
		LastUpdateTime: time.Now(),
	}
}

// Clone returns a deep copy of the snapshot so concurrent readers and the
// persistence loop never alias live state.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ActivationLines = append([]Line(nil), s.ActivationLines...)
	cp.Circles = append([]Circle(nil), s.Circles...)
	cp.Rectangles = append([]Rectangle(nil), s.Rectangles...)
	cp.ParallelLines = append([]ParallelChannel(nil), s.ParallelLines...)
	cp.Blocks = append([]Block(nil), s.Blocks...)
	cp.Account = s.Account.Clone()

	cp.ShapeTriggers = append([]ShapeTrigger(nil), s.ShapeTriggers...)
	for i, trig := range cp.ShapeTriggers {
		if trig.TriggeredAt != nil {
			ts := *trig.TriggeredAt
			cp.ShapeTriggers[i].TriggeredAt = &ts
		}
		cp.ShapeTriggers[i].Actions = trig.Actions.Clone()
	}

	if s.BlockStates != nil {
		cp.BlockStates = make(map[string]BlockState, len(s.BlockStates))
		for k, v := range s.BlockStates {
			cp.BlockStates[k] = v
		}
	}
	return &cp
}

// Shapes collects every drawn shape into an id-keyed map, the form the
// trigger engine consumes per tick.
func (s *SessionSnapshot) Shapes() map[string]Shape {
	shapes := make(map[string]Shape,
		len(s.ActivationLines)+len(s.Circles)+len(s.Rectangles)+len(s.ParallelLines))
	for _, l := range s.ActivationLines {
		shapes[l.ID] = l
	}
	for _, c := range s.Circles {
		shapes[c.ID] = c
	}
	for _, r := range s.Rectangles {
		shapes[r.ID] = r
	}
	for _, p := range s.ParallelLines {
		shapes[p.ID] = p
	}
	return shapes
}
