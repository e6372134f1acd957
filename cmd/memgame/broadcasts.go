package main

import "time"

// ==============================
// Broadcasts (state change notifications)
// ==============================

// StateBroadcast is a reducer-emitted notification for external observers
// (the state websocket). Broadcasts never feed back into the reducer.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastTurnChanged is emitted whenever TurnState changes.
type BroadcastTurnChanged struct {
	From TurnState
	To   TurnState
	At   time.Time
}

func (BroadcastTurnChanged) broadcastMarker() {}

// BroadcastTurnOutcome is emitted for every outcome other than NoInput.
type BroadcastTurnOutcome struct {
	Player  int // 1-based
	Outcome TurnOutcome
	Input   int
	Length  int
	Cursor  int
	At      time.Time
}

func (BroadcastTurnOutcome) broadcastMarker() {}

// BroadcastInputConfirmed is emitted when a debounced input commits a new level.
type BroadcastInputConfirmed struct {
	Player int // 1-based
	Input  int
	Level  Level
	At     time.Time
}

func (BroadcastInputConfirmed) broadcastMarker() {}

// BroadcastIndicatorChanged mirrors an indicator command.
type BroadcastIndicatorChanged struct {
	ID IndicatorID
	On bool
	At time.Time
}

func (BroadcastIndicatorChanged) broadcastMarker() {}

// BroadcastTickOverrun reports ticks dropped by the producer.
type BroadcastTickOverrun struct {
	Missed uint64
	At     time.Time
}

func (BroadcastTickOverrun) broadcastMarker() {}

// StateSnapshot is an immutable copy of GameSession for other goroutines.
type StateSnapshot struct {
	Turn     TurnState
	Sequence []int
	Capacity int
	Cursor   int
	Ready    bool

	Clock  SoftwareClock
	Inputs [numPlayers][]InputSnapshot

	Indicators [numIndicators]bool
	Stats      GameStats
	Faults     int

	At time.Time
}

// InputSnapshot is the debounce state of one input.
type InputSnapshot struct {
	Control DebounceState
	Valid   Level
}

// Snapshot copies the session. Slices are never shared with the session.
func (s *GameSession) Snapshot(now time.Time) StateSnapshot {
	snap := StateSnapshot{
		Turn:       s.Turn,
		Sequence:   s.Sequence.Values(),
		Capacity:   s.Sequence.Cap(),
		Cursor:     s.Cursor,
		Ready:      s.ReadyForNextTurn,
		Clock:      s.Clock,
		Indicators: s.Indicators,
		Stats:      s.Stats,
		Faults:     s.Faults,
		At:         now,
	}
	for p := range s.Players {
		inputs := make([]InputSnapshot, len(s.Players[p].Inputs))
		for i, in := range s.Players[p].Inputs {
			inputs[i] = InputSnapshot{Control: in.Control, Valid: in.Valid}
		}
		snap.Inputs[p] = inputs
	}
	return snap
}
