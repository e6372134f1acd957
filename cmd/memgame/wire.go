package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Wire types shared by IPC, /state and the state websocket
// ============================================================================
// Keep these decoupled from internal state so GameSession can change freely.
// ============================================================================

type wireSnapshot struct {
	Turn     string `json:"turn"`
	Sequence []int  `json:"sequence"`
	Capacity int    `json:"capacity"`
	Cursor   int    `json:"cursor"`
	Ready    bool   `json:"ready_for_next_turn"`

	Clock   wireClock    `json:"clock"`
	Players []wirePlayer `json:"players"`

	Indicators map[string]bool `json:"indicators"`
	Stats      wireStats       `json:"stats"`
	Faults     int             `json:"faults"`

	At time.Time `json:"at"`
}

type wireClock struct {
	Tick        uint32 `json:"tick"`
	HalfSeconds uint32 `json:"half_seconds"`
	TenSeconds  uint32 `json:"ten_seconds"`
}

type wirePlayer struct {
	Player int         `json:"player"`
	Inputs []wireInput `json:"inputs"`
}

type wireInput struct {
	Control string `json:"control"`
	Valid   string `json:"valid"`
}

type wireStats struct {
	GamesPlayed int        `json:"games_played"`
	BestLength  int        `json:"best_length"`
	LastLength  int        `json:"last_length"`
	LastEndAt   *time.Time `json:"last_end_at,omitempty"`
}

func toWireSnapshot(s StateSnapshot) wireSnapshot {
	w := wireSnapshot{
		Turn:     s.Turn.String(),
		Sequence: s.Sequence,
		Capacity: s.Capacity,
		Cursor:   s.Cursor,
		Ready:    s.Ready,
		Clock: wireClock{
			Tick:        s.Clock.Tick,
			HalfSeconds: s.Clock.HalfSeconds,
			TenSeconds:  s.Clock.TenSeconds,
		},
		Indicators: make(map[string]bool, numIndicators),
		Stats: wireStats{
			GamesPlayed: s.Stats.GamesPlayed,
			BestLength:  s.Stats.BestLength,
			LastLength:  s.Stats.LastLength,
		},
		Faults: s.Faults,
		At:     s.At,
	}
	if w.Sequence == nil {
		w.Sequence = []int{}
	}
	if !s.Stats.LastEndAt.IsZero() {
		t := s.Stats.LastEndAt
		w.Stats.LastEndAt = &t
	}
	for id := IndicatorID(0); id < numIndicators; id++ {
		w.Indicators[id.String()] = s.Indicators[id]
	}
	for p, inputs := range s.Inputs {
		wp := wirePlayer{Player: p + 1, Inputs: make([]wireInput, len(inputs))}
		for i, in := range inputs {
			wp.Inputs[i] = wireInput{Control: in.Control.String(), Valid: in.Valid.String()}
		}
		w.Players = append(w.Players, wp)
	}
	return w
}

// Broadcast payloads ("data" of a websocket envelope).

type wsTurnChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type wsTurnOutcomeData struct {
	Player  int    `json:"player"`
	Outcome string `json:"outcome"`
	Input   int    `json:"input"`
	Length  int    `json:"length"`
	Cursor  int    `json:"cursor"`
}

type wsInputConfirmedData struct {
	Player int    `json:"player"`
	Input  int    `json:"input"`
	Level  string `json:"level"`
}

type wsIndicatorChangedData struct {
	Indicator string `json:"indicator"`
	On        bool   `json:"on"`
}

type wsTickOverrunData struct {
	Missed uint64 `json:"missed"`
}

// errSnapshotTimeout is returned when the game loop does not answer in time.
var errSnapshotTimeout = errors.New("state snapshot timed out")

const snapshotTimeout = 1 * time.Second

// requestSnapshot asks the game loop for a snapshot through the reducer.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	if events == nil {
		return StateSnapshot{}, errors.New("no event channel")
	}
	reply := make(chan StateSnapshot, 1)

	waitCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	select {
	case <-waitCtx.Done():
		return StateSnapshot{}, fmt.Errorf("send snapshot request: %w", snapshotErr(waitCtx))
	case events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-waitCtx.Done():
		return StateSnapshot{}, snapshotErr(waitCtx)
	case snap := <-reply:
		return snap, nil
	}
}

func snapshotErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errSnapshotTimeout
	}
	return ctx.Err()
}
