package main

import (
	"errors"
	"fmt"
)

// ============================================================================
// Turn Controller
// ============================================================================
// The turn controller owns the sequence both players replay and extend.
// It only looks at debounced input states (DigitalInput.Valid); raw levels
// never reach it.
// ============================================================================

// ErrSequenceFull is returned when appending to a sequence at capacity.
var ErrSequenceFull = errors.New("sequence is full")

// TurnOutcome is the result of evaluating the active player's inputs once.
type TurnOutcome uint8

const (
	NoInput TurnOutcome = iota
	Correct
	GameOver
	Finished
)

func (o TurnOutcome) String() string {
	switch o {
	case NoInput:
		return "no_input"
	case Correct:
		return "correct"
	case GameOver:
		return "game_over"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// TurnState is the top-level game turn.
type TurnState uint8

const (
	Idle TurnState = iota
	Player1Active
	Player2Active
)

func (t TurnState) String() string {
	switch t {
	case Idle:
		return "idle"
	case Player1Active:
		return "player1"
	case Player2Active:
		return "player2"
	default:
		return fmt.Sprintf("turn(%d)", uint8(t))
	}
}

// PlayerIndex returns the zero-based player for an active turn, or -1 for Idle.
func (t TurnState) PlayerIndex() int {
	switch t {
	case Player1Active:
		return 0
	case Player2Active:
		return 1
	default:
		return -1
	}
}

// Handoff selects where a Finished outcome during Player2Active goes.
type Handoff string

const (
	// HandoffAlternate passes the turn back to player 1.
	HandoffAlternate Handoff = "alternate"
	// HandoffSticky keeps player 2 active for every following round.
	HandoffSticky Handoff = "sticky"
)

// Sequence is a bounded, capacity-checked record of input indexes.
type Sequence struct {
	buf      []int
	capacity int
}

// NewSequence returns an empty sequence that holds at most capacity elements.
func NewSequence(capacity int) Sequence {
	return Sequence{
		buf:      make([]int, 0, capacity),
		capacity: capacity,
	}
}

func (s *Sequence) Len() int { return len(s.buf) }
func (s *Sequence) Cap() int { return s.capacity }

// At returns the element at position i. i must be < Len().
func (s *Sequence) At(i int) int { return s.buf[i] }

// Append adds v to the end of the sequence.
func (s *Sequence) Append(v int) error {
	if len(s.buf) >= s.capacity {
		return ErrSequenceFull
	}
	s.buf = append(s.buf, v)
	return nil
}

// Reset empties the sequence, keeping its capacity.
func (s *Sequence) Reset() {
	s.buf = s.buf[:0]
}

// Values returns a copy of the committed elements.
func (s *Sequence) Values() []int {
	out := make([]int, len(s.buf))
	copy(out, s.buf)
	return out
}

// Player is one of the two players: an ordered set of debounced inputs.
type Player struct {
	Inputs []DigitalInput
}

// firstActive returns the lowest-indexed input whose debounced state is
// Active, or -1 if none is. Lower indexes win ties.
func (p *Player) firstActive() int {
	for i := range p.Inputs {
		if p.Inputs[i].Valid == Active {
			return i
		}
	}
	return -1
}

// VerifyReady reports whether every input of p is debounced Inactive.
// A held button must be released before it can count as the next action.
func VerifyReady(p *Player) bool {
	for i := range p.Inputs {
		if p.Inputs[i].Valid == Active {
			return false
		}
	}
	return true
}

// TakeTurn evaluates p's debounced inputs against the shared sequence.
// It returns the outcome and the selected input index (-1 for NoInput).
//
// The caller must only call TakeTurn while ReadyForNextTurn is set. Every
// outcome except NoInput clears it.
func (g *GameSession) TakeTurn(p *Player) (TurnOutcome, int) {
	current := p.firstActive()
	if current < 0 {
		return NoInput, -1
	}

	g.ReadyForNextTurn = false

	if g.Cursor == g.Sequence.Len() {
		if err := g.Sequence.Append(current); err != nil {
			// Capacity reached: the round cannot be extended any further.
			return GameOver, current
		}
		return Finished, current
	}

	if g.Sequence.At(g.Cursor) == current {
		g.Cursor++
		return Correct, current
	}

	return GameOver, current
}
