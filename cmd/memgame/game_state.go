package main

import "time"

// GameConfig is the engine configuration handed to the reducer.
// It is derived from the user-facing Config (see Config.ToGameConfig).
type GameConfig struct {
	InputsPerPlayer  int
	SequenceCapacity int

	Debounce DebounceConfig
	Clock    ClockConfig

	Handoff Handoff
}

// GameSession is the top-level, loop-owned state container.
//
// Goals:
//   - Keep everything the turn controller, debouncers and clock touch in one
//     place so the reducer can stay pure.
//   - Make it easy to publish a coherent snapshot to other clients (IPC/WS).
//
// Only the game loop goroutine may hold a *GameSession. Other goroutines get
// StateSnapshot copies.
type GameSession struct {
	Turn    TurnState
	Players [numPlayers]Player

	// Sequence is shared by both players for the lifetime of one game.
	Sequence Sequence
	// Cursor is the active player's replay position within Sequence.
	Cursor int
	// ReadyForNextTurn is set once all of the active player's inputs have been
	// observed Inactive since the last accepted action.
	ReadyForNextTurn bool

	Clock SoftwareClock

	// Indicators is the last state requested for each output.
	Indicators [numIndicators]bool

	Stats GameStats

	// Faults counts effects that failed to execute (board I/O errors).
	Faults int
}

// GameStats is bookkeeping across games; StartGame keeps it.
type GameStats struct {
	GamesPlayed int
	// BestLength is the longest sequence any finished game reached.
	BestLength int
	// LastLength is the sequence length of the most recent game.
	LastLength int
	LastEndAt  time.Time
}

// IndicatorID identifies a visual feedback output.
type IndicatorID int

const (
	// IndicatorPress toggles on every confirmed press.
	IndicatorPress IndicatorID = iota
	// IndicatorHeartbeat toggles every half second.
	IndicatorHeartbeat

	numIndicators
)

func (id IndicatorID) String() string {
	switch id {
	case IndicatorPress:
		return "press"
	case IndicatorHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// NewGameSession returns an Idle session with all inputs at power-on state.
// Player p's input i samples channel p*InputsPerPlayer+i.
func NewGameSession(cfg GameConfig) *GameSession {
	s := &GameSession{
		Turn:     Idle,
		Sequence: NewSequence(cfg.SequenceCapacity),
	}
	for p := range s.Players {
		inputs := make([]DigitalInput, cfg.InputsPerPlayer)
		for i := range inputs {
			inputs[i].Channel = ChannelID(p*cfg.InputsPerPlayer + i)
		}
		s.Players[p].Inputs = inputs
	}
	return s
}

// ActivePlayer returns the player whose turn it is, or nil while Idle.
func (s *GameSession) ActivePlayer() *Player {
	idx := s.Turn.PlayerIndex()
	if idx < 0 {
		return nil
	}
	return &s.Players[idx]
}

// StartGame begins a fresh game with player 1 to move.
// The sequence, cursor and all debouncers are cleared.
func (s *GameSession) StartGame() {
	s.Sequence.Reset()
	s.Cursor = 0
	s.ReadyForNextTurn = false
	for p := range s.Players {
		for i := range s.Players[p].Inputs {
			s.Players[p].Inputs[i].Reset()
		}
	}
	s.Stats.GamesPlayed++
	s.Turn = Player1Active
}

// EndGame returns to Idle and rewinds the cursor. The sequence is kept so the
// final position can still be inspected until the next StartGame.
func (s *GameSession) EndGame(now time.Time) {
	s.Turn = Idle
	s.Cursor = 0
	s.ReadyForNextTurn = false

	n := s.Sequence.Len()
	s.Stats.LastLength = n
	s.Stats.LastEndAt = now
	if n > s.Stats.BestLength {
		s.Stats.BestLength = n
	}
}

// PassTurn hands control to the next player after a Finished outcome.
// The next player replays the sequence from the start.
//
// Inputs are only debounced during their owner's turn, so an incoming player's
// debouncers still hold whatever they last confirmed; they are reset. A player
// who keeps the turn keeps their state and must release first.
func (s *GameSession) PassTurn(handoff Handoff) {
	from := s.Turn
	s.Cursor = 0
	switch s.Turn {
	case Player1Active:
		s.Turn = Player2Active
	case Player2Active:
		if handoff == HandoffSticky {
			s.Turn = Player2Active
		} else {
			s.Turn = Player1Active
		}
	}

	if s.Turn != from {
		if p := s.ActivePlayer(); p != nil {
			for i := range p.Inputs {
				p.Inputs[i].Reset()
			}
		}
	}
}

// ToggleIndicator flips the recorded state of id and returns the new state.
func (s *GameSession) ToggleIndicator(id IndicatorID) bool {
	s.Indicators[id] = !s.Indicators[id]
	return s.Indicators[id]
}
