package main

import "time"

// This file implements the reducer:
//
//   - Events: inputs (tick samples, IPC actions, snapshot requests, failures)
//   - Commands: side effects requested by the reducer (board outputs)
//   - Broadcasts: notifications for state observers
//   - Reduce(): computes next state + commands + broadcasts, without I/O
//
// The game loop is responsible for sampling the board into TickSample events,
// executing Commands, and feeding failures back as Events.

// ReduceResult is the output of Reduce(): next state plus side effects.
type ReduceResult struct {
	State      *GameSession
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
func Reduce(s *GameSession, e Event, cfg GameConfig) ReduceResult {
	if s == nil {
		s = NewGameSession(cfg)
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		at = te.At
	}

	rr := ReduceResult{State: s}

	switch ev := e.(type) {
	case TickSample:
		reduceTick(&rr, ev, cfg)

	case SetInput:
		p := ev.Player - 1
		if p < 0 || p >= numPlayers || ev.Input < 0 || ev.Input >= len(s.Players[p].Inputs) {
			// IPC validates ranges; anything else is dropped.
			break
		}
		rr.Commands = append(rr.Commands, CmdInjectInput{
			Channel: s.Players[p].Inputs[ev.Input].Channel,
			Active:  ev.Active,
		})

	case SetStart:
		rr.Commands = append(rr.Commands, CmdInjectInput{Start: true, Active: ev.Active})

	case ResetGame:
		if s.Turn == Idle {
			break
		}
		from := s.Turn
		s.EndGame(at)
		rr.Broadcasts = append(rr.Broadcasts, BroadcastTurnChanged{From: from, To: s.Turn, At: at})

	case RequestStateSnapshot:
		rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(at),
		})

	case TickOverrun:
		rr.Broadcasts = append(rr.Broadcasts, BroadcastTickOverrun{Missed: ev.Missed, At: ev.At})

	case CommandFailed:
		s.Faults++

	default:
		// Unknown event type: no-op.
	}

	return rr
}

// reduceTick runs one main loop iteration: clock, debouncing, turn control.
func reduceTick(rr *ReduceResult, ev TickSample, cfg GameConfig) {
	s := rr.State
	now := ev.At

	s.Clock.Advance()
	epochs := s.Clock.TickAndDerive(cfg.Clock)
	if epochs.HalfSecond {
		on := s.ToggleIndicator(IndicatorHeartbeat)
		rr.Commands = append(rr.Commands, CmdSetIndicator{ID: IndicatorHeartbeat, On: on})
		rr.Broadcasts = append(rr.Broadcasts, BroadcastIndicatorChanged{ID: IndicatorHeartbeat, On: on, At: now})
	}
	if epochs.TenSecond {
		rr.Commands = append(rr.Commands, CmdReinitializePorts{})
	}

	// A sample taken for a different turn (e.g. a reset slipped in between
	// sampling and reduction) says nothing about the current player.
	if ev.Turn != s.Turn {
		return
	}

	if s.Turn == Idle {
		if ev.Start {
			s.StartGame()
			rr.Broadcasts = append(rr.Broadcasts, BroadcastTurnChanged{From: Idle, To: s.Turn, At: now})
		}
		return
	}

	pIdx := s.Turn.PlayerIndex()
	p := &s.Players[pIdx]
	tick := s.Clock.Tick

	for i := range p.Inputs {
		raw := Inactive
		if i < len(ev.Levels) {
			raw = ev.Levels[i]
		}
		_, edge := p.Inputs[i].Debounce(raw, tick, cfg.Debounce)
		switch edge {
		case EdgeRising:
			on := s.ToggleIndicator(IndicatorPress)
			rr.Commands = append(rr.Commands, CmdSetIndicator{ID: IndicatorPress, On: on})
			rr.Broadcasts = append(rr.Broadcasts,
				BroadcastInputConfirmed{Player: pIdx + 1, Input: i, Level: Active, At: now},
				BroadcastIndicatorChanged{ID: IndicatorPress, On: on, At: now},
			)
		case EdgeFalling:
			rr.Broadcasts = append(rr.Broadcasts, BroadcastInputConfirmed{Player: pIdx + 1, Input: i, Level: Inactive, At: now})
		}
	}

	if !s.ReadyForNextTurn {
		s.ReadyForNextTurn = VerifyReady(p)
		return
	}

	outcome, input := s.TakeTurn(p)
	if outcome == NoInput {
		return
	}

	rr.Broadcasts = append(rr.Broadcasts, BroadcastTurnOutcome{
		Player:  pIdx + 1,
		Outcome: outcome,
		Input:   input,
		Length:  s.Sequence.Len(),
		Cursor:  s.Cursor,
		At:      now,
	})

	from := s.Turn
	switch outcome {
	case GameOver:
		s.EndGame(now)
	case Finished:
		s.PassTurn(cfg.Handoff)
	default:
		return
	}
	rr.Broadcasts = append(rr.Broadcasts, BroadcastTurnChanged{From: from, To: s.Turn, At: now})
}
