package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ============================================================================
// Game Loop - reducer-driven main loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The loop is the only goroutine that touches GameSession and the board outputs.
//   - Effect failures are turned into Events and fed back into the reducer.
//
// Every tick received from the tick source advances the software clock by
// exactly one, so the debouncers see every tick value in order. Ticks dropped
// by the producer stretch game time instead of skipping values.
// ============================================================================

// runGame is the main loop that:
//   - Samples the board once per received tick
//   - Reduces tick samples and external events into (state, commands)
//   - Executes commands against the board and feeds failures back
//   - Forwards broadcasts to the state websocket without blocking
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the ticks or events channel is closed
func runGame(
	ctx context.Context,
	ticks <-chan struct{},
	events <-chan Event,
	board Board,
	cfg GameConfig,
	state *GameSession,
	broadcasts chan<- StateBroadcast,
	overruns *atomic.Uint64,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("game state is nil")
		return
	}

	var eventQueue []Event
	var cmdQueue []Command

	// Reused across ticks; the reducer consumes it synchronously.
	levels := make([]Level, cfg.InputsPerPlayer)

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcs {
			select {
			case broadcasts <- b:
			default:
				logger.Debug("broadcast channel full; dropping", "type", broadcastType(b))
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(board, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("game loop stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("game loop stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case _, ok := <-ticks:
			if !ok {
				logger.Info("game loop stopping (tick source closed)")
				return
			}
			now := time.Now()
			if overruns != nil {
				if missed := overruns.Swap(0); missed > 0 {
					logger.Warn("tick overrun", "missed", missed)
					enqueueEvent(TickOverrun{Missed: missed, At: now})
				}
			}
			enqueueEvent(sampleBoard(board, state, levels, now))
			flushEvents()
			flushCommands()
		}
	}
}

// sampleBoard reads the raw inputs relevant to the current turn.
func sampleBoard(board Board, s *GameSession, levels []Level, now time.Time) TickSample {
	sample := TickSample{Turn: s.Turn, At: now}
	if board == nil {
		return sample
	}

	p := s.ActivePlayer()
	if p == nil {
		sample.Start = board.StartActive()
		return sample
	}

	levels = levels[:0]
	for _, in := range p.Inputs {
		levels = append(levels, board.ReadChannel(in.Channel))
	}
	sample.Levels = levels
	return sample
}
