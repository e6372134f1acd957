package main

import (
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command against the board and
// reports failures via onEvent.
//
// It must never call Reduce() directly; the game loop sequences
// Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(
	board Board,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	now := time.Now()

	// Snapshot delivery doesn't need a board.
	if c, ok := cmd.(CmdPublishStateSnapshot); ok {
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}
		return
	}

	if board == nil {
		onEvent(CommandFailed{Command: cmd, Err: errNoBoard{}, At: now})
		return
	}

	switch c := cmd.(type) {
	case CmdSetIndicator:
		if err := board.SetIndicator(c.ID, c.On); err != nil {
			logger.Error("set indicator failed", "error", err, "indicator", c.ID.String(), "on", c.On)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}

	case CmdReinitializePorts:
		if err := board.ReinitializePorts(); err != nil {
			logger.Error("reinitialize ports failed", "error", err)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}

	case CmdInjectInput:
		inj, ok := board.(Injector)
		if !ok {
			logger.Warn("board does not accept injected inputs", "command", cmd.String())
			onEvent(CommandFailed{Command: cmd, Err: errInjectUnsupported{}, At: now})
			return
		}
		var err error
		if c.Start {
			err = inj.InjectStart(c.Active)
		} else {
			err = inj.InjectChannel(c.Channel, c.Active)
		}
		if err != nil {
			logger.Error("inject input failed", "error", err, "command", cmd.String())
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}

// errNoBoard indicates the loop was asked to execute a command without a board.
type errNoBoard struct{}

func (errNoBoard) Error() string { return "no board" }

type errInjectUnsupported struct{}

func (errInjectUnsupported) Error() string { return "board does not support input injection" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
