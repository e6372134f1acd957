package main

import (
	"context"
	"fmt"
	"log/slog"
)

// Board is the hardware collaborator of the game loop: raw input sampling
// and indicator outputs. Only the game loop calls its methods, except
// through Injector which may be called from effects as well.
type Board interface {
	// ReadChannel returns the current raw level of a player input.
	ReadChannel(ch ChannelID) Level
	// StartActive reports whether the start input is currently pressed.
	// It is read raw, without debouncing.
	StartActive() bool
	SetIndicator(id IndicatorID, on bool) error
	// ReinitializePorts re-asserts input/output configuration.
	ReinitializePorts() error
	Close() error
}

// Injector is implemented by boards whose inputs can be driven in software.
type Injector interface {
	InjectChannel(ch ChannelID, active bool) error
	InjectStart(active bool) error
}

// openBoard builds the configured backend. run is non-nil when the backend
// needs its own goroutine (e.g. reading input devices).
func openBoard(cfg Config, logger *slog.Logger) (board Board, run func(context.Context) error, err error) {
	channels := numPlayers * cfg.Game.InputsPerPlayer

	switch cfg.Board.Backend {
	case "sim":
		return newSimBoard(channels, logger), nil, nil
	case "evdev":
		b, run, err := openEvdevBoard(cfg.Board.Evdev, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open evdev board: %w", err)
		}
		return b, run, nil
	default:
		return nil, nil, fmt.Errorf("unknown board backend %q", cfg.Board.Backend)
	}
}
