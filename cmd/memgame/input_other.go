//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

func openEvdevBoard(cfg EvdevConfig, logger *slog.Logger) (Board, func(context.Context) error, error) {
	return nil, nil, errors.New("evdev board is only supported on linux")
}
