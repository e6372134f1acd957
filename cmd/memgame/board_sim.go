package main

import (
	"fmt"
	"log/slog"
	"sync"
)

// simBoard is an in-memory board. Inputs are modelled electrically: each pin
// has a pull-up, so a released input reads high (Inactive) and a pressed one
// reads low.
type simBoard struct {
	mu sync.Mutex

	high      []bool
	startHigh bool

	indicators [numIndicators]bool
	reinits    int

	logger *slog.Logger
}

func newSimBoard(channels int, logger *slog.Logger) *simBoard {
	b := &simBoard{
		high:      make([]bool, channels),
		startHigh: true,
		logger:    logger,
	}
	for i := range b.high {
		b.high[i] = true
	}
	return b
}

func (b *simBoard) ReadChannel(ch ChannelID) Level {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch < 0 || int(ch) >= len(b.high) {
		return Inactive
	}
	return levelFromRaw(b.high[ch])
}

func (b *simBoard) StartActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return levelFromRaw(b.startHigh) == Active
}

func (b *simBoard) SetIndicator(id IndicatorID, on bool) error {
	if id < 0 || id >= numIndicators {
		return fmt.Errorf("unknown indicator %d", id)
	}
	b.mu.Lock()
	b.indicators[id] = on
	b.mu.Unlock()

	b.logger.Debug("indicator", "id", id.String(), "on", on)
	return nil
}

// ReinitializePorts has nothing to re-assert in memory; it is counted so the
// periodic maintenance can be observed.
func (b *simBoard) ReinitializePorts() error {
	b.mu.Lock()
	b.reinits++
	n := b.reinits
	b.mu.Unlock()

	b.logger.Debug("ports reinitialized", "count", n)
	return nil
}

func (b *simBoard) Close() error { return nil }

func (b *simBoard) InjectChannel(ch ChannelID, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch < 0 || int(ch) >= len(b.high) {
		return fmt.Errorf("channel %d out of range [0,%d)", ch, len(b.high))
	}
	b.high[ch] = !active
	return nil
}

func (b *simBoard) InjectStart(active bool) error {
	b.mu.Lock()
	b.startHigh = !active
	b.mu.Unlock()
	return nil
}

// Indicator returns the last value written to id.
func (b *simBoard) Indicator(id IndicatorID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indicators[id]
}

// Reinits returns how many times ReinitializePorts ran.
func (b *simBoard) Reinits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reinits
}
