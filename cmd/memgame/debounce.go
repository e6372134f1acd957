package main

// Level is the logical level of a digital input.
type Level uint8

const (
	Inactive Level = iota
	Active
)

func (l Level) String() string {
	if l == Active {
		return "active"
	}
	return "inactive"
}

// levelFromRaw converts an electrical pin level into a logical level.
// Inputs are wired active-low with pull-ups: a released button reads high.
func levelFromRaw(high bool) Level {
	if high {
		return Inactive
	}
	return Active
}

// DebounceState is the phase of the per-input debounce state machine.
type DebounceState uint8

const (
	DbExpectHigh DebounceState = iota
	DbValidateHigh
	DbExpectLow
	DbValidateLow
)

func (s DebounceState) String() string {
	switch s {
	case DbExpectHigh:
		return "expect_high"
	case DbValidateHigh:
		return "validate_high"
	case DbExpectLow:
		return "expect_low"
	case DbValidateLow:
		return "validate_low"
	default:
		return "unknown"
	}
}

// Edge reports a committed change of an input's valid state.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

// ChannelID identifies one logical digital input on the board.
type ChannelID int

// DebounceConfig is the single clock domain the debouncer works in.
type DebounceConfig struct {
	// Window is the number of ticks a raw level must persist.
	Window uint32
	// Modulus is the tick value at which the software clock wraps to 0.
	Modulus uint32
}

// deadline returns tick+Window kept inside [0, Modulus).
func (c DebounceConfig) deadline(tick uint32) uint32 {
	d := tick + c.Window
	if d >= c.Modulus {
		d -= c.Modulus
	}
	return d
}

// DigitalInput is the debounce state of one logical input.
type DigitalInput struct {
	Control  DebounceState
	Valid    Level
	Deadline uint32
	Channel  ChannelID
}

// Debounce advances the state machine with one raw sample taken at tick.
//
// Confirmation compares tick and deadline for equality, so Debounce must see
// every tick value; a skipped value delays confirmation by a whole clock period.
// A level that reverts before its deadline puts the machine back into the
// matching Expect phase and leaves Valid untouched.
func (in *DigitalInput) Debounce(raw Level, tick uint32, cfg DebounceConfig) (DebounceState, Edge) {
	edge := EdgeNone

	switch in.Control {
	case DbExpectHigh:
		in.Valid = Inactive
		if raw == Active {
			in.Deadline = cfg.deadline(tick)
			in.Control = DbValidateHigh
		}

	case DbValidateHigh:
		if raw != Active {
			in.Control = DbExpectHigh
			break
		}
		if tick == in.Deadline {
			in.Valid = Active
			in.Control = DbExpectLow
			edge = EdgeRising
		}

	case DbExpectLow:
		in.Valid = Active
		if raw == Inactive {
			in.Deadline = cfg.deadline(tick)
			in.Control = DbValidateLow
		}

	case DbValidateLow:
		if raw != Inactive {
			in.Control = DbExpectLow
			break
		}
		if tick == in.Deadline {
			in.Valid = Inactive
			in.Control = DbExpectHigh
			edge = EdgeFalling
		}

	default:
		in.Control = DbExpectHigh
	}

	return in.Control, edge
}

// Reset returns the input to its power-on state.
func (in *DigitalInput) Reset() {
	in.Control = DbExpectHigh
	in.Valid = Inactive
	in.Deadline = 0
}
