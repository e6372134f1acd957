package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - inputs to the reducer
// ============================================================================
// Events come from three places:
//   - the game loop itself (TickSample, TickOverrun, CommandFailed)
//   - IPC clients (SetInput, SetStart, ResetGame)
//   - snapshot requests from IPC/HTTP/WS (RequestStateSnapshot)
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent attaches the time the loop received an event.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// TickSample is produced by the loop once per new tick. It carries the raw
// levels of the inputs that matter for Turn: the active player's inputs, or
// nothing but Start while Idle.
type TickSample struct {
	Turn   TurnState
	Levels []Level
	Start  bool
	At     time.Time
}

func (TickSample) eventMarker() {}

// TickOverrun is emitted when the tick producer had to drop ticks because the
// loop fell behind its real-time budget.
type TickOverrun struct {
	Missed uint64
	At     time.Time
}

func (TickOverrun) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// RequestStateSnapshot asks the loop for a copy of the current state.
// The reducer answers through CmdPublishStateSnapshot.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// SetInput drives a simulated player input. Player is 1-based, Input is the
// 0-based index within that player's inputs.
type SetInput struct {
	Player int  `json:"player"`
	Input  int  `json:"input"`
	Active bool `json:"active"`
}

func (SetInput) eventMarker() {}

// SetStart drives the simulated start button.
type SetStart struct {
	Active bool `json:"active"`
}

func (SetStart) eventMarker() {}

// ResetGame abandons any game in progress and returns to Idle.
type ResetGame struct{}

func (ResetGame) eventMarker() {}

// GetState is the wire form of a snapshot request.
type GetState struct{}

func (GetState) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps events for JSON serialization with a type discriminator.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "set_input":
		var a SetInput
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetInput: %w", err)
		}
		return a, nil

	case "set_start":
		var a SetStart
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetStart: %w", err)
		}
		return a, nil

	case "reset_game":
		return ResetGame{}, nil

	case "get_state":
		return GetState{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SetInput:
		env.Type = "set_input"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetInput: %w", err)
		}
		env.Data = data

	case SetStart:
		env.Type = "set_start"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetStart: %w", err)
		}
		env.Data = data

	case ResetGame:
		env.Type = "reset_game"

	case GetState:
		env.Type = "get_state"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
