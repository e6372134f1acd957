package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the game loop.
// In this codebase, those are board outputs and snapshot deliveries.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetIndicator drives one visual feedback output.
type CmdSetIndicator struct {
	ID IndicatorID
	On bool
}

func (CmdSetIndicator) commandMarker() {}
func (c CmdSetIndicator) String() string {
	return fmt.Sprintf("CmdSetIndicator(id=%s, on=%v)", c.ID, c.On)
}

// CmdReinitializePorts re-asserts input/output configuration on the board.
type CmdReinitializePorts struct{}

func (CmdReinitializePorts) commandMarker() {}
func (CmdReinitializePorts) String() string { return "CmdReinitializePorts()" }

// CmdInjectInput sets a simulated raw input. Start selects the start button,
// otherwise Channel names the player input.
type CmdInjectInput struct {
	Channel ChannelID
	Start   bool
	Active  bool
}

func (CmdInjectInput) commandMarker() {}
func (c CmdInjectInput) String() string {
	if c.Start {
		return fmt.Sprintf("CmdInjectInput(start, active=%v)", c.Active)
	}
	return fmt.Sprintf("CmdInjectInput(channel=%d, active=%v)", c.Channel, c.Active)
}

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
