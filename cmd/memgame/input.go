package main

import (
	"bytes"
	"encoding/binary"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvent parses one raw input_event.
func decodeInputEvent(buf []byte) (inputEvent, error) {
	var ev inputEvent
	err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev)
	return ev, err
}

// keyStates tracks pressed keys from EV_KEY events.
type keyStates map[uint16]bool

// apply updates the table; it reports whether ev was a key event.
// Autorepeat leaves the key pressed.
func (k keyStates) apply(ev inputEvent) bool {
	if ev.Type != EV_KEY {
		return false
	}
	switch ev.Value {
	case evValuePress, evValueRepeat:
		k[ev.Code] = true
	case evValueRelease:
		k[ev.Code] = false
	}
	return true
}

// keyBitSet reports whether code is set in an EVIOCGKEY bitmap.
func keyBitSet(bitmap []byte, code uint16) bool {
	idx := int(code / 8)
	if idx >= len(bitmap) {
		return false
	}
	return bitmap[idx]&(1<<(code%8)) != 0
}
