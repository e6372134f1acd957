package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01

	KEY_ENTER = 28
	KEY_1     = 2
	KEY_2     = 3
	KEY_3     = 4
	KEY_4     = 5
	KEY_5     = 6
	KEY_6     = 7

	// KEY_MAX+1 bits, as returned by EVIOCGKEY
	keyBitmapBytes = (0x2ff + 1) / 8
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Game defaults
const (
	defaultInputsPerPlayer     = 3
	defaultSequenceCapacity    = 100
	defaultDebounceWindowTicks = 5
	defaultHandoff             = HandoffAlternate

	numPlayers = 2
)

// Clock defaults. One tick is 1 ms; 500 ticks is half a second and
// 20 half seconds is the ten second epoch.
const (
	defaultTickIntervalUS      = 1000
	defaultClockModulus        = 500
	defaultHalfSecondsPerEpoch = 20

	// Buffered ticks the loop may fall behind before the producer counts overruns.
	defaultTickBuffer = 8
)

// Daemon surface defaults
const (
	defaultIPCSocketPath = "/tmp/memgame.sock"
	defaultHTTPListen    = ":3002"
	defaultBoardBackend  = "sim"
)
