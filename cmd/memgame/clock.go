package main

// ClockConfig configures the cascading software clock divider.
type ClockConfig struct {
	// Modulus is the tick value that completes half a second.
	Modulus uint32
	// HalfSecondsPerEpoch is the number of half seconds in the slow epoch (10 s).
	HalfSecondsPerEpoch uint32
}

// SoftwareClock is the millisecond tick plus the epochs derived from it.
type SoftwareClock struct {
	Tick        uint32
	HalfSeconds uint32
	TenSeconds  uint32
}

// ClockEpochs reports which epochs elapsed during one TickAndDerive call.
type ClockEpochs struct {
	HalfSecond bool
	TenSecond  bool
}

// Advance records one tick from the tick source. This is the only write the
// producer side performs; derivation happens in TickAndDerive.
func (c *SoftwareClock) Advance() {
	c.Tick++
}

// TickAndDerive wraps the tick at the modulus and cascades into the half and
// ten second counters. It runs once per loop iteration before debouncing.
func (c *SoftwareClock) TickAndDerive(cfg ClockConfig) ClockEpochs {
	var ep ClockEpochs

	if c.Tick >= cfg.Modulus {
		c.Tick = 0
		c.HalfSeconds++
		ep.HalfSecond = true
	}
	if c.HalfSeconds >= cfg.HalfSecondsPerEpoch {
		c.HalfSeconds = 0
		c.TenSeconds++
		ep.TenSecond = true
	}

	return ep
}
