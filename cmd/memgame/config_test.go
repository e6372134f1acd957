package main

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memgame.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	gc := cfg.ToGameConfig()
	assert.Equal(t, 3, gc.InputsPerPlayer)
	assert.Equal(t, 100, gc.SequenceCapacity)
	assert.Equal(t, DebounceConfig{Window: 5, Modulus: 500}, gc.Debounce)
	assert.Equal(t, ClockConfig{Modulus: 500, HalfSecondsPerEpoch: 20}, gc.Clock)
	assert.Equal(t, HandoffAlternate, gc.Handoff)
	assert.Equal(t, time.Millisecond, cfg.TickInterval())
}

func TestLoadConfigFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
game:
  handoff: sticky
  debounce_window_ticks: 8
board:
  backend: evdev
  evdev:
    devices: [/dev/input/event3]
    leds:
      press: /sys/class/leds/led0
logging:
  level: debug
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sticky", cfg.Game.Handoff)
	assert.Equal(t, uint32(8), cfg.Game.DebounceWindowTicks)
	assert.Equal(t, 100, cfg.Game.SequenceCapacity, "unset fields keep defaults")
	assert.Equal(t, []string{"/dev/input/event3"}, cfg.Board.Evdev.Devices)
	assert.Equal(t, "/sys/class/leds/led0", cfg.Board.Evdev.LEDs.Press)
	assert.Equal(t, [][]uint16{{KEY_1, KEY_2, KEY_3}, {KEY_4, KEY_5, KEY_6}}, cfg.Board.Evdev.PlayerKeys)
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "game:\n  handof: sticky\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handof")
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n---\nlogging:\n  level: debug\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing document")
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	board := "evdev"
	window := uint(7)
	listen := "127.0.0.1:9000"

	FlagOverrides{BoardBackend: &board, DebounceWindowTicks: &window, HTTPListen: &listen}.Apply(&cfg)

	assert.Equal(t, "evdev", cfg.Board.Backend)
	assert.Equal(t, uint32(7), cfg.Game.DebounceWindowTicks)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Listen)
	assert.Equal(t, defaultIPCSocketPath, cfg.IPC.SocketPath, "nil overrides are ignored")

	FlagOverrides{}.Apply(nil)
}

func TestFlagOverrides_OversizedWindowIsRejected(t *testing.T) {
	if strconv.IntSize == 32 {
		t.Skip("uint cannot exceed 32 bits")
	}
	cfg := DefaultConfig()
	window := uint(math.MaxUint32)
	window += 6 // would wrap to 5 if truncated

	FlagOverrides{DebounceWindowTicks: &window}.Apply(&cfg)

	assert.Equal(t, uint32(math.MaxUint32), cfg.Game.DebounceWindowTicks)
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"window zero", func(c *Config) { c.Game.DebounceWindowTicks = 0 }, "debounce_window_ticks"},
		{"window equals modulus", func(c *Config) { c.Game.DebounceWindowTicks = 500 }, "debounce_window_ticks"},
		{"modulus too small", func(c *Config) { c.Clock.Modulus = 1 }, "clock.modulus"},
		{"capacity zero", func(c *Config) { c.Game.SequenceCapacity = 0 }, "sequence_capacity"},
		{"too many inputs", func(c *Config) { c.Game.InputsPerPlayer = 17 }, "inputs_per_player"},
		{"unknown handoff", func(c *Config) { c.Game.Handoff = "random" }, "game.handoff"},
		{"tick interval", func(c *Config) { c.Clock.TickIntervalUS = 0 }, "tick_interval_us"},
		{"unknown backend", func(c *Config) { c.Board.Backend = "gpio" }, "board.backend"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"evdev key count", func(c *Config) {
			c.Board.Backend = "evdev"
			c.Game.InputsPerPlayer = 4
		}, "player_keys[0]"},
		{"evdev duplicate key", func(c *Config) {
			c.Board.Backend = "evdev"
			c.Board.Evdev.PlayerKeys[1][0] = KEY_1
		}, "already used"},
		{"evdev start key reused", func(c *Config) {
			c.Board.Backend = "evdev"
			c.Board.Evdev.StartKey = KEY_3
		}, "already used by start_key"},
		{"evdev no devices", func(c *Config) {
			c.Board.Backend = "evdev"
			c.Board.Evdev.Devices = nil
		}, "devices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateIgnoresEvdevForSim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Game.InputsPerPlayer = 4
	cfg.Board.Evdev.Devices = nil
	assert.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "leds/x"), ExpandPath("~/leds/x"))
	assert.Equal(t, "~other", ExpandPath("~other"))
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"error", "warn", "warning", "INFO", "debug"} {
		_, err := parseLogLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLogLevel("trace")
	assert.Error(t, err)
}
