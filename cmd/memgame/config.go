package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the memgame daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config. Layering is defaults -> file -> flags -> Validate().
type Config struct {
	Game    GameFileConfig  `yaml:"game"`
	Clock   ClockFileConfig `yaml:"clock"`
	Board   BoardConfig     `yaml:"board"`
	IPC     IPCConfig       `yaml:"ipc"`
	HTTP    HTTPConfig      `yaml:"http"`
	Logging LoggingConfig   `yaml:"logging"`
}

type GameFileConfig struct {
	InputsPerPlayer     int    `yaml:"inputs_per_player"`
	SequenceCapacity    int    `yaml:"sequence_capacity"`
	DebounceWindowTicks uint32 `yaml:"debounce_window_ticks"`
	Handoff             string `yaml:"handoff"` // "alternate" or "sticky"
}

type ClockFileConfig struct {
	TickIntervalUS      int    `yaml:"tick_interval_us"`
	Modulus             uint32 `yaml:"modulus"`
	HalfSecondsPerEpoch uint32 `yaml:"half_seconds_per_epoch"`
}

type BoardConfig struct {
	Backend string      `yaml:"backend"` // "sim" or "evdev"
	Evdev   EvdevConfig `yaml:"evdev"`
}

// EvdevConfig maps Linux input devices onto game inputs.
// PlayerKeys[p][i] is the key code for player p+1, input i.
type EvdevConfig struct {
	Devices    []string   `yaml:"devices"`
	StartKey   uint16     `yaml:"start_key"`
	PlayerKeys [][]uint16 `yaml:"player_keys"`
	LEDs       LEDConfig  `yaml:"leds"`
}

// LEDConfig holds sysfs LED directories (e.g. /sys/class/leds/led0).
// Empty means the indicator is not wired.
type LEDConfig struct {
	Press     string `yaml:"press"`
	Heartbeat string `yaml:"heartbeat"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Game: GameFileConfig{
			InputsPerPlayer:     defaultInputsPerPlayer,
			SequenceCapacity:    defaultSequenceCapacity,
			DebounceWindowTicks: defaultDebounceWindowTicks,
			Handoff:             string(defaultHandoff),
		},
		Clock: ClockFileConfig{
			TickIntervalUS:      defaultTickIntervalUS,
			Modulus:             defaultClockModulus,
			HalfSecondsPerEpoch: defaultHalfSecondsPerEpoch,
		},
		Board: BoardConfig{
			Backend: defaultBoardBackend,
			Evdev: EvdevConfig{
				Devices:  []string{"/dev/input/event0"},
				StartKey: KEY_ENTER,
				PlayerKeys: [][]uint16{
					{KEY_1, KEY_2, KEY_3},
					{KEY_4, KEY_5, KEY_6},
				},
			},
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		HTTP: HTTPConfig{
			Listen: defaultHTTPListen,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values on top of a loaded config.
// A nil pointer means the flag was not set.
type FlagOverrides struct {
	BoardBackend *string
	Handoff      *string

	DebounceWindowTicks *uint
	TickIntervalUS      *int

	IPCSocketPath *string
	HTTPListen    *string

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.BoardBackend != nil {
		cfg.Board.Backend = *o.BoardBackend
	}
	if o.Handoff != nil {
		cfg.Game.Handoff = *o.Handoff
	}
	if o.DebounceWindowTicks != nil {
		// Saturate instead of wrapping; Validate rejects anything this large.
		w := *o.DebounceWindowTicks
		if uint64(w) > math.MaxUint32 {
			w = math.MaxUint32
		}
		cfg.Game.DebounceWindowTicks = uint32(w)
	}
	if o.TickIntervalUS != nil {
		cfg.Clock.TickIntervalUS = *o.TickIntervalUS
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Game
	if c.Game.InputsPerPlayer < 1 || c.Game.InputsPerPlayer > 16 {
		return errors.New("game.inputs_per_player must be between 1 and 16")
	}
	if c.Game.SequenceCapacity < 1 || c.Game.SequenceCapacity > 65535 {
		return errors.New("game.sequence_capacity must be between 1 and 65535")
	}
	switch Handoff(c.Game.Handoff) {
	case HandoffAlternate, HandoffSticky:
	default:
		return fmt.Errorf("game.handoff must be %q or %q", HandoffAlternate, HandoffSticky)
	}

	// Clock
	if c.Clock.TickIntervalUS <= 0 {
		return errors.New("clock.tick_interval_us must be > 0")
	}
	if c.Clock.Modulus < 2 {
		return errors.New("clock.modulus must be >= 2")
	}
	if c.Clock.HalfSecondsPerEpoch < 1 {
		return errors.New("clock.half_seconds_per_epoch must be >= 1")
	}
	// A window equal to the modulus would wrap the deadline onto the start tick.
	if c.Game.DebounceWindowTicks < 1 || c.Game.DebounceWindowTicks >= c.Clock.Modulus {
		return errors.New("game.debounce_window_ticks must be >= 1 and < clock.modulus")
	}

	// Board
	switch c.Board.Backend {
	case "sim":
	case "evdev":
		if err := c.Board.Evdev.validate(c.Game.InputsPerPlayer); err != nil {
			return err
		}
	default:
		return fmt.Errorf("board.backend must be %q or %q", "sim", "evdev")
	}

	// IPC / HTTP
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Listen == "" {
		return errors.New("http.listen must not be empty")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func (e *EvdevConfig) validate(inputsPerPlayer int) error {
	if len(e.Devices) == 0 {
		return errors.New("board.evdev.devices must not be empty")
	}
	for i, dev := range e.Devices {
		if dev == "" {
			return fmt.Errorf("board.evdev.devices[%d] is empty", i)
		}
	}
	if e.StartKey == 0 {
		return errors.New("board.evdev.start_key must be set")
	}
	if len(e.PlayerKeys) != numPlayers {
		return fmt.Errorf("board.evdev.player_keys must list %d players", numPlayers)
	}
	seen := map[uint16]string{e.StartKey: "start_key"}
	for p, keys := range e.PlayerKeys {
		if len(keys) != inputsPerPlayer {
			return fmt.Errorf("board.evdev.player_keys[%d] must have %d keys (game.inputs_per_player)", p, inputsPerPlayer)
		}
		for i, k := range keys {
			name := fmt.Sprintf("player_keys[%d][%d]", p, i)
			if k == 0 || int(k) >= keyBitmapBytes*8 {
				return fmt.Errorf("board.evdev.%s: invalid key code %d", name, k)
			}
			if prev, dup := seen[k]; dup {
				return fmt.Errorf("board.evdev.%s: key %d already used by %s", name, k, prev)
			}
			seen[k] = name
		}
	}
	return nil
}

// ToGameConfig converts file config into the engine config.
func (c *Config) ToGameConfig() GameConfig {
	return GameConfig{
		InputsPerPlayer:  c.Game.InputsPerPlayer,
		SequenceCapacity: c.Game.SequenceCapacity,
		Debounce: DebounceConfig{
			Window:  c.Game.DebounceWindowTicks,
			Modulus: c.Clock.Modulus,
		},
		Clock: ClockConfig{
			Modulus:             c.Clock.Modulus,
			HalfSecondsPerEpoch: c.Clock.HalfSecondsPerEpoch,
		},
		Handoff: Handoff(c.Game.Handoff),
	}
}

// TickInterval is the period of the tick producer.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Clock.TickIntervalUS) * time.Microsecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
