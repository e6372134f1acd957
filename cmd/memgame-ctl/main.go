package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// memgame-ctl - Command-line IPC Client
// ============================================================================
// Drives the simulated board of a running memgame daemon and reads its state.
//
// Usage:
//   memgame-ctl start
//   memgame-ctl tap 1 2
//   memgame-ctl press 2 0
//   memgame-ctl release 2 0
//   memgame-ctl reset
//   memgame-ctl state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/memgame.sock)
// ============================================================================

// Event types (duplicated from the daemon for a standalone binary)
type Event interface{}

type SetInput struct {
	Player int  `json:"player"`
	Input  int  `json:"input"`
	Active bool `json:"active"`
}

type SetStart struct {
	Active bool `json:"active"`
}

type ResetGame struct{}

type GetState struct{}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

func main() {
	fs := flag.NewFlagSet("memgame-ctl", flag.ExitOnError)
	socketPath := fs.String("socket", "/tmp/memgame.sock", "Unix domain socket path")
	holdMS := fs.Int("hold-ms", 50, "How long tap/start hold the input before releasing (ms)")
	fs.Usage = printUsage
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	hold := time.Duration(*holdMS) * time.Millisecond

	var err error
	switch args[0] {
	case "press", "release", "tap":
		var player, input int
		player, input, err = parsePlayerInput(args[1:])
		if err != nil {
			break
		}
		switch args[0] {
		case "press":
			_, err = send(*socketPath, SetInput{Player: player, Input: input, Active: true})
		case "release":
			_, err = send(*socketPath, SetInput{Player: player, Input: input, Active: false})
		default:
			err = pulse(*socketPath, hold,
				SetInput{Player: player, Input: input, Active: true},
				SetInput{Player: player, Input: input, Active: false})
		}

	case "start":
		err = pulse(*socketPath, hold, SetStart{Active: true}, SetStart{Active: false})

	case "reset":
		_, err = send(*socketPath, ResetGame{})

	case "state":
		var resp IPCResponse
		resp, err = send(*socketPath, GetState{})
		if err == nil {
			var out bytes.Buffer
			if jerr := json.Indent(&out, resp.State, "", "  "); jerr != nil {
				fmt.Println(string(resp.State))
			} else {
				fmt.Println(out.String())
			}
			return
		}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func parsePlayerInput(args []string) (player, input int, err error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("requires <player> <input>")
	}
	if player, err = strconv.Atoi(args[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid player %q: %w", args[0], err)
	}
	if input, err = strconv.Atoi(args[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid input %q: %w", args[1], err)
	}
	return player, input, nil
}

// pulse sends down, waits hold, then sends up. hold should exceed the
// daemon's debounce window or the press is rejected as a glitch.
func pulse(socketPath string, hold time.Duration, down, up Event) error {
	if _, err := send(socketPath, down); err != nil {
		return err
	}
	time.Sleep(hold)
	_, err := send(socketPath, up)
	return err
}

func send(socketPath string, ev Event) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalEvent(ev)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return response, fmt.Errorf("daemon error: %s", response.Error)
	}

	return response, nil
}

func marshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
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
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `memgame-ctl - Drive a memgame daemon via IPC

Usage:
  memgame-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/memgame.sock)
  -hold-ms N      Hold time for tap/start in ms (default: 50)

Commands:
  start                       Press and release the start button
  tap <player> <input>        Press and release a player input
  press <player> <input>      Hold a player input down
  release <player> <input>    Release a player input
  reset                       Abandon the current game
  state                       Print the current game state as JSON
  help, -h, --help            Show this help message

Players are 1 or 2; inputs count from 0.

Examples:
  memgame-ctl start
  memgame-ctl tap 1 2
  memgame-ctl -socket /run/memgame.sock state
`)
}
