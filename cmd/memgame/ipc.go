package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// External tools (memgame-ctl, test rigs) drive the simulated board and read
// state through this socket.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "event_name", "data": {...}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//   - get_state responds with {"status": "ok", "state": {...}}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string        `json:"status"`          // "ok" or "error"
	Error  string        `json:"error,omitempty"` // error message if status == "error"
	State  *wireSnapshot `json:"state,omitempty"`
}

// ipcServer holds what connection handlers need.
type ipcServer struct {
	events          chan<- Event
	inputsPerPlayer int
	logger          *slog.Logger
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, inputsPerPlayer int, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	srv := &ipcServer{events: events, inputsPerPlayer: inputsPerPlayer, logger: logger}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go srv.handleConnection(ctx, conn)
	}
}

// handleConnection serves one client until it disconnects.
func (s *ipcServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		s.logger.Debug("IPC received", "line", line)

		resp := s.handleLine(ctx, []byte(line))
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	s.logger.Debug("IPC connection closed")
}

func (s *ipcServer) handleLine(ctx context.Context, line []byte) IPCResponse {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		return ipcError(fmt.Errorf("parse event: %w", err))
	}

	switch e := ev.(type) {
	case GetState:
		snap, err := requestSnapshot(ctx, s.events)
		if err != nil {
			return ipcError(err)
		}
		w := toWireSnapshot(snap)
		return IPCResponse{Status: "ok", State: &w}

	case SetInput:
		if e.Player < 1 || e.Player > numPlayers {
			return ipcError(fmt.Errorf("player %d out of range [1,%d]", e.Player, numPlayers))
		}
		if e.Input < 0 || e.Input >= s.inputsPerPlayer {
			return ipcError(fmt.Errorf("input %d out of range [0,%d)", e.Input, s.inputsPerPlayer))
		}
	}

	select {
	case s.events <- ev:
		return IPCResponse{Status: "ok"}
	default:
		return IPCResponse{Status: "error", Error: "event queue full"}
	}
}

func ipcError(err error) IPCResponse {
	return IPCResponse{Status: "error", Error: err.Error()}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and returns the response.
func SendIPCEvent(socketPath string, ev Event) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}

	return resp, nil
}
