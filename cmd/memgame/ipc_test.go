package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startIPC runs the IPC server with a stand-in game loop that answers
// snapshot requests and forwards every other event to the returned channel.
func startIPC(t *testing.T) (socketPath string, forwarded <-chan Event) {
	t.Helper()

	socketPath = filepath.Join(t.TempDir(), "memgame.sock")
	events := make(chan Event, 8)
	out := make(chan Event, 8)

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- runIPCServer(ctx, socketPath, events, 3, discardLogger()) }()

	s := NewGameSession(testGameConfig())
	s.Turn = Player2Active
	require.NoError(t, s.Sequence.Append(1))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if req, ok := ev.(RequestStateSnapshot); ok {
					req.Reply <- s.Snapshot(time.Now())
					continue
				}
				out <- ev
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-serverDone:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatalf("IPC server did not stop")
		}
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "IPC socket not created")

	return socketPath, out
}

func TestIPC_SetInputForwarded(t *testing.T) {
	sock, forwarded := startIPC(t)

	resp, err := SendIPCEvent(sock, SetInput{Player: 2, Input: 1, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	select {
	case ev := <-forwarded:
		assert.Equal(t, SetInput{Player: 2, Input: 1, Active: true}, ev)
	case <-time.After(time.Second):
		t.Fatalf("event not forwarded")
	}
}

func TestIPC_SetInputOutOfRange(t *testing.T) {
	sock, forwarded := startIPC(t)

	tests := []struct {
		ev   SetInput
		want string
	}{
		{SetInput{Player: 0, Input: 0}, "player 0 out of range [1,2]"},
		{SetInput{Player: 3, Input: 0}, "player 3 out of range [1,2]"},
		{SetInput{Player: 1, Input: 3}, "input 3 out of range [0,3)"},
		{SetInput{Player: 1, Input: -1}, "input -1 out of range [0,3)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			resp, err := SendIPCEvent(sock, tt.ev)
			require.Error(t, err)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.want, resp.Error)
		})
	}

	assert.Empty(t, forwarded)
}

func TestIPC_GetStateReturnsSnapshot(t *testing.T) {
	sock, _ := startIPC(t)

	resp, err := SendIPCEvent(sock, GetState{})
	require.NoError(t, err)
	require.NotNil(t, resp.State)

	assert.Equal(t, "player2", resp.State.Turn)
	assert.Equal(t, []int{1}, resp.State.Sequence)
	assert.Equal(t, defaultSequenceCapacity, resp.State.Capacity)
	require.Len(t, resp.State.Players, numPlayers)
	assert.Len(t, resp.State.Players[0].Inputs, 3)
}

func TestIPC_BadLinesKeepConnectionOpen(t *testing.T) {
	sock, forwarded := startIPC(t)

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	r := bufio.NewReader(conn)
	roundTrip := func(line string) IPCResponse {
		t.Helper()
		_, err := fmt.Fprintf(conn, "%s\n", line)
		require.NoError(t, err)
		reply, err := r.ReadBytes('\n')
		require.NoError(t, err)
		var resp IPCResponse
		require.NoError(t, json.Unmarshal(reply, &resp))
		return resp
	}

	resp := roundTrip(`{"type":"explode"}`)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unknown event type")

	resp = roundTrip(`not json`)
	assert.Equal(t, "error", resp.Status)

	resp = roundTrip(`{"type":"reset_game"}`)
	assert.Equal(t, "ok", resp.Status)

	select {
	case ev := <-forwarded:
		assert.Equal(t, ResetGame{}, ev)
	case <-time.After(time.Second):
		t.Fatalf("reset_game not forwarded")
	}
}
