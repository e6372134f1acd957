package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerSnapshots stands in for the game loop: it replies to every snapshot
// request with a snapshot of s.
func answerSnapshots(ctx context.Context, events <-chan Event, s *GameSession) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if req, ok := ev.(RequestStateSnapshot); ok {
				req.Reply <- s.Snapshot(time.Now())
			}
		}
	}
}

func newTestHTTP(t *testing.T, s *GameSession) (*httptest.Server, *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := make(chan Event, 8)
	go answerSnapshots(ctx, events, s)

	ws := NewServer(discardLogger(), events, HubConfig{})
	go ws.Hub().Run(ctx)

	srv := httptest.NewServer(newHTTPHandler(ws, events, discardLogger()))
	t.Cleanup(srv.Close)
	return srv, ws
}

func TestHTTP_Healthz(t *testing.T) {
	srv, _ := newTestHTTP(t, NewGameSession(testGameConfig()))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestHTTP_State(t *testing.T) {
	s := NewGameSession(testGameConfig())
	s.StartGame()
	s.Players[0].Inputs[1].Valid = Active
	s.Indicators[IndicatorPress] = true

	srv, _ := newTestHTTP(t, s)

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got wireSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "player1", got.Turn)
	assert.Equal(t, []int{}, got.Sequence)
	assert.Equal(t, "active", got.Players[0].Inputs[1].Valid)
	assert.Equal(t, "inactive", got.Players[1].Inputs[1].Valid)
	assert.Equal(t, map[string]bool{"press": true, "heartbeat": false}, got.Indicators)
	assert.Equal(t, 1, got.Stats.GamesPlayed)
	assert.Nil(t, got.Stats.LastEndAt)
}

func TestHTTP_StateUnavailableWithoutLoop(t *testing.T) {
	handler := newHTTPHandler(NewServer(discardLogger(), nil, HubConfig{}), nil, discardLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTP_StateWebsocket(t *testing.T) {
	s := NewGameSession(testGameConfig())
	srv, ws := newTestHTTP(t, s)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame := func() (string, json.RawMessage) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &env))
		return env.Type, env.Data
	}

	typ, data := readFrame()
	require.Equal(t, "state_init", typ)
	var init wireSnapshot
	require.NoError(t, json.Unmarshal(data, &init))
	assert.Equal(t, "idle", init.Turn)

	waitUntil(t, time.Second, func() bool { return ws.Hub().ClientCount() == 1 }, "client not registered")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 1)
	go RunBroadcaster(ctx, ws.Hub(), src, discardLogger())

	src <- BroadcastTurnChanged{From: Idle, To: Player1Active, At: time.Now()}

	typ, data = readFrame()
	require.Equal(t, "turn_changed", typ)
	var tc wsTurnChangedData
	require.NoError(t, json.Unmarshal(data, &tc))
	assert.Equal(t, wsTurnChangedData{From: "idle", To: "player1"}, tc)
}

func TestHTTP_StateWebsocketDropsClientWithoutSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No game loop: the state_init snapshot cannot be produced.
	ws := NewServer(discardLogger(), nil, HubConfig{})
	go ws.Hub().Run(ctx)

	srv := httptest.NewServer(newHTTPHandler(ws, nil, discardLogger()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatalf("connection left open without state_init")
	}

	waitUntil(t, time.Second, func() bool { return ws.Hub().ClientCount() == 0 }, "client still registered")
}
