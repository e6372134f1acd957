package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameLoop runs runGame on a sim board with unbuffered tick and event
// channels. A send returns once the loop has received it, which means every
// earlier send was fully handled; call sync before looking at the board or
// the broadcasts produced by the last send.
type gameLoop struct {
	t          *testing.T
	board      *simBoard
	ticks      chan struct{}
	events     chan Event
	broadcasts chan StateBroadcast
	overruns   atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func startGameLoop(t *testing.T, cfg GameConfig) *gameLoop {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	g := &gameLoop{
		t:          t,
		board:      newSimBoard(numPlayers*cfg.InputsPerPlayer, discardLogger()),
		ticks:      make(chan struct{}),
		events:     make(chan Event),
		broadcasts: make(chan StateBroadcast, 1024),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go func() {
		defer close(g.done)
		runGame(ctx, g.ticks, g.events, g.board, cfg, NewGameSession(cfg), g.broadcasts, &g.overruns, discardLogger())
	}()

	t.Cleanup(g.stop)
	return g
}

func (g *gameLoop) stop() {
	g.cancel()
	select {
	case <-g.done:
	case <-time.After(time.Second):
		g.t.Fatalf("game loop did not stop")
	}
}

func (g *gameLoop) send(ev Event) {
	select {
	case g.events <- ev:
	case <-time.After(time.Second):
		g.t.Fatalf("game loop not accepting events")
	}
}

func (g *gameLoop) tick(n int) {
	for i := 0; i < n; i++ {
		select {
		case g.ticks <- struct{}{}:
		case <-time.After(time.Second):
			g.t.Fatalf("game loop not accepting ticks")
		}
	}
}

func (g *gameLoop) snapshot() StateSnapshot {
	reply := make(chan StateSnapshot, 1)
	g.send(RequestStateSnapshot{Reply: reply})
	select {
	case snap := <-reply:
		return snap
	case <-time.After(time.Second):
		g.t.Fatalf("no snapshot")
		return StateSnapshot{}
	}
}

// sync returns once the loop has finished everything sent so far. The
// snapshot request is only received after the previous tick or event is done.
func (g *gameLoop) sync() {
	g.snapshot()
}

func (g *gameLoop) drain() []StateBroadcast {
	var out []StateBroadcast
	for {
		select {
		case b := <-g.broadcasts:
			out = append(out, b)
		default:
			return out
		}
	}
}

func (g *gameLoop) tap(player, input int) {
	g.send(SetInput{Player: player, Input: input, Active: true})
	g.tick(10)
	g.send(SetInput{Player: player, Input: input, Active: false})
	g.tick(10)
}

func TestRunGame_PlaysThroughSimBoard(t *testing.T) {
	g := startGameLoop(t, testGameConfig())

	g.tick(3)
	require.Equal(t, Idle, g.snapshot().Turn)

	g.send(SetStart{Active: true})
	g.tick(1)
	g.send(SetStart{Active: false})
	require.Equal(t, Player1Active, g.snapshot().Turn)

	g.tap(1, 2)
	snap := g.snapshot()
	require.Equal(t, Player2Active, snap.Turn)
	require.Equal(t, []int{2}, snap.Sequence)

	g.tap(2, 2)
	g.tap(2, 1)
	snap = g.snapshot()
	assert.Equal(t, Player1Active, snap.Turn)
	assert.Equal(t, []int{2, 1}, snap.Sequence)

	g.tap(1, 0)
	snap = g.snapshot()
	assert.Equal(t, Idle, snap.Turn)
	assert.Equal(t, 1, snap.Stats.GamesPlayed)
	assert.Equal(t, 2, snap.Stats.BestLength)

	// Press indicator followed every confirmed press (4 presses: even).
	assert.False(t, g.board.Indicator(IndicatorPress))

	var outcomes []TurnOutcome
	for _, b := range g.drain() {
		if o, ok := b.(BroadcastTurnOutcome); ok {
			outcomes = append(outcomes, o.Outcome)
		}
	}
	assert.Equal(t, []TurnOutcome{Finished, Correct, Finished, GameOver}, outcomes)
}

func TestRunGame_OverrunsReportedOnNextTick(t *testing.T) {
	g := startGameLoop(t, testGameConfig())

	g.overruns.Store(4)
	g.tick(1)
	g.sync()

	var got []BroadcastTickOverrun
	for _, b := range g.drain() {
		if o, ok := b.(BroadcastTickOverrun); ok {
			got = append(got, o)
		}
	}
	require.Len(t, got, 1)
	assert.Equal(t, uint64(4), got[0].Missed)
	assert.Equal(t, uint64(0), g.overruns.Load())
}

func TestRunGame_HeartbeatAndReinitReachBoard(t *testing.T) {
	g := startGameLoop(t, testGameConfig())

	g.tick(500)
	g.sync()
	assert.True(t, g.board.Indicator(IndicatorHeartbeat))
	assert.Equal(t, 0, g.board.Reinits())

	g.tick(9500)
	g.sync()
	assert.Equal(t, 1, g.board.Reinits())
	assert.Equal(t, uint32(1), g.snapshot().Clock.TenSeconds)
}

func TestRunGame_StopsWhenEventsClosed(t *testing.T) {
	cfg := testGameConfig()
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runGame(context.Background(), nil, events, nil, cfg, NewGameSession(cfg), nil, nil, discardLogger())
	}()

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("game loop did not stop after events closed")
	}
}

func TestRunTickSource_CountsOverrunsWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan struct{}, 1)
	var overruns atomic.Uint64

	done := make(chan error, 1)
	go func() { done <- runTickSource(ctx, time.Millisecond, out, &overruns) }()

	waitUntil(t, time.Second, func() bool { return overruns.Load() >= 3 }, "overruns not counted")
	assert.Len(t, out, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("tick source did not stop")
	}
}
