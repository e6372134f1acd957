package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's websocket frame.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL         = flag.String("ws", "ws://127.0.0.1:3002/ws/state", "memgame state websocket URL")
		raw           = flag.Bool("raw", false, "Print frames as received")
		showHeartbeat = flag.Bool("heartbeat", false, "Also print heartbeat indicator toggles")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// The daemon pings every 20s; answer within its pong window and keep our
	// own read deadline a bit longer.
	var writeMu sync.Mutex
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			printFrame(message, *showHeartbeat)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// printFrame renders one frame as a single human-readable line.
func printFrame(message []byte, showHeartbeat bool) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	ts := ""
	if env.Ts != nil {
		ts = env.Ts.Local().Format("15:04:05.000") + " "
	}

	switch env.Type {
	case "state_init":
		var s struct {
			Turn     string `json:"turn"`
			Sequence []int  `json:"sequence"`
			Stats    struct {
				GamesPlayed int `json:"games_played"`
				BestLength  int `json:"best_length"`
			} `json:"stats"`
		}
		if json.Unmarshal(env.Data, &s) == nil {
			fmt.Printf("%s[STATE] turn=%s sequence=%v games=%d best=%d\n",
				ts, s.Turn, s.Sequence, s.Stats.GamesPlayed, s.Stats.BestLength)
			return
		}

	case "turn_changed":
		var d struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("%s[TURN] %s -> %s\n", ts, d.From, d.To)
			return
		}

	case "turn_outcome":
		var d struct {
			Player  int    `json:"player"`
			Outcome string `json:"outcome"`
			Input   int    `json:"input"`
			Length  int    `json:"length"`
			Cursor  int    `json:"cursor"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("%s[OUTCOME] player %d pressed %d: %s (length=%d cursor=%d)\n",
				ts, d.Player, d.Input, d.Outcome, d.Length, d.Cursor)
			return
		}

	case "input_confirmed":
		var d struct {
			Player int    `json:"player"`
			Input  int    `json:"input"`
			Level  string `json:"level"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("%s[INPUT] player %d input %d %s\n", ts, d.Player, d.Input, d.Level)
			return
		}

	case "indicator_changed":
		var d struct {
			Indicator string `json:"indicator"`
			On        bool   `json:"on"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			if d.Indicator == "heartbeat" && !showHeartbeat {
				return
			}
			fmt.Printf("%s[LED] %s on=%v\n", ts, d.Indicator, d.On)
			return
		}

	case "tick_overrun":
		var d struct {
			Missed uint64 `json:"missed"`
		}
		if json.Unmarshal(env.Data, &d) == nil {
			fmt.Printf("%s[OVERRUN] %d ticks dropped\n", ts, d.Missed)
			return
		}
	}

	fmt.Printf("%s[%s] %s\n", ts, env.Type, string(env.Data))
}
