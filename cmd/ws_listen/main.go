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

// ws_listen follows a handvol daemon's /ws/state stream and prints one line per event.

type message struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3011/ws/state", "handvol state websocket URL")
		raw   = flag.Bool("raw", false, "Print messages as received")
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

	var writeMu sync.Mutex

	// The daemon pings every 20s; answering keeps the read deadline moving.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(data))
				continue
			}
			if *raw {
				fmt.Println(string(data))
				continue
			}
			printMessage(data)
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

// printMessage renders a state event on one line.
func printMessage(data []byte) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		fmt.Printf("[TEXT] %s\n", string(data))
		return
	}
	ts := m.Ts.Local().Format("15:04:05.000")

	switch m.Type {
	case "state_init":
		var s struct {
			SessionID string `json:"session_id"`
			Mode      string `json:"mode"`
			Activated bool   `json:"activated"`
			Volume    int    `json:"volume"`
		}
		_ = json.Unmarshal(m.Data, &s)
		fmt.Printf("%s [STATE] session=%s mode=%s activated=%t volume=%d\n", ts, s.SessionID, s.Mode, s.Activated, s.Volume)

	case "volume_changed":
		var v struct {
			Volume int `json:"volume"`
		}
		_ = json.Unmarshal(m.Data, &v)
		fmt.Printf("%s [VOLUME] %d\n", ts, v.Volume)

	case "activation_changed":
		var a struct {
			Activated bool `json:"activated"`
		}
		_ = json.Unmarshal(m.Data, &a)
		status := "DEACTIVATED"
		if a.Activated {
			status = "ACTIVATED"
		}
		fmt.Printf("%s [ACTIVATION] %s\n", ts, status)

	case "step_committed":
		var s struct {
			Direction string `json:"direction"`
			Volume    int    `json:"volume"`
			Changed   bool   `json:"changed"`
		}
		_ = json.Unmarshal(m.Data, &s)
		suffix := ""
		if !s.Changed {
			suffix = " (at limit)"
		}
		fmt.Printf("%s [STEP] %s -> %d%s\n", ts, s.Direction, s.Volume, suffix)

	case "zone_changed":
		var z struct {
			Zone     string  `json:"zone"`
			Distance float64 `json:"distance"`
		}
		_ = json.Unmarshal(m.Data, &z)
		fmt.Printf("%s [ZONE] %s (%.1f)\n", ts, z.Zone, z.Distance)

	case "sink_failed":
		var f struct {
			Volume int    `json:"volume"`
			Error  string `json:"error"`
		}
		_ = json.Unmarshal(m.Data, &f)
		fmt.Printf("%s [SINK ERROR] volume=%d: %s\n", ts, f.Volume, f.Error)

	default:
		pretty, _ := json.MarshalIndent(m, "", "  ")
		fmt.Printf("%s [%s]\n%s\n", ts, m.Type, string(pretty))
	}
}
