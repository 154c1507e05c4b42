package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// handvol-ctl - Command-line IPC Client
// ============================================================================
// Sends gestures and synthetic frames to the handvol daemon over its Unix
// socket, and prints the daemon state.
//
// Usage:
//   handvol-ctl activate
//   handvol-ctl deactivate
//   handvol-ctl gesture "C shape"
//   handvol-ctl frame '{"gesture":"none","hands":[{"landmarks":[...]}]}'
//   handvol-ctl sweep 140 150 10
//   handvol-ctl state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/handvol.sock)
// ============================================================================

// Wire types (duplicated from the daemon for a standalone binary)

type gestureEvent struct {
	Gesture string `json:"gesture"`
	Origin  string `json:"origin"`
}

type hand struct {
	Landmarks [][]float64 `json:"landmarks"`
}

type frame struct {
	Gesture string `json:"gesture"`
	Hands   []hand `json:"hands"`
}

// eventEnvelope wraps requests for JSON
type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ipcResponse represents the daemon's response
type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

// Fingertip landmark indices the daemon measures by default.
const (
	tipA = 4
	tipB = 8
)

func main() {
	socketPath := "/tmp/handvol.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var reqs []eventEnvelope

	switch args[0] {
	case "activate", "pinch":
		reqs = append(reqs, mustEnvelope("gesture", gestureEvent{Gesture: "pinch", Origin: "handvol-ctl"}))

	case "deactivate", "c-shape":
		reqs = append(reqs, mustEnvelope("gesture", gestureEvent{Gesture: "c_shape", Origin: "handvol-ctl"}))

	case "gesture":
		if len(args) < 2 {
			fail("gesture requires a label")
		}
		reqs = append(reqs, mustEnvelope("gesture", gestureEvent{Gesture: args[1], Origin: "handvol-ctl"}))

	case "frame":
		if len(args) < 2 {
			fail("frame requires a JSON object")
		}
		if !json.Valid([]byte(args[1])) {
			fail("frame is not valid JSON")
		}
		reqs = append(reqs, eventEnvelope{Type: "frame", Data: json.RawMessage(args[1])})

	case "sweep":
		if len(args) < 4 {
			fail("sweep requires <from> <to> <count>")
		}
		from, err1 := strconv.ParseFloat(args[1], 64)
		to, err2 := strconv.ParseFloat(args[2], 64)
		n, err3 := strconv.Atoi(args[3])
		if err1 != nil || err2 != nil || err3 != nil || n < 1 {
			fail("sweep: invalid arguments")
		}
		for i := 0; i < n; i++ {
			d := from
			if n > 1 {
				d = from + (to-from)*float64(i)/float64(n-1)
			}
			reqs = append(reqs, mustEnvelope("frame", syntheticFrame(d)))
		}

	case "state", "status":
		reqs = append(reqs, eventEnvelope{Type: "get_state"})

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	state, err := send(socketPath, reqs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if state != nil {
		var pretty any
		if err := json.Unmarshal(state, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
		fmt.Println(string(state))
		return
	}
	fmt.Println("ok")
}

// syntheticFrame is a hand whose tracked fingertips lie d apart on the x axis.
func syntheticFrame(d float64) frame {
	lm := make([][]float64, 21)
	for i := range lm {
		lm[i] = []float64{0, 0}
	}
	lm[tipB] = []float64{d, 0}
	return frame{Gesture: "none", Hands: []hand{{Landmarks: lm}}}
}

// send writes each request over one connection and returns the last state, if any.
func send(socketPath string, reqs []eventEnvelope) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	decoder := json.NewDecoder(conn)

	var state json.RawMessage
	for _, req := range reqs {
		data, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", req.Type, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return nil, fmt.Errorf("send %s: %w", req.Type, err)
		}
		if err := w.Flush(); err != nil {
			return nil, fmt.Errorf("send %s: %w", req.Type, err)
		}

		var response ipcResponse
		if err := decoder.Decode(&response); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if response.Status == "error" {
			return nil, fmt.Errorf("daemon error: %s", response.Error)
		}
		if len(response.State) > 0 {
			state = response.State
		}
	}
	return state, nil
}

func mustEnvelope(typ string, v any) eventEnvelope {
	data, err := json.Marshal(v)
	if err != nil {
		fail(fmt.Sprintf("marshal %s: %v", typ, err))
	}
	return eventEnvelope{Type: typ, Data: data}
}

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `handvol-ctl - Control the handvol daemon via IPC

Usage:
  handvol-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/handvol.sock)

Commands:
  activate, pinch             Send a pinch gesture (enables control)
  deactivate, c-shape         Send a C-shape gesture (disables control)
  gesture <label>             Send any detector label
  frame <json>                Send one frame object as the recognizer would
  sweep <from> <to> <count>   Send count frames with fingertip distance moving from -> to
  state, status               Print the daemon state
  help, -h, --help            Show this help message

Examples:
  handvol-ctl activate
  handvol-ctl sweep 140 150 10
  handvol-ctl -socket /run/handvol.sock state
`)
}
