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
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Lets external clients (handvol-ctl, scripts, a recognizer running elsewhere)
// feed frames and gestures to the daemon and read its state.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "frame"|"gesture"|"get_state", "data": {...}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//   - get_state responds with {"status": "ok", "state": {...}}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string         `json:"status"`          // "ok" or "error"
	Error  string         `json:"error,omitempty"` // error message if status == "error"
	State  *StateSnapshot `json:"state,omitempty"`
}

// ipcSnapshotTimeout bounds a get_state round trip through the daemon loop.
const ipcSnapshotTimeout = time.Second

// ipcEnqueueTimeout bounds how long a client waits for room in the event queue.
const ipcEnqueueTimeout = 250 * time.Millisecond

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	socketPath = ExpandPath(socketPath)

	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection serves one client until it disconnects.
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameLine)
	encoder := json.NewEncoder(conn)

	reply := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err, "status", resp.Status)
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "bytes", len(line))

		var env EventEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			reply(IPCResponse{Status: "error", Error: fmt.Sprintf("parse envelope: %v", err)})
			continue
		}

		if env.Type == envelopeGetState {
			snap, err := requestSnapshot(ctx, events)
			if err != nil {
				reply(IPCResponse{Status: "error", Error: err.Error()})
				continue
			}
			reply(IPCResponse{Status: "ok", State: &snap})
			continue
		}

		// Payload events only; the daemon assigns timestamps via TimedEvent.
		ev, err := decodeEnvelope(env)
		if err != nil {
			reply(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}

		// Wait briefly for room so a fast feeder is slowed down rather than dropped.
		select {
		case events <- ev:
			reply(IPCResponse{Status: "ok"})
		case <-ctx.Done():
			return
		case <-time.After(ipcEnqueueTimeout):
			reply(IPCResponse{Status: "error", Error: "event queue full"})
		}
	}

	logger.Debug("IPC connection closed")
}

// requestSnapshot asks the daemon loop for a StateSnapshot.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, ipcSnapshotTimeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		return StateSnapshot{}, fmt.Errorf("request state: %w", ctx.Err())
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, fmt.Errorf("await state: %w", ctx.Err())
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// IPCClient is a persistent connection to the daemon's IPC socket.
type IPCClient struct {
	conn net.Conn
	dec  *json.Decoder
}

// DialIPC connects to the daemon.
func DialIPC(socketPath string) (*IPCClient, error) {
	conn, err := net.Dial("unix", ExpandPath(socketPath))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return &IPCClient{conn: conn, dec: json.NewDecoder(conn)}, nil
}

// Send writes one event and waits for the daemon's response.
func (c *IPCClient) Send(ev Event) error {
	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}
	return nil
}

func (c *IPCClient) Close() error { return c.conn.Close() }

// SendIPCEvent sends a single event to the daemon via IPC.
func SendIPCEvent(socketPath string, ev Event) error {
	c, err := DialIPC(socketPath)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Send(ev)
}
