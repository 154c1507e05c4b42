package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestIPC runs the IPC server in front of a real daemon loop.
func startTestIPC(t *testing.T) (string, *mockVolumeSink) {
	t.Helper()

	// Unix socket paths are length limited; t.TempDir can be too deep.
	dir, err := os.MkdirTemp("", "handvol")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "ipc.sock")

	sink := newMockVolumeSink()
	events := startTestDaemon(t, testControlConfig(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, socketPath, events, discardLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Errorf("IPC server did not stop")
		}
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "IPC socket not created")
	return socketPath, sink
}

func TestIPC_FeedFramesAndReadState(t *testing.T) {
	socketPath, sink := startTestIPC(t)

	client, err := DialIPC(socketPath)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(GestureObserved{Gesture: GesturePinch, Origin: "ipc"}))
	for _, d := range []float64{140, 141, 142, 143, 144} {
		require.NoError(t, client.Send(FrameObserved{Frame: distanceFrame(GestureNone, d)}))
	}

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"type":"get_state"}` + "\n"))
	require.NoError(t, err)

	var resp IPCResponse
	require.NoError(t, json.NewDecoder(bufio.NewReader(conn)).Decode(&resp))
	require.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.State)
	assert.True(t, resp.State.Activated)
	assert.Equal(t, 60, resp.State.Volume)
	assert.Equal(t, []int{50, 60}, sink.Calls())
}

func TestIPC_RejectsBadInput(t *testing.T) {
	socketPath, _ := startTestIPC(t)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	dec := json.NewDecoder(conn)

	for _, line := range []string{`not json`, `{"type":"reboot","data":{}}`} {
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)

		var resp IPCResponse
		require.NoError(t, dec.Decode(&resp))
		assert.Equal(t, "error", resp.Status, "line %q", line)
		assert.NotEmpty(t, resp.Error)
	}
}

func TestSendIPCEvent_NoDaemon(t *testing.T) {
	err := SendIPCEvent(filepath.Join(t.TempDir(), "missing.sock"), GestureObserved{Gesture: GesturePinch})
	assert.Error(t, err)
}
