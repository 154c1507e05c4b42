package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockVolumeSink is a test double for VolumeSink.
type mockVolumeSink struct {
	mu      sync.Mutex
	calls   []int
	failFor map[int]error
	closed  bool
}

func newMockVolumeSink() *mockVolumeSink {
	return &mockVolumeSink{failFor: make(map[int]error)}
}

func (m *mockVolumeSink) SetVolume(ctx context.Context, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, volume)
	if err := m.failFor[volume]; err != nil {
		return &SinkError{Sink: "mock", Volume: volume, Err: err}
	}
	return nil
}

func (m *mockVolumeSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockVolumeSink) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestDaemon runs the daemon loop until the test ends.
func startTestDaemon(t *testing.T, cfg ControlConfig, sink VolumeSink, broadcasts chan StateBroadcast) chan<- Event {
	t.Helper()
	s := newTestSession(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, sink, s, broadcasts, discardLogger())
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return events
}

// snapshotVia asks the daemon for state. The reply proves all earlier events were handled.
func snapshotVia(t *testing.T, events chan<- Event) StateSnapshot {
	t.Helper()
	snap, err := requestSnapshot(context.Background(), events)
	if err != nil {
		t.Fatalf("requestSnapshot: %v", err)
	}
	return snap
}

func TestDaemon_StepEndToEnd(t *testing.T) {
	sink := newMockVolumeSink()
	events := startTestDaemon(t, testControlConfig(), sink, nil)

	events <- GestureObserved{Gesture: GesturePinch}
	for _, d := range []float64{140, 141, 142, 143, 144, 145} {
		events <- FrameObserved{Frame: distanceFrame(GestureNone, d)}
	}

	snap := snapshotVia(t, events)

	calls := sink.Calls()
	if len(calls) != 2 || calls[0] != 50 || calls[1] != 60 {
		t.Fatalf("expected SetVolume calls [50 60] (startup sync, step), got %v", calls)
	}
	if snap.Volume != 60 {
		t.Errorf("expected volume 60, got %d", snap.Volume)
	}
	if snap.DeliveredVolume == nil || *snap.DeliveredVolume != 60 {
		t.Errorf("expected delivered volume 60, got %v", snap.DeliveredVolume)
	}
	if snap.TrajectoryLen != 1 {
		t.Errorf("expected 1 buffered sample, got %d", snap.TrajectoryLen)
	}
}

func TestDaemon_SinkFailureIsNotRetried(t *testing.T) {
	sink := newMockVolumeSink()
	sink.failFor[60] = errors.New("device gone")
	events := startTestDaemon(t, testControlConfig(), sink, nil)

	events <- GestureObserved{Gesture: GesturePinch}
	for _, d := range []float64{140, 141, 142, 143, 144} {
		events <- FrameObserved{Frame: distanceFrame(GestureNone, d)}
	}

	snap := snapshotVia(t, events)

	calls := sink.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected exactly 2 SetVolume calls, got %v", calls)
	}
	if snap.Volume != 60 {
		t.Errorf("expected session volume to stay at 60, got %d", snap.Volume)
	}
	if snap.SinkFailures != 1 || snap.LastSinkError == "" {
		t.Errorf("expected one recorded sink failure, got %d %q", snap.SinkFailures, snap.LastSinkError)
	}
	if snap.DeliveredVolume == nil || *snap.DeliveredVolume != 50 {
		t.Errorf("expected last delivered volume 50, got %v", snap.DeliveredVolume)
	}
}

func TestDaemon_PublishesBroadcasts(t *testing.T) {
	sink := newMockVolumeSink()
	broadcasts := make(chan StateBroadcast, 32)
	events := startTestDaemon(t, testControlConfig(), sink, broadcasts)

	events <- GestureObserved{Gesture: GesturePinch}
	snapshotVia(t, events)

	var sawActivation bool
	deadline := time.After(time.Second)
	for !sawActivation {
		select {
		case b := <-broadcasts:
			if a, ok := b.(BroadcastActivationChanged); ok && a.Activated {
				sawActivation = true
			}
		case <-deadline:
			t.Fatal("activation broadcast not published")
		}
	}
}

func TestDaemon_NilSinkRecordsFailure(t *testing.T) {
	events := startTestDaemon(t, testControlConfig(), nil, nil)

	snap := snapshotVia(t, events)
	if snap.SinkFailures != 1 {
		t.Fatalf("expected the startup sync to fail without a sink, got %d failures", snap.SinkFailures)
	}
}

func TestRunEffect_NilSinkReportsSinkError(t *testing.T) {
	var got []Event
	runEffect(context.Background(), nil, CmdSetVolume{Volume: 40}, discardLogger(), func(ev Event) {
		got = append(got, ev)
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	failed, ok := got[0].(SinkCommandFailed)
	if !ok {
		t.Fatalf("expected SinkCommandFailed, got %T", got[0])
	}
	var se *SinkError
	if !errors.As(failed.Err, &se) {
		t.Fatalf("expected *SinkError, got %T", failed.Err)
	}
	if se.Volume != 40 {
		t.Errorf("expected volume 40, got %d", se.Volume)
	}
	var noSink errNoSink
	if !errors.As(failed.Err, &noSink) {
		t.Errorf("expected errNoSink to be wrapped, got %v", failed.Err)
	}
}

func TestDaemon_StopsWhenEventsClosed(t *testing.T) {
	s := newTestSession(t, testControlConfig())
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(context.Background(), events, newMockVolumeSink(), s, nil, discardLogger())
	}()

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop after events were closed")
	}
}
