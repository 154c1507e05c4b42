package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrames_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"gesture":"pinch"}`,
		`garbage`,
		``,
		`{"type":"gesture","data":{"gesture":"c_shape"}}`,
		`{"type":"bogus","data":{}}`,
		`{"gesture":"none","hands":[{"landmarks":[[0,0],[1,1]]}]}`,
	}, "\n")

	events := make(chan Event, 8)
	err := readFrames(context.Background(), strings.NewReader(input), events, "test", discardLogger())
	require.True(t, errors.Is(err, errSourceClosed), "got %v", err)

	close(events)
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, GesturePinch, got[0].(FrameObserved).Frame.Gesture)
	assert.Equal(t, GestureObserved{Gesture: GestureCShape}, got[1])
	assert.Len(t, got[2].(FrameObserved).Frame.Hands, 1)
}

func TestReadFrames_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event) // never drained

	done := make(chan error, 1)
	go func() {
		done <- readFrames(ctx, strings.NewReader(`{"gesture":"pinch"}`+"\n"), events, "test", discardLogger())
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("readFrames did not return after cancel")
	}
}

func TestRunRecognizer_StreamsStdout(t *testing.T) {
	events := make(chan Event, 4)
	argv := []string{"sh", "-c", `echo '{"gesture":"pinch"}'; echo 'warming up' >&2`}

	err := runRecognizer(context.Background(), argv, events, discardLogger())
	assert.EqualError(t, err, "recognizer process exited")

	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, GesturePinch, ev.(FrameObserved).Frame.Gesture)
}

func TestRunRecognizer_ProcessFailure(t *testing.T) {
	events := make(chan Event, 1)
	err := runRecognizer(context.Background(), []string{"sh", "-c", "exit 3"}, events, discardLogger())
	assert.ErrorContains(t, err, "recognizer process failed")
}

func TestRunRecognizer_EmptyCommand(t *testing.T) {
	err := runRecognizer(context.Background(), nil, make(chan Event), discardLogger())
	assert.Error(t, err)
}
