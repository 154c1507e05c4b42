package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeFraction(t *testing.T) {
	assert.Equal(t, 0.0, volumeFraction(0))
	assert.Equal(t, 0.5, volumeFraction(50))
	assert.Equal(t, 1.0, volumeFraction(100))
	assert.Equal(t, 1.0, volumeFraction(140))
	assert.Equal(t, 0.0, volumeFraction(-3))
}

func TestCCValue(t *testing.T) {
	assert.Equal(t, uint8(0), ccValue(0))
	assert.Equal(t, uint8(64), ccValue(50))
	assert.Equal(t, uint8(127), ccValue(100))
}

func TestSinkTimeout(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, sinkTimeout(250))
	assert.Equal(t, time.Duration(defaultReadTimeoutMS)*time.Millisecond, sinkTimeout(0))
}

func TestLogSink(t *testing.T) {
	s, err := newVolumeSink(context.Background(), SinkConfig{Kind: SinkLog}, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetVolume(context.Background(), 30))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.SetVolume(ctx, 30)
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewVolumeSink_Unknown(t *testing.T) {
	_, err := newVolumeSink(context.Background(), SinkConfig{Kind: "alsa"}, discardLogger())
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestCommandSink_Render(t *testing.T) {
	s, err := NewCommandSink(CommandConfig{
		Argv: []string{"amixer", "set", "Master", "{{.Volume}}%", `{{ .Fraction | printf "%.2f" }}`, `{{ max .Volume 10 }}`},
	}, discardLogger())
	require.NoError(t, err)

	argv, err := s.render(5)
	require.NoError(t, err)
	assert.Equal(t, []string{"amixer", "set", "Master", "5%", "0.05", "10"}, argv)
}

func TestCommandSink_InvalidTemplate(t *testing.T) {
	_, err := NewCommandSink(CommandConfig{Argv: []string{"echo", "{{.Volume"}}, discardLogger())
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "sink.command.argv[1]", ce.Field)

	_, err = NewCommandSink(CommandConfig{}, discardLogger())
	assert.Error(t, err)
}

func TestCommandSink_SetVolume(t *testing.T) {
	s, err := NewCommandSink(CommandConfig{
		Argv:      []string{"sh", "-c", `test "$0" = 70`, "{{.Volume}}"},
		TimeoutMS: 2000,
	}, discardLogger())
	require.NoError(t, err)

	assert.NoError(t, s.SetVolume(context.Background(), 70))

	err = s.SetVolume(context.Background(), 71)
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, string(SinkCommand), se.Sink)
	assert.Equal(t, 71, se.Volume)
}

func TestCommandSink_StderrInError(t *testing.T) {
	s, err := NewCommandSink(CommandConfig{
		Argv:      []string{"sh", "-c", "echo no mixer >&2; exit 1"},
		TimeoutMS: 2000,
	}, discardLogger())
	require.NoError(t, err)

	err = s.SetVolume(context.Background(), 10)
	assert.ErrorContains(t, err, "no mixer")
}

func TestVolumeToDB(t *testing.T) {
	assert.Equal(t, -65.0, volumeToDB(0, -65, 0))
	assert.Equal(t, 0.0, volumeToDB(100, -65, 0))
	assert.InDelta(t, -65+65*0.740362689, volumeToDB(50, -65, 0), 1e-6)

	prev := volumeToDB(0, -65, 0)
	for v := 1; v <= 100; v++ {
		db := volumeToDB(v, -65, 0)
		require.Greater(t, db, prev, "volume %d", v)
		prev = db
	}
}

// fakeCamillaDSP answers SetVolume requests the way the CamillaDSP websocket API does.
type fakeCamillaDSP struct {
	mu     sync.Mutex
	got    []float64
	result string
	raw    string // sent verbatim instead of a JSON reply when set
}

func (f *fakeCamillaDSP) handler(t *testing.T) http.HandlerFunc {
	up := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req map[string]float64
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("bad request %s: %v", msg, err)
				return
			}
			f.mu.Lock()
			f.got = append(f.got, req["SetVolume"])
			result, raw := f.result, f.raw
			f.mu.Unlock()

			resp, _ := json.Marshal(map[string]any{"SetVolume": map[string]string{"result": result}})
			if raw != "" {
				resp = []byte(raw)
			}
			if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
				return
			}
		}
	}
}

func TestCamillaDSPSink_SetVolume(t *testing.T) {
	fake := &fakeCamillaDSP{result: "Ok"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := CamillaDSPConfig{
		WsURL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		TimeoutMS: 1000,
		MinDB:     -65,
		MaxDB:     0,
	}
	s, err := NewCamillaDSPSink(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetVolume(context.Background(), 100))
	require.NoError(t, s.SetVolume(context.Background(), 0))

	fake.mu.Lock()
	assert.Equal(t, []float64{0, -65}, fake.got)
	fake.result = "Error"
	fake.mu.Unlock()

	err = s.SetVolume(context.Background(), 50)
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, string(SinkCamillaDSP), se.Sink)
}

func TestCamillaDSPSink_UnparseableReplyFails(t *testing.T) {
	fake := &fakeCamillaDSP{raw: "not json"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s, err := NewCamillaDSPSink(context.Background(), CamillaDSPConfig{
		WsURL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		TimeoutMS: 1000,
		MinDB:     -65,
		MaxDB:     0,
	}, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	err = s.SetVolume(context.Background(), 30)
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 30, se.Volume)
	assert.ErrorContains(t, err, "parse response")
}

func TestCamillaDSPSink_ConnectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCamillaDSPSink(ctx, CamillaDSPConfig{WsURL: "ws://127.0.0.1:1", TimeoutMS: 100}, discardLogger())
	assert.Error(t, err)
}
