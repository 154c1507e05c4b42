package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CamillaDSPSink sets the CamillaDSP main fader over its websocket API.
type CamillaDSPSink struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	url         string
	logger      *slog.Logger
	readTimeout time.Duration

	minDB, maxDB float64
}

// NewCamillaDSPSink creates the sink and establishes the initial connection.
func NewCamillaDSPSink(ctx context.Context, cfg CamillaDSPConfig, logger *slog.Logger) (*CamillaDSPSink, error) {
	if _, err := url.Parse(cfg.WsURL); err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}

	s := &CamillaDSPSink{
		url:         cfg.WsURL,
		logger:      logger,
		readTimeout: sinkTimeout(cfg.TimeoutMS),
		minDB:       cfg.MinDB,
		maxDB:       cfg.MaxDB,
	}

	if err := s.connectWithRetry(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// volumeToDB maps a 0-100 volume onto [minDB, maxDB] with a log10 curve,
// so equal steps sound roughly equal.
func volumeToDB(volume int, minDB, maxDB float64) float64 {
	if volume <= volumeFloor {
		return minDB
	}
	if volume >= volumeCeiling {
		return maxDB
	}
	logValue := math.Log10(1.0 + 9.0*volumeFraction(volume))
	return minDB + (maxDB-minDB)*logValue
}

func (s *CamillaDSPSink) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	d := websocket.Dialer{
		HandshakeTimeout: 2 * time.Second,
	}

	conn, _, err := d.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.conn = conn
	return nil
}

// connectWithRetry is used at startup only; later reconnects are single attempts
// so a dead CamillaDSP never stalls the daemon loop.
func (s *CamillaDSPSink) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		err := s.connect(ctx)
		if err == nil {
			s.logger.Info("connected to CamillaDSP", "url", s.url)
			return nil
		}
		lastErr = err
		s.logger.Warn("connection failed; retrying...", "error", err, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to connect after 10 attempts: %w", lastErr)
}

func (s *CamillaDSPSink) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	connected := s.conn != nil
	s.mu.Unlock()
	if connected {
		return nil
	}

	s.logger.Warn("connection lost; reconnecting...")
	return s.connect(ctx)
}

// sendAndRead sends a message and waits for the response.
func (s *CamillaDSPSink) sendAndRead(ctx context.Context, v any) ([]byte, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, fmt.Errorf("no websocket connection")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	deadline := time.Now().Add(s.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.conn = nil // Mark connection as broken
		return nil, err
	}

	s.conn.SetReadDeadline(deadline)
	defer func() {
		if s.conn != nil {
			s.conn.SetReadDeadline(time.Time{})
		}
	}()

	_, message, err := s.conn.ReadMessage()
	if err != nil {
		s.conn = nil // Mark connection as broken
		return nil, err
	}

	return message, nil
}

// SetVolume sends SetVolume with the mapped dB value.
func (s *CamillaDSPSink) SetVolume(ctx context.Context, volume int) error {
	db := volumeToDB(volume, s.minDB, s.maxDB)

	response, err := s.sendAndRead(ctx, map[string]any{"SetVolume": db})
	if err != nil {
		return &SinkError{Sink: string(SinkCamillaDSP), Volume: volume, Err: err}
	}

	var setResp struct {
		SetVolume struct {
			Result string `json:"result"`
		} `json:"SetVolume"`
	}
	if err := json.Unmarshal(response, &setResp); err != nil {
		return sinkErrorf(SinkCamillaDSP, volume, "parse response: %v", err)
	}
	if r := setResp.SetVolume.Result; r != "" && r != "Ok" {
		return sinkErrorf(SinkCamillaDSP, volume, "camilladsp result %q", r)
	}

	s.logger.Debug("SetVolume", "volume", volume, "target_db", db, "result", setResp.SetVolume.Result)
	return nil
}

// Close closes the websocket connection.
func (s *CamillaDSPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}
