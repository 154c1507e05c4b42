//go:build cgo

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MIDISink sends volume as a control change message.
type MIDISink struct {
	driver     *rtmididrv.Driver
	out        drivers.Out
	channel    uint8
	controller uint8
	logger     *slog.Logger
}

// NewMIDISink opens the first output port whose name starts with cfg.Port.
// An empty Port takes the first output.
func NewMIDISink(cfg MIDIConfig, logger *slog.Logger) (VolumeSink, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("open MIDI driver: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list MIDI outputs: %w", err)
	}

	prefix := strings.ToLower(cfg.Port)
	for _, out := range outs {
		if !strings.HasPrefix(strings.ToLower(out.String()), prefix) {
			continue
		}
		if err := out.Open(); err != nil {
			drv.Close()
			return nil, fmt.Errorf("open MIDI output %q: %w", out.String(), err)
		}
		logger.Info("MIDI output opened", "port", out.String(), "channel", cfg.Channel, "controller", cfg.Controller)
		return &MIDISink{
			driver:     drv,
			out:        out,
			channel:    uint8(cfg.Channel),
			controller: uint8(cfg.Controller),
			logger:     logger,
		}, nil
	}

	drv.Close()
	return nil, fmt.Errorf("no MIDI output starting with %q", cfg.Port)
}

func (s *MIDISink) SetVolume(ctx context.Context, volume int) error {
	if err := ctx.Err(); err != nil {
		return &SinkError{Sink: string(SinkMIDI), Volume: volume, Err: err}
	}
	msg := midi.ControlChange(s.channel, s.controller, ccValue(volume))
	if err := s.out.Send(msg); err != nil {
		return &SinkError{Sink: string(SinkMIDI), Volume: volume, Err: err}
	}
	s.logger.Debug("MIDI control change sent", "msg", msg.String(), "volume", volume)
	return nil
}

func (s *MIDISink) Close() error {
	if s.out != nil && s.out.IsOpen() {
		s.out.Close()
	}
	return s.driver.Close()
}
