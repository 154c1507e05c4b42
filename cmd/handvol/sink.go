package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// VolumeSink is the external volume actuator.
//
// SetVolume is called only from the daemon goroutine, at most once per
// committed change, and is never retried. Implementations return *SinkError.
type VolumeSink interface {
	SetVolume(ctx context.Context, volume int) error
	Close() error
}

// newVolumeSink builds the sink selected by cfg.Kind.
func newVolumeSink(ctx context.Context, cfg SinkConfig, logger *slog.Logger) (VolumeSink, error) {
	switch cfg.Kind {
	case SinkCamillaDSP:
		return NewCamillaDSPSink(ctx, cfg.CamillaDSP, logger)
	case SinkCommand:
		return NewCommandSink(cfg.Command, logger)
	case SinkMIDI:
		return NewMIDISink(cfg.MIDI, logger)
	case SinkLog:
		return &logSink{logger: logger}, nil
	default:
		return nil, configErrorf("sink.kind", "unknown sink %q", cfg.Kind)
	}
}

// logSink only logs. It is the dry-run sink.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) SetVolume(ctx context.Context, volume int) error {
	if err := ctx.Err(); err != nil {
		return &SinkError{Sink: string(SinkLog), Volume: volume, Err: err}
	}
	s.logger.Info("volume", "volume", volume)
	return nil
}

func (s *logSink) Close() error { return nil }

// volumeFraction maps 0-100 onto 0.0-1.0.
func volumeFraction(volume int) float64 {
	return float64(clamp(volume, volumeFloor, volumeCeiling)) / float64(volumeCeiling)
}

// ccValue maps 0-100 onto the 7-bit MIDI controller range.
func ccValue(volume int) uint8 {
	return uint8(math.Round(volumeFraction(volume) * 127))
}

// sinkTimeout bounds a single SetVolume call.
func sinkTimeout(ms int) time.Duration {
	if ms <= 0 {
		return time.Duration(defaultReadTimeoutMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func sinkErrorf(sink SinkKind, volume int, format string, args ...any) *SinkError {
	return &SinkError{Sink: string(sink), Volume: volume, Err: fmt.Errorf(format, args...)}
}
