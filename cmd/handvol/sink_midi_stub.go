//go:build !cgo

package main

import (
	"errors"
	"log/slog"
)

// NewMIDISink is unavailable without cgo: the rtmidi driver needs it.
func NewMIDISink(cfg MIDIConfig, logger *slog.Logger) (VolumeSink, error) {
	return nil, errors.New("midi sink requires a cgo build")
}
