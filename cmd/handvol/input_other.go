//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

// runActivationKeys needs Linux evdev.
func runActivationKeys(ctx context.Context, cfg ActivationKeysConfig, events chan<- Event, logger *slog.Logger) error {
	if len(cfg.Devices) == 0 {
		return nil
	}
	return errors.New("activation keys are only supported on linux")
}
