package main

import (
	"context"
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command against the volume sink
// and emits an observation Event via onEvent.
//
// It must never call Reduce() directly. Sink failures are reported once as
// SinkCommandFailed; nothing is retried.
func runEffect(
	ctx context.Context,
	sink VolumeSink,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdSetVolume:
		if sink == nil {
			onEvent(SinkCommandFailed{
				Command: cmd,
				Err:     &SinkError{Sink: "none", Volume: c.Volume, Err: errNoSink{}},
				At:      now,
			})
			return
		}
		if err := sink.SetVolume(ctx, c.Volume); err != nil {
			logger.Error("set volume failed", "error", err, "volume", c.Volume)
			onEvent(SinkCommandFailed{Command: cmd, Err: err, At: now})
			return
		}
		onEvent(SinkVolumeObserved{Volume: c.Volume, At: now})

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(SinkCommandFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}
