package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon goroutine is the single owner of the Session:
//   - Sources only send Events on a channel.
//   - Reduce computes next state, commands and broadcasts without I/O.
//   - runEffect executes commands against the sink; results come back as Events.
//   - Broadcasts are handed to the WS broadcaster without blocking.
//
// Frames are processed strictly in arrival order, one at a time.
// ============================================================================

// runDaemon runs the reducer loop until ctx is canceled or events is closed.
// broadcasts may be nil when no subscriber exists.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	sink VolumeSink,
	session *Session,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if session == nil {
		logger.Error("daemon session is nil")
		return
	}

	logger.Info("daemon starting",
		"session_id", session.ID,
		"mode", session.Mode(),
		"volume", session.Volume())

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcs {
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full; dropping state broadcast", "broadcast", b)
			}
		}
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(session, ev)
			if rr.State != nil {
				session = rr.State
			}
			if rr.Skipped != nil {
				logger.Debug("frame skipped", "error", rr.Skipped)
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	// Execute all queued commands, reducing observations promptly.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(ctx, sink, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	enqueueEvent(TimedEvent{Event: SessionStarted{}, At: time.Now()})
	flushEvents()
	flushCommands()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()
		}
	}
}
