package main

import "time"

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state, Commands to execute and
// Broadcasts for state subscribers.
type ReduceResult struct {
	State      *Session
	Commands   []Command
	Broadcasts []StateBroadcast

	// Skipped is set when a frame carried a hand that could not be sampled.
	// The daemon loop logs it; the reducer does not.
	Skipped error
}

// Reduce is the pure reducer.
//
// Rules:
//   - Must not perform I/O
//   - Must not block
//   - Must not mutate anything outside the returned state
//
// The daemon loop executes Commands, turns their results into Events and
// feeds those back into Reduce.
func Reduce(s *Session, e Event) ReduceResult {
	rr := ReduceResult{State: s}
	if s == nil {
		return rr
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		at = te.At
		e = te.Event
	}

	switch ev := e.(type) {
	case SessionStarted:
		if s.cfg.SyncOnStart {
			rr.Commands = append(rr.Commands, CmdSetVolume{Volume: s.volume})
		}
		rr.Broadcasts = append(rr.Broadcasts, BroadcastVolumeChanged{Volume: s.volume, At: at})

	case FrameObserved:
		if at.IsZero() && ev.Frame.Ts > 0 {
			at = time.UnixMilli(ev.Frame.Ts)
		}
		out := s.ApplyFrame(ev.Frame)
		rr.absorb(s, out, at)

	case GestureObserved:
		out := s.ApplyGesture(ev.Gesture)
		rr.absorb(s, out, at)

	case SinkVolumeObserved:
		if ev.At.IsZero() {
			ev.At = at
		}
		s.ObserveSinkVolume(ev.Volume, ev.At)

	case SinkCommandFailed:
		if ev.At.IsZero() {
			ev.At = at
		}
		// No rollback and no retry: the session keeps the controller's decision.
		s.ObserveSinkFailure(ev.Err, ev.At)

		bc := BroadcastSinkFailed{At: ev.At}
		if c, ok := ev.Command.(CmdSetVolume); ok {
			bc.Volume = c.Volume
		}
		if ev.Err != nil {
			bc.Error = ev.Err.Error()
		}
		rr.Broadcasts = append(rr.Broadcasts, bc)

	case RequestStateSnapshot:
		rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(),
		})

	default:
		// Unknown event type: no-op.
	}

	return rr
}

// absorb turns a session Outcome into commands and broadcasts.
func (rr *ReduceResult) absorb(s *Session, out Outcome, at time.Time) {
	if out.ActivationChanged {
		rr.Broadcasts = append(rr.Broadcasts, BroadcastActivationChanged{
			Activated: s.activation == Activated,
			At:        at,
		})
	}
	if out.ZoneChanged {
		rr.Broadcasts = append(rr.Broadcasts, BroadcastZoneChanged{
			Zone:     out.Zone,
			Distance: s.distance,
			At:       at,
		})
	}
	if out.Step != nil {
		rr.Broadcasts = append(rr.Broadcasts, BroadcastStepCommitted{
			Direction: out.Step.Direction,
			Volume:    out.Step.Volume,
			Changed:   out.Step.Changed,
			At:        at,
		})
	}
	if out.VolumeChanged {
		rr.Commands = append(rr.Commands, CmdSetVolume{Volume: out.Volume})
		rr.Broadcasts = append(rr.Broadcasts, BroadcastVolumeChanged{Volume: out.Volume, At: at})
	}
	rr.Skipped = out.Skipped
}
