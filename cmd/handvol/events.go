package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - reducer inputs
// ============================================================================
// Events arrive from frame sources (recognizer, stdin, IPC, activation keys),
// from the effects layer (sink observations) and from servers asking for state.
// Sources emit bare payloads; the daemon loop wraps them in TimedEvent.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent attaches the daemon's receive time to a payload event.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// SessionStarted is emitted once by the daemon loop before any other event.
type SessionStarted struct{}

func (SessionStarted) eventMarker() {}

// FrameObserved carries one recognizer frame.
type FrameObserved struct {
	Frame Frame
}

func (FrameObserved) eventMarker() {}

// GestureObserved carries a gesture without landmarks (activation keys, handvol-ctl).
type GestureObserved struct {
	Gesture Gesture `json:"gesture"`
	Origin  string  `json:"origin,omitempty"` // e.g. "keys", "ipc"
}

func (GestureObserved) eventMarker() {}

// SinkVolumeObserved is emitted after the sink accepted a volume.
type SinkVolumeObserved struct {
	Volume int
	At     time.Time
}

func (SinkVolumeObserved) eventMarker() {}

// SinkCommandFailed is emitted when executing a Command fails.
type SinkCommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (SinkCommandFailed) eventMarker() {}

// RequestStateSnapshot asks the daemon to publish a StateSnapshot on Reply.
// Reply should be buffered (size 1); the effects layer never blocks on it.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	envelopeFrame    = "frame"
	envelopeGesture  = "gesture"
	envelopeGetState = "get_state"
)

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// get_state is a request, not an event, and is handled by the IPC server.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return decodeEnvelope(env)
}

func decodeEnvelope(env EventEnvelope) (Event, error) {
	switch env.Type {
	case envelopeFrame:
		var f Frame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("unmarshal Frame: %w", err)
		}
		return FrameObserved{Frame: f}, nil

	case envelopeGesture:
		var g GestureObserved
		if err := json.Unmarshal(env.Data, &g); err != nil {
			return nil, fmt.Errorf("unmarshal GestureObserved: %w", err)
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case FrameObserved:
		env.Type = envelopeFrame
		data, err := json.Marshal(e.Frame)
		if err != nil {
			return nil, fmt.Errorf("marshal Frame: %w", err)
		}
		env.Data = data

	case GestureObserved:
		env.Type = envelopeGesture
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal GestureObserved: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}

// decodeFrameLine parses one line of recognizer output.
// Lines are either a bare Frame object or an EventEnvelope.
func decodeFrameLine(line []byte) (Event, error) {
	var probe struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("decode frame line: %w", err)
	}
	if probe.Type != "" && len(probe.Data) > 0 {
		return decodeEnvelope(EventEnvelope{Type: probe.Type, Data: probe.Data})
	}

	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("decode frame line: %w", err)
	}
	return FrameObserved{Frame: f}, nil
}
