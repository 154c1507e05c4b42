package main

import (
	"time"

	"github.com/google/uuid"
)

// Session is the daemon-owned control state: activation, volume and the controllers.
//
// A Session is built only from a validated ControlConfig. Every mutating method
// is intended to be called only by the daemon goroutine (single-owner); other
// goroutines see the state through StateSnapshot values.
type Session struct {
	ID        string
	StartedAt time.Time

	cfg        ControlConfig
	activation Activation
	volume     int

	step       *StepController
	continuous ContinuousController

	// Last sample and where it fell, for UIs.
	distance      float64
	distanceKnown bool
	zone          Zone

	stats SessionStats

	// Sink is the observed state of the volume actuator.
	Sink SinkObservation
}

// SessionStats counts what the session has seen.
type SessionStats struct {
	Frames         uint64 `json:"frames"`
	Samples        uint64 `json:"samples"`
	SkippedFrames  uint64 `json:"skipped_frames"`
	StepsCommitted uint64 `json:"steps_committed"`
}

// SinkObservation is what the daemon last learned from the volume sink.
type SinkObservation struct {
	Volume      int
	VolumeKnown bool
	VolumeAt    time.Time

	Failures    uint64
	LastError   string
	LastErrorAt time.Time
}

// NewSession validates cfg and constructs a deactivated session at the initial volume.
func NewSession(cfg ControlConfig, now time.Time) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:         uuid.NewString(),
		StartedAt:  now,
		cfg:        cfg,
		activation: Deactivated,
		volume:     cfg.initialVolume(),
		step:       newStepController(cfg),
		continuous: newContinuousController(cfg),
	}, nil
}

func (s *Session) Mode() Mode             { return s.cfg.Mode }
func (s *Session) Activation() Activation { return s.activation }
func (s *Session) Volume() int            { return s.volume }
func (s *Session) Config() ControlConfig  { return s.cfg }

// Outcome describes what one input did to the session.
type Outcome struct {
	ActivationChanged bool

	// VolumeChanged means the sink must be told about Volume.
	VolumeChanged bool
	Volume        int

	// Step is set when a step decision was committed.
	Step *StepResult

	ZoneChanged bool
	Zone        Zone

	// Skipped is set when a hand was present but no sample could be taken.
	Skipped error
}

// ApplyGesture runs the activation state machine.
func (s *Session) ApplyGesture(g Gesture) Outcome {
	next := NextActivation(s.activation, g)
	out := Outcome{
		ActivationChanged: next != s.activation,
		Volume:            s.volume,
	}
	s.activation = next
	return out
}

// ApplyFrame handles one recognizer frame: the gesture first, then, when
// activated and a hand is present, one sample through the configured controller.
func (s *Session) ApplyFrame(f Frame) Outcome {
	s.stats.Frames++

	out := s.ApplyGesture(f.Gesture)
	if s.activation != Activated {
		return out
	}

	hand, ok := f.ControllingHand()
	if !ok {
		return out
	}

	sample, err := fingertipDistance(hand, s.cfg.JointA, s.cfg.JointB)
	if err != nil {
		s.stats.SkippedFrames++
		out.Skipped = err
		return out
	}
	s.stats.Samples++
	s.distance = sample
	s.distanceKnown = true

	zone := zoneOf(sample, s.cfg.ThresholdLow, s.cfg.ThresholdHigh)
	out.Zone = zone
	out.ZoneChanged = zone != s.zone
	s.zone = zone

	switch s.cfg.Mode {
	case ModeContinuous:
		if !s.cfg.Continuous.Passes(hand) {
			return out
		}
		next := s.continuous.Map(sample)
		if next != s.volume {
			s.volume = next
			out.VolumeChanged = true
		}

	default:
		res := s.step.Update(s.volume, sample)
		if res.Committed {
			s.stats.StepsCommitted++
			out.Step = &res
		}
		if res.Changed {
			s.volume = res.Volume
			out.VolumeChanged = true
		}
	}

	out.Volume = s.volume
	return out
}

// ObserveSinkVolume records a delivered volume.
func (s *Session) ObserveSinkVolume(volume int, at time.Time) {
	s.Sink.Volume = volume
	s.Sink.VolumeKnown = true
	s.Sink.VolumeAt = at
}

// ObserveSinkFailure records a failed delivery. The session volume and
// trajectory stay exactly as the controller left them.
func (s *Session) ObserveSinkFailure(err error, at time.Time) {
	s.Sink.Failures++
	if err != nil {
		s.Sink.LastError = err.Error()
	}
	s.Sink.LastErrorAt = at
}

// ============================================================================
// Snapshot
// ============================================================================

// StateSnapshot is an immutable copy of the session for other goroutines (IPC, WS).
type StateSnapshot struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Mode      Mode      `json:"mode"`
	Activated bool      `json:"activated"`
	Volume    int       `json:"volume"`

	Distance      float64 `json:"distance"`
	DistanceKnown bool    `json:"distance_known"`
	Zone          Zone    `json:"zone,omitempty"`

	TrajectoryLen      int       `json:"trajectory_len"`
	TrajectoryCapacity int       `json:"trajectory_capacity"`
	Trajectory         []float64 `json:"trajectory,omitempty"`

	DeliveredVolume *int      `json:"delivered_volume,omitempty"`
	DeliveredAt     time.Time `json:"delivered_at,omitzero"`
	SinkFailures    uint64    `json:"sink_failures"`
	LastSinkError   string    `json:"last_sink_error,omitempty"`
	LastSinkErrorAt time.Time `json:"last_sink_error_at,omitzero"`

	Stats SessionStats `json:"stats"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		SessionID:          s.ID,
		StartedAt:          s.StartedAt,
		Mode:               s.cfg.Mode,
		Activated:          s.activation == Activated,
		Volume:             s.volume,
		Distance:           s.distance,
		DistanceKnown:      s.distanceKnown,
		Zone:               s.zone,
		TrajectoryCapacity: s.cfg.TrajectorySize,
		SinkFailures:       s.Sink.Failures,
		LastSinkError:      s.Sink.LastError,
		LastSinkErrorAt:    s.Sink.LastErrorAt,
		Stats:              s.stats,
	}
	if s.cfg.Mode == ModeStep {
		snap.TrajectoryLen = s.step.Trajectory().Len()
		snap.Trajectory = s.step.Trajectory().Snapshot()
	}
	if s.Sink.VolumeKnown {
		v := s.Sink.Volume
		snap.DeliveredVolume = &v
		snap.DeliveredAt = s.Sink.VolumeAt
	}
	return snap
}
