package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/viterin/vek"
)

// Hand is one detected hand as reported by the recognizer.
type Hand struct {
	// Landmarks are per-joint coordinates; only x and y (the first two values) are used.
	Landmarks [][]float64 `json:"landmarks"`
	// FingerStates is opaque detector output, consulted only by the continuous gate.
	FingerStates []int `json:"finger_states,omitempty"`
	// Gate, when present, overrides the finger-state gate.
	Gate *bool `json:"gate,omitempty"`
}

// Frame is one recognizer observation.
type Frame struct {
	Gesture Gesture `json:"gesture"`
	Hands   []Hand  `json:"hands,omitempty"`
	Ts      int64   `json:"ts,omitempty"` // ms since epoch; optional
}

// ControllingHand returns the hand that drives volume: the last one reported.
func (f Frame) ControllingHand() (Hand, bool) {
	if len(f.Hands) == 0 {
		return Hand{}, false
	}
	return f.Hands[len(f.Hands)-1], true
}

var errLandmark = errors.New("landmark unavailable")

// fingertipDistance is the planar Euclidean distance between landmarks a and b.
func fingertipDistance(h Hand, a, b int) (float64, error) {
	pa, err := landmarkXY(h, a)
	if err != nil {
		return 0, err
	}
	pb, err := landmarkXY(h, b)
	if err != nil {
		return 0, err
	}

	d := vek.Distance(pa, pb)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: non-finite distance between %d and %d", errLandmark, a, b)
	}
	return d, nil
}

func landmarkXY(h Hand, idx int) ([]float64, error) {
	if idx < 0 || idx >= len(h.Landmarks) {
		return nil, fmt.Errorf("%w: index %d out of range (have %d)", errLandmark, idx, len(h.Landmarks))
	}
	p := h.Landmarks[idx]
	if len(p) < 2 {
		return nil, fmt.Errorf("%w: index %d has %d coordinates", errLandmark, idx, len(p))
	}
	return p[:2], nil
}

// GateConfig decides whether a hand may drive the continuous controller.
type GateConfig struct {
	// Finger indexes FingerStates; -1 disables gating.
	Finger int `yaml:"gate_finger"`
	// Above is the exclusive lower bound on FingerStates[Finger].
	Above int `yaml:"gate_above"`
}

// Passes reports whether h is allowed to set volume in continuous mode.
// An explicit Hand.Gate wins; otherwise the configured finger state is checked,
// and a hand that does not report that finger fails.
func (g GateConfig) Passes(h Hand) bool {
	if h.Gate != nil {
		return *h.Gate
	}
	if g.Finger < 0 {
		return true
	}
	if g.Finger >= len(h.FingerStates) {
		return false
	}
	return h.FingerStates[g.Finger] > g.Above
}
