package main

import (
	"cmp"
	"math"
)

// Zone locates a sample relative to the step thresholds.
type Zone string

const (
	ZoneUnknown Zone = ""
	ZoneBelow   Zone = "below"
	ZoneBetween Zone = "between"
	ZoneAbove   Zone = "above"
)

func zoneOf(sample, low, high float64) Zone {
	switch {
	case sample > high:
		return ZoneAbove
	case sample < low:
		return ZoneBelow
	default:
		return ZoneBetween
	}
}

func clamp[T cmp.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ============================================================================
// Step control
// ============================================================================

// StepResult is the outcome of feeding one sample to the step controller.
type StepResult struct {
	// Volume is the volume after the sample (unchanged unless Changed).
	Volume int
	// Changed is true when Volume differs from the input volume.
	Changed bool
	// Committed is true when a trend was confirmed and the trajectory was cleared,
	// including triggers absorbed by the volume bounds.
	Committed bool
	// Direction is set when Committed.
	Direction Direction
	Zone      Zone
}

// StepController implements discrete volume steps with hysteresis and debouncing.
//
// A step fires only when the trajectory is full, the latest sample lies outside
// [Low, High], and the whole window moves strictly toward that side. Every
// committed step clears the trajectory, so the next decision needs Capacity
// fresh samples.
type StepController struct {
	Low, High      float64
	Step           int
	Capacity       int
	VolMin, VolMax int

	trajectory *Trajectory
}

func newStepController(cfg ControlConfig) *StepController {
	return &StepController{
		Low:        cfg.ThresholdLow,
		High:       cfg.ThresholdHigh,
		Step:       cfg.StepSize,
		Capacity:   cfg.TrajectorySize,
		VolMin:     cfg.VolMin,
		VolMax:     cfg.VolMax,
		trajectory: newTrajectory(cfg.TrajectorySize),
	}
}

// Update feeds one sample given the current volume.
// This is intended to be called only by the daemon goroutine (single-owner).
func (c *StepController) Update(volume int, sample float64) StepResult {
	c.trajectory.Push(sample, c.Capacity)

	res := StepResult{
		Volume: volume,
		Zone:   zoneOf(sample, c.Low, c.High),
	}
	if !c.trajectory.IsFull(c.Capacity) {
		return res
	}

	var dir Direction
	switch res.Zone {
	case ZoneAbove:
		dir = Ascending
	case ZoneBelow:
		dir = Descending
	default:
		return res
	}

	if !IsMonotonic(c.trajectory.Snapshot(), dir) {
		return res
	}

	next := clamp(volume+int(dir)*c.Step, c.VolMin, c.VolMax)
	c.trajectory.Clear()

	res.Committed = true
	res.Direction = dir
	res.Volume = next
	res.Changed = next != volume
	return res
}

// Trajectory exposes the buffered window (read-only use).
func (c *StepController) Trajectory() *Trajectory {
	return c.trajectory
}

// Reset drops any partially accumulated evidence.
func (c *StepController) Reset() {
	c.trajectory.Clear()
}

// ============================================================================
// Continuous control
// ============================================================================

// ContinuousController maps a distance linearly onto the volume range.
// It is stateless: no smoothing, buffering or hysteresis.
type ContinuousController struct {
	LenMin, LenMax float64
	VolMin, VolMax int
}

func newContinuousController(cfg ControlConfig) ContinuousController {
	return ContinuousController{
		LenMin: cfg.Continuous.LenMin,
		LenMax: cfg.Continuous.LenMax,
		VolMin: cfg.VolMin,
		VolMax: cfg.VolMax,
	}
}

// Map clamps sample to [LenMin, LenMax] and interpolates onto [VolMin, VolMax],
// rounding to the nearest integer.
func (c ContinuousController) Map(sample float64) int {
	x := clamp(sample, c.LenMin, c.LenMax)
	frac := (x - c.LenMin) / (c.LenMax - c.LenMin)
	v := float64(c.VolMin) + frac*float64(c.VolMax-c.VolMin)
	return clamp(int(math.Round(v)), c.VolMin, c.VolMax)
}
