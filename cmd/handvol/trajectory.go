package main

// Trajectory is a bounded FIFO window of recent distance samples, oldest first.
//
// It is owned by the daemon goroutine (single-owner) through the Session and
// is never shared, so it carries no lock.
type Trajectory struct {
	samples []float64
}

// newTrajectory creates an empty trajectory sized for capacity samples.
func newTrajectory(capacity int) *Trajectory {
	if capacity < 1 {
		capacity = 1
	}
	return &Trajectory{
		samples: make([]float64, 0, capacity+1),
	}
}

// Push appends a sample and evicts the oldest samples until at most capacity remain.
// capacity >= 1 is the caller's responsibility.
func (t *Trajectory) Push(sample float64, capacity int) {
	t.samples = append(t.samples, sample)
	if over := len(t.samples) - capacity; over > 0 {
		// Shift in place so the backing array is reused.
		n := copy(t.samples, t.samples[over:])
		t.samples = t.samples[:n]
	}
}

// Clear empties the trajectory.
func (t *Trajectory) Clear() {
	t.samples = t.samples[:0]
}

// IsFull reports whether the trajectory holds exactly capacity samples.
func (t *Trajectory) IsFull(capacity int) bool {
	return len(t.samples) == capacity
}

// Len returns the number of buffered samples.
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// Latest returns the most recent sample, if any.
func (t *Trajectory) Latest() (float64, bool) {
	if len(t.samples) == 0 {
		return 0, false
	}
	return t.samples[len(t.samples)-1], true
}

// Snapshot returns a copy of the buffered samples, oldest first.
func (t *Trajectory) Snapshot() []float64 {
	out := make([]float64, len(t.samples))
	copy(out, t.samples)
	return out
}
