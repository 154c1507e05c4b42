package main

// Direction is the sign of a trend: +1 ascending, -1 descending.
type Direction int

const (
	Descending Direction = -1
	Ascending  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "up"
	case Descending:
		return "down"
	default:
		return "none"
	}
}

// IsMonotonic reports whether every adjacent pair of samples moves strictly in dir.
//
// Equal neighbours break the trend, so a flat window is neither ascending nor
// descending. NaN samples break it too. Fewer than two samples never form a
// trend. samples is only read.
func IsMonotonic(samples []float64, dir Direction) bool {
	if len(samples) < 2 {
		return false
	}
	for i := 1; i < len(samples); i++ {
		delta := samples[i] - samples[i-1]
		switch dir {
		case Ascending:
			if !(delta > 0) {
				return false
			}
		case Descending:
			if !(delta < 0) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
