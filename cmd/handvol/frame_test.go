package main

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handWithTips builds a 21-landmark hand with the thumb and index tips placed at a and b.
func handWithTips(a, b [2]float64) Hand {
	lm := make([][]float64, 21)
	for i := range lm {
		lm[i] = []float64{0, 0, 0}
	}
	lm[defaultJointA] = []float64{a[0], a[1], 0.5}
	lm[defaultJointB] = []float64{b[0], b[1], -3}
	return Hand{Landmarks: lm}
}

func TestFingertipDistance(t *testing.T) {
	h := handWithTips([2]float64{0, 0}, [2]float64{30, 40})

	d, err := fingertipDistance(h, defaultJointA, defaultJointB)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, d, 1e-9, "z is ignored")
}

func TestFingertipDistance_Errors(t *testing.T) {
	h := handWithTips([2]float64{0, 0}, [2]float64{1, 1})

	_, err := fingertipDistance(h, 4, 40)
	assert.True(t, errors.Is(err, errLandmark))

	_, err = fingertipDistance(h, -1, 8)
	assert.True(t, errors.Is(err, errLandmark))

	h.Landmarks[8] = []float64{1}
	_, err = fingertipDistance(h, 4, 8)
	assert.True(t, errors.Is(err, errLandmark))

	h.Landmarks[8] = []float64{math.Inf(1), 0}
	_, err = fingertipDistance(h, 4, 8)
	assert.True(t, errors.Is(err, errLandmark))
}

func TestFrame_ControllingHandIsLast(t *testing.T) {
	first := handWithTips([2]float64{0, 0}, [2]float64{1, 0})
	last := handWithTips([2]float64{0, 0}, [2]float64{2, 0})

	h, ok := Frame{Hands: []Hand{first, last}}.ControllingHand()
	require.True(t, ok)
	d, err := fingertipDistance(h, defaultJointA, defaultJointB)
	require.NoError(t, err)
	assert.Equal(t, 2.0, d)

	_, ok = Frame{}.ControllingHand()
	assert.False(t, ok)
}

func TestGateConfig_Passes(t *testing.T) {
	g := GateConfig{Finger: 4, Above: 2}

	assert.True(t, g.Passes(Hand{FingerStates: []int{0, 0, 0, 0, 3}}))
	assert.False(t, g.Passes(Hand{FingerStates: []int{0, 0, 0, 0, 2}}))
	assert.False(t, g.Passes(Hand{FingerStates: []int{0, 0}}), "missing finger fails")

	yes, no := true, false
	assert.True(t, g.Passes(Hand{Gate: &yes}))
	assert.False(t, g.Passes(Hand{Gate: &no, FingerStates: []int{0, 0, 0, 0, 9}}))

	assert.True(t, GateConfig{Finger: -1}.Passes(Hand{}), "disabled gate")
}
