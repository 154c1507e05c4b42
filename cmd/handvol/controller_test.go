package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStepController(capacity, step int) *StepController {
	cfg := DefaultConfig().Control
	cfg.TrajectorySize = capacity
	cfg.StepSize = step
	cfg.ThresholdLow = 30
	cfg.ThresholdHigh = 130
	return newStepController(cfg)
}

func feed(c *StepController, volume int, samples ...float64) (int, []StepResult) {
	var results []StepResult
	for _, s := range samples {
		res := c.Update(volume, s)
		volume = res.Volume
		results = append(results, res)
	}
	return volume, results
}

func TestStepController_RisingAboveHighStepsUp(t *testing.T) {
	c := testStepController(5, 10)

	vol, results := feed(c, 50, 140, 141, 142, 143, 144)

	assert.Equal(t, 60, vol)
	for _, r := range results[:4] {
		assert.False(t, r.Committed)
	}
	last := results[4]
	assert.True(t, last.Committed)
	assert.True(t, last.Changed)
	assert.Equal(t, Ascending, last.Direction)
	assert.Equal(t, ZoneAbove, last.Zone)
	assert.Equal(t, 0, c.Trajectory().Len())

	// One more sample only starts a new window.
	res := c.Update(vol, 145)
	assert.False(t, res.Committed)
	assert.Equal(t, 60, res.Volume)
	assert.Equal(t, 1, c.Trajectory().Len())
}

func TestStepController_FallingBelowLowStepsDown(t *testing.T) {
	c := testStepController(3, 5)

	vol, results := feed(c, 50, 29, 25, 20)

	assert.Equal(t, 45, vol)
	assert.Equal(t, Descending, results[2].Direction)
	assert.Equal(t, 0, c.Trajectory().Len())
}

func TestStepController_BetweenThresholdsNeverSteps(t *testing.T) {
	c := testStepController(3, 10)

	vol, results := feed(c, 50, 40, 60, 80, 100, 120, 130, 30)

	assert.Equal(t, 50, vol)
	for _, r := range results {
		assert.False(t, r.Committed)
	}
	// The window keeps sliding while nothing commits.
	assert.Equal(t, []float64{120, 130, 30}, c.Trajectory().Snapshot())
}

func TestStepController_ThresholdsAreExclusive(t *testing.T) {
	c := testStepController(2, 10)
	vol, _ := feed(c, 50, 129, 130)
	assert.Equal(t, 50, vol)

	c = testStepController(2, 10)
	vol, _ = feed(c, 50, 31, 30)
	assert.Equal(t, 50, vol)
}

func TestStepController_NonMonotonicWindowDoesNotStep(t *testing.T) {
	c := testStepController(4, 10)

	vol, _ := feed(c, 50, 140, 150, 145, 160)
	assert.Equal(t, 50, vol)
	assert.Equal(t, 4, c.Trajectory().Len())

	// Sliding on: 150 145 160 170 still has the dip.
	vol, _ = feed(c, vol, 170)
	assert.Equal(t, 50, vol)

	// 145 160 170 180 is strictly rising.
	vol, _ = feed(c, vol, 180)
	assert.Equal(t, 60, vol)
}

func TestStepController_RisingTrendEndingBetweenDoesNotStep(t *testing.T) {
	c := testStepController(3, 10)
	vol, _ := feed(c, 50, 100, 110, 120)
	assert.Equal(t, 50, vol)
}

func TestStepController_ClampedStepStillClears(t *testing.T) {
	c := testStepController(3, 10)

	vol, results := feed(c, 95, 140, 150, 160)
	assert.Equal(t, 100, vol)
	assert.True(t, results[2].Changed)

	vol, results = feed(c, vol, 170, 180, 190)
	assert.Equal(t, 100, vol)
	last := results[2]
	assert.True(t, last.Committed)
	assert.False(t, last.Changed)
	assert.Equal(t, 0, c.Trajectory().Len())
}

func TestStepController_FloorClamp(t *testing.T) {
	c := testStepController(2, 10)
	vol, _ := feed(c, 5, 20, 10)
	assert.Equal(t, 0, vol)
	vol, _ = feed(c, vol, 9, 8)
	assert.Equal(t, 0, vol)
}

func TestStepController_Reset(t *testing.T) {
	c := testStepController(3, 10)
	feed(c, 50, 140, 150)
	c.Reset()
	assert.Equal(t, 0, c.Trajectory().Len())
}

func TestZoneOf(t *testing.T) {
	assert.Equal(t, ZoneAbove, zoneOf(131, 30, 130))
	assert.Equal(t, ZoneBetween, zoneOf(130, 30, 130))
	assert.Equal(t, ZoneBetween, zoneOf(30, 30, 130))
	assert.Equal(t, ZoneBelow, zoneOf(29.9, 30, 130))
}

func TestContinuousController_Map(t *testing.T) {
	c := ContinuousController{LenMin: 20, LenMax: 150, VolMin: 0, VolMax: 100}

	assert.Equal(t, 0, c.Map(20))
	assert.Equal(t, 100, c.Map(150))
	assert.Equal(t, 50, c.Map(85))
	assert.Equal(t, 0, c.Map(5), "below range clamps")
	assert.Equal(t, 100, c.Map(400), "above range clamps")
	assert.Equal(t, 8, c.Map(30), "10/130*100 rounds to 8")
}

func TestContinuousController_MapIsMonotonic(t *testing.T) {
	c := newContinuousController(DefaultConfig().Control)
	prev := c.Map(0)
	for x := 0.0; x <= 200; x += 0.5 {
		v := c.Map(x)
		require.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestContinuousController_NarrowVolumeRange(t *testing.T) {
	c := ContinuousController{LenMin: 0, LenMax: 100, VolMin: 20, VolMax: 40}
	assert.Equal(t, 20, c.Map(-1))
	assert.Equal(t, 30, c.Map(50))
	assert.Equal(t, 40, c.Map(101))
}
