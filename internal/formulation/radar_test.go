package formulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadarPointsLayout(t *testing.T) {
	scores := make([]PriorityScore, len(Axes))
	for i, a := range Axes {
		scores[i] = PriorityScore{Axis: a, Score: 100}
	}
	points := RadarPoints(scores, 50)
	require.Len(t, points, 5)

	// first axis straight up
	assert.InDelta(t, -math.Pi/2, points[0].Angle, 1e-12)
	assert.InDelta(t, 0, points[0].X, 1e-9)
	assert.InDelta(t, -50, points[0].Y, 1e-9)

	for i, p := range points {
		assert.Equal(t, Axes[i], p.Axis)
		assert.InDelta(t, 2*math.Pi*float64(i)/5-math.Pi/2, p.Angle, 1e-12)
		assert.InDelta(t, 50, math.Hypot(p.X, p.Y), 1e-9)
	}
}

func TestRadarPointsScaleWithScore(t *testing.T) {
	points := RadarPoints([]PriorityScore{{Axis: AxisEfficacy, Score: 25}, {Axis: AxisCompliance, Score: 0}}, 80)
	assert.InDelta(t, 20, math.Hypot(points[0].X, points[0].Y), 1e-9)
	assert.InDelta(t, 0, math.Hypot(points[1].X, points[1].Y), 1e-9)
	assert.Nil(t, RadarPoints(nil, 10))
}
