package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intersection/viewer/internal/protocol"
)

func TestTransformIsDeterministic(t *testing.T) {
	scene := DefaultScene()
	for _, lane := range protocol.Lanes {
		for _, pos := range []float64{-40, 0, 33.3, 100, 149.9, 1e6} {
			first := scene.Transform(lane, pos)
			second := scene.Transform(lane, pos)
			require.Equal(t, math.Float64bits(first.X), math.Float64bits(second.X))
			require.Equal(t, math.Float64bits(first.Y), math.Float64bits(second.Y))
			require.Equal(t, math.Float64bits(first.Angle), math.Float64bits(second.Angle))
		}
	}
}

func TestTransformStopLine(t *testing.T) {
	scene := DefaultScene()
	cx, cy := scene.Center()

	north := scene.Transform(protocol.North, StopLinePosition)
	assert.Equal(t, cy-scene.RoadWidth/2, north.Y)
	assert.Equal(t, cx-scene.RoadWidth/4, north.X)

	south := scene.Transform(protocol.South, StopLinePosition)
	assert.Equal(t, cy+scene.RoadWidth/2, south.Y)
	assert.Equal(t, cx+scene.RoadWidth/4, south.X)

	east := scene.Transform(protocol.East, StopLinePosition)
	assert.Equal(t, cx+scene.RoadWidth/2, east.X)
	assert.Equal(t, cy-scene.RoadWidth/4, east.Y)

	west := scene.Transform(protocol.West, StopLinePosition)
	assert.Equal(t, cx-scene.RoadWidth/2, west.X)
	assert.Equal(t, cy+scene.RoadWidth/4, west.Y)
}

func TestTransformSouthAngleIsConstant(t *testing.T) {
	scene := DefaultScene()
	for _, pos := range []float64{-10, 0, 50, 100, 150} {
		pose := scene.Transform(protocol.South, pos)
		assert.Equal(t, math.Pi, pose.Angle)
		assert.Equal(t, 180.0, pose.Degrees())
	}
}

func TestTransformLaneAngles(t *testing.T) {
	scene := DefaultScene()
	assert.Equal(t, 0.0, scene.Transform(protocol.North, 10).Degrees())
	assert.Equal(t, -90.0, scene.Transform(protocol.East, 10).Degrees())
	assert.Equal(t, 90.0, scene.Transform(protocol.West, 10).Degrees())
}

func TestTransformEntryAndOvershoot(t *testing.T) {
	scene := DefaultScene()
	cx, cy := scene.Center()

	// Entry sits 300 px beyond the stop line.
	entry := scene.Transform(protocol.North, 0)
	assert.Equal(t, cy-60-300, entry.Y)

	// Through the intersection the offset goes negative and the car passes the center.
	through := scene.Transform(protocol.East, 150)
	assert.Equal(t, cx+60-150, through.X)

	// Far out of range values still produce finite, unclamped coordinates.
	far := scene.Transform(protocol.West, -1000)
	assert.Equal(t, cx-60-3300, far.X)
	assert.False(t, math.IsNaN(far.X) || math.IsInf(far.X, 0))
}

func TestPoseRotate(t *testing.T) {
	pose := Pose{X: 100, Y: 50, Angle: -math.Pi / 2}
	// The glyph front (negative local y) faces west once rotated by -90 degrees.
	x, y := pose.Rotate(0, -10)
	assert.InDelta(t, 90, x, 1e-9)
	assert.InDelta(t, 50, y, 1e-9)

	identity := Pose{X: 3, Y: 4}
	x, y = identity.Rotate(1, 2)
	assert.Equal(t, 4.0, x)
	assert.Equal(t, 6.0, y)
}
