package geometry

import (
	"math"

	"intersection/viewer/internal/protocol"
)

const (
	// DefaultWidth and DefaultHeight describe the fixed logical surface.
	DefaultWidth  = 800
	DefaultHeight = 600
	// DefaultRoadWidth spans both lanes of one road.
	DefaultRoadWidth = 120.0
	// DefaultScale converts logical lane units into screen pixels.
	DefaultScale = 3.0
	// StopLinePosition is the logical coordinate of the stop line on every lane.
	StopLinePosition = 100.0
)

// Scene fixes the surface and road dimensions used by the transform.
type Scene struct {
	Width     float64
	Height    float64
	RoadWidth float64
	Scale     float64
}

// DefaultScene returns the 800x600 intersection used by the viewer.
func DefaultScene() Scene {
	return Scene{Width: DefaultWidth, Height: DefaultHeight, RoadWidth: DefaultRoadWidth, Scale: DefaultScale}
}

// Center returns the middle of the surface.
func (s Scene) Center() (float64, float64) { return s.Width / 2, s.Height / 2 }

// LaneWidth is half the road width.
func (s Scene) LaneWidth() float64 { return s.RoadWidth / 2 }

// Pose is a screen position plus the rotation, in radians, of a glyph placed there.
type Pose struct {
	X     float64
	Y     float64
	Angle float64
}

// Degrees reports the pose angle in degrees.
func (p Pose) Degrees() float64 { return p.Angle * 180 / math.Pi }

// LaneAngle is the constant glyph rotation for vehicles travelling on lane.
func LaneAngle(lane protocol.Lane) float64 {
	switch lane {
	case protocol.North:
		return 0
	case protocol.South:
		return math.Pi
	case protocol.East:
		return -math.Pi / 2
	default:
		return math.Pi / 2
	}
}

// Transform maps a logical (lane, position) pair into screen space. Positions
// are never clamped: values outside 0..100 land off the stop line or off the surface.
func (s Scene) Transform(lane protocol.Lane, position float64) Pose {
	cx, cy := s.Center()
	laneOffset := s.RoadWidth / 4
	offset := s.RoadWidth/2 + (StopLinePosition-position)*s.Scale

	switch lane {
	case protocol.North:
		return Pose{X: cx - laneOffset, Y: cy - offset, Angle: LaneAngle(lane)}
	case protocol.South:
		return Pose{X: cx + laneOffset, Y: cy + offset, Angle: LaneAngle(lane)}
	case protocol.East:
		return Pose{X: cx + offset, Y: cy - laneOffset, Angle: LaneAngle(lane)}
	default:
		return Pose{X: cx - offset, Y: cy + laneOffset, Angle: LaneAngle(protocol.West)}
	}
}

// Rotate applies the pose rotation to a point expressed in glyph-local
// coordinates and translates it to the pose origin. Screen y grows downward.
func (p Pose) Rotate(lx, ly float64) (float64, float64) {
	sin, cos := math.Sincos(p.Angle)
	return p.X + lx*cos - ly*sin, p.Y + lx*sin + ly*cos
}
