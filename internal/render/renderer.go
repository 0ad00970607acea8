// Package render draws the intersection scene into an RGBA frame.
//
// Every pass is a full redraw: background, roads, markings and stop lines,
// then, when a snapshot is present, signal glyphs and vehicles. The output is
// a pure function of the scene and the snapshot.
package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"intersection/viewer/internal/geometry"
	"intersection/viewer/internal/protocol"
)

// ErrRenderPrecondition marks snapshots the renderer refuses to draw.
var ErrRenderPrecondition = errors.New("render precondition violated")

const (
	dividerWidth  = 2.0
	dashLength    = 20.0
	stopLineWidth = 4.0

	housingWidth  = 20.0
	housingHeight = 40.0
	lampRadius    = 12.0
	lampHalo      = 15.0
	lightSetback  = 20.0

	// VehicleWidth and VehicleLength size the car glyph in pixels.
	VehicleWidth  = 20.0
	VehicleLength = 35.0
)

// LightGlyph is one placed signal head.
type LightGlyph struct {
	X, Y  float64
	Group string // "north_south" or "east_west"
	Color string
}

// Renderer draws frames for a fixed scene.
type Renderer struct {
	scene geometry.Scene
}

// New constructs a renderer for the provided scene.
func New(scene geometry.Scene) *Renderer {
	return &Renderer{scene: scene}
}

// NewDefault uses the standard 800x600 intersection.
func NewDefault() *Renderer { return New(geometry.DefaultScene()) }

// Scene exposes the configured geometry.
func (r *Renderer) Scene() geometry.Scene { return r.scene }

// NewFrame allocates a surface sized to the scene.
func (r *Renderer) NewFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, int(r.scene.Width), int(r.scene.Height)))
}

// Validate checks the snapshot before any pixel is touched.
func (r *Renderer) Validate(s *protocol.Snapshot) error {
	if s == nil {
		return nil
	}
	if s.Lights.NorthSouth == "" || s.Lights.EastWest == "" {
		return fmt.Errorf("%w: light state missing (north_south=%q east_west=%q)", ErrRenderPrecondition, s.Lights.NorthSouth, s.Lights.EastWest)
	}
	for i, v := range s.Vehicles {
		if v.ID < 0 {
			return fmt.Errorf("%w: vehicle %d has negative id %d", ErrRenderPrecondition, i, v.ID)
		}
		if !v.Lane.Valid() {
			return fmt.Errorf("%w: vehicle %d on unknown lane %d", ErrRenderPrecondition, v.ID, int(v.Lane))
		}
		if math.IsNaN(v.Position) || math.IsInf(v.Position, 0) {
			return fmt.Errorf("%w: vehicle %d has non-finite position", ErrRenderPrecondition, v.ID)
		}
	}
	return nil
}

// Render performs one full pass. A nil snapshot draws the static intersection only.
func (r *Renderer) Render(dst *image.RGBA, s *protocol.Snapshot) error {
	if dst == nil {
		return errors.New("render target is nil")
	}
	if err := r.Validate(s); err != nil {
		return err
	}
	r.drawStatic(dst)
	if s == nil {
		return nil
	}
	for _, light := range r.LightGlyphs(s.Lights) {
		r.drawLight(dst, light)
	}
	for _, v := range s.Vehicles {
		r.drawVehicle(dst, v)
	}
	return nil
}

func (r *Renderer) drawStatic(dst *image.RGBA) {
	w, h := r.scene.Width, r.scene.Height
	cx, cy := r.scene.Center()
	half := r.scene.RoadWidth / 2

	fillRect(dst, 0, 0, w, h, grassColor)

	fillRect(dst, cx-half, 0, cx+half, h, asphaltColor)
	fillRect(dst, 0, cy-half, w, cy+half, asphaltColor)

	// Dividers stop at the intersection square.
	dashVertical(dst, cx, 0, cy-half)
	dashVertical(dst, cx, cy+half, h)
	dashHorizontal(dst, cy, 0, cx-half)
	dashHorizontal(dst, cy, cx+half, w)

	sw := stopLineWidth / 2
	fillRect(dst, cx-half, cy-half-sw, cx, cy-half+sw, markingColor) // north approach
	fillRect(dst, cx, cy+half-sw, cx+half, cy+half+sw, markingColor) // south approach
	fillRect(dst, cx+half-sw, cy-half, cx+half+sw, cy, markingColor) // east approach
	fillRect(dst, cx-half-sw, cy, cx-half+sw, cy+half, markingColor) // west approach
}

func dashVertical(dst *image.RGBA, x, from, to float64) {
	for y := from; y < to; y += 2 * dashLength {
		fillRect(dst, x-dividerWidth/2, y, x+dividerWidth/2, math.Min(y+dashLength, to), markingColor)
	}
}

func dashHorizontal(dst *image.RGBA, y, from, to float64) {
	for x := from; x < to; x += 2 * dashLength {
		fillRect(dst, x, y-dividerWidth/2, math.Min(x+dashLength, to), y+dividerWidth/2, markingColor)
	}
}

// LightGlyphs places the four signal heads just outside each stop line.
func (r *Renderer) LightGlyphs(lights protocol.LightPair) [4]LightGlyph {
	cx, cy := r.scene.Center()
	half := r.scene.RoadWidth / 2
	return [4]LightGlyph{
		{X: cx - half - lightSetback, Y: cy - half, Group: "north_south", Color: lights.NorthSouth},
		{X: cx + half + lightSetback, Y: cy + half, Group: "north_south", Color: lights.NorthSouth},
		{X: cx + half, Y: cy - half - lightSetback, Group: "east_west", Color: lights.EastWest},
		{X: cx - half, Y: cy + half + lightSetback, Group: "east_west", Color: lights.EastWest},
	}
}

func (r *Renderer) drawLight(dst *image.RGBA, light LightGlyph) {
	fillRect(dst, light.X-housingWidth/2, light.Y-housingHeight/2, light.X+housingWidth/2, light.Y+housingHeight/2, housingColor)
	lamp := LightColor(light.Color)
	glow := lamp
	glow.R, glow.G, glow.B, glow.A = lamp.R/3, lamp.G/3, lamp.B/3, 0x55
	fillPolygon(dst, circle(light.X, light.Y, lampHalo, 48), glow)
	fillPolygon(dst, circle(light.X, light.Y, lampRadius, 48), lamp)
}

// VehicleCorners returns the glyph outline for v in screen space.
func (r *Renderer) VehicleCorners(v protocol.Vehicle) [4][2]float64 {
	pose := r.scene.Transform(v.Lane, v.Position)
	var out [4][2]float64
	for i, p := range rectangle(-VehicleWidth/2, -VehicleLength/2, VehicleWidth/2, VehicleLength/2) {
		out[i][0], out[i][1] = pose.Rotate(p.x, p.y)
	}
	return out
}

func (r *Renderer) drawVehicle(dst *image.RGBA, v protocol.Vehicle) {
	pose := r.scene.Transform(v.Lane, v.Position)
	fillPolygon(dst, posed(pose, rectangle(-VehicleWidth/2, -VehicleLength/2, VehicleWidth/2, VehicleLength/2)), VehicleColor(v.ID))
	// Windshield inset from the glyph's local -y edge.
	front := -VehicleLength / 2
	fillPolygon(dst, posed(pose, rectangle(-VehicleWidth/2+2, front+5, VehicleWidth/2-2, front+13)), windshieldTint)
}

func rectangle(x0, y0, x1, y1 float64) []point {
	return []point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func posed(pose geometry.Pose, local []point) []point {
	out := make([]point, len(local))
	for i, p := range local {
		out[i].x, out[i].y = pose.Rotate(p.x, p.y)
	}
	return out
}
