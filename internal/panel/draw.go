package panel

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/render"
)

// Width and Height size the panel surface; the height matches the scene.
const (
	Width  = 360
	Height = 600
)

var (
	background  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	border      = color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	tile        = color.RGBA{0xf8, 0xfa, 0xfc, 0xff}
	heading     = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	muted       = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	faint       = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	emerald     = color.RGBA{0x05, 0x96, 0x69, 0xff}
	blue        = color.RGBA{0x25, 0x63, 0xeb, 0xff}
	amber       = color.RGBA{0xf5, 0x9e, 0x0b, 0xff}
	neutralTile = color.RGBA{0xf1, 0xf5, 0xf9, 0xff}
	// LineColor strokes the queue history.
	LineColor = color.RGBA{0x64, 0x74, 0x8b, 0xff}
)

// ChartRect is where the queue history is plotted.
var ChartRect = image.Rect(20, 232, Width-20, 420)

const lineHalfWidth = 1.0

// ControlsView is the operator state shown under the analytics.
type ControlsView struct {
	Paused  bool
	Density float64
	Status  protocol.ConnectionStatus
}

// NewFrame allocates a panel-sized surface.
func NewFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, Width, Height))
}

// Draw renders the analytics for s followed by the control section.
func Draw(dst *image.RGBA, s *protocol.Snapshot, controls ControlsView) {
	fill(dst, dst.Bounds(), background)
	fill(dst, image.Rect(0, 0, 1, Height), border)

	summary, ok := Summarize(s)
	if !ok {
		render.DrawText(dst, render.WaitingMessage, Width/2, 220, faint)
	} else {
		drawAnalytics(dst, summary)
	}
	drawControls(dst, controls)
}

func drawAnalytics(dst *image.RGBA, summary Summary) {
	render.DrawText(dst, "Live Analytics", Width/2, 24, heading)
	fill(dst, image.Rect(20, 40, Width-20, 41), border)

	//1.- Counter tiles.
	fill(dst, image.Rect(20, 52, 175, 112), tile)
	fill(dst, image.Rect(185, 52, Width-20, 112), tile)
	render.DrawText(dst, "TOTAL QUEUE", 97, 68, muted)
	render.DrawText(dst, summary.TotalQueue, 97, 94, heading)
	render.DrawText(dst, "AVG WAIT TIME", 262, 68, muted)
	render.DrawText(dst, summary.AvgWait, 262, 94, emerald)

	//2.- Active phase with its indicator.
	phaseColor := blue
	if summary.NSGreen {
		phaseColor = emerald
	}
	fill(dst, image.Rect(20, 122, Width-20, 182), tile)
	render.DrawText(dst, "ACTIVE PHASE", 120, 140, muted)
	render.DrawText(dst, summary.Phase, 120, 164, phaseColor)
	fill(dst, image.Rect(300, 146, 312, 158), phaseColor)

	//3.- Queue history chart.
	render.DrawText(dst, "Queue History (Last 20 Steps)", Width/2, 210, faint)
	drawFrame(dst, ChartRect.Inset(-1), border)
	DrawChart(dst, ChartRect, summary.History)
}

// ChartPoints maps the series into chart-local pixel coordinates. The y axis
// starts at zero and tops out at the largest sample.
func ChartPoints(bounds image.Rectangle, series []Point) [][2]float64 {
	if len(series) == 0 {
		return nil
	}
	const inset = 2.0
	w := float64(bounds.Dx()) - 2*inset
	h := float64(bounds.Dy()) - 2*inset
	top := 0.0
	for _, p := range series {
		top = math.Max(top, p.Queue)
	}
	if top <= 0 {
		top = 1
	}
	out := make([][2]float64, len(series))
	for i, p := range series {
		x := w / 2
		if len(series) > 1 {
			x = w * float64(i) / float64(len(series)-1)
		}
		v := math.Min(math.Max(p.Queue, 0), top)
		out[i] = [2]float64{inset + x, inset + h - h*v/top}
	}
	return out
}

// DrawChart strokes the history as a polyline inside bounds.
func DrawChart(dst *image.RGBA, bounds image.Rectangle, series []Point) {
	points := ChartPoints(bounds, series)
	if len(points) == 0 {
		return
	}
	src := image.NewUniform(LineColor)
	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	if len(points) == 1 {
		p := points[0]
		z.MoveTo(float32(p[0]-lineHalfWidth), float32(p[1]-lineHalfWidth))
		z.LineTo(float32(p[0]+lineHalfWidth), float32(p[1]-lineHalfWidth))
		z.LineTo(float32(p[0]+lineHalfWidth), float32(p[1]+lineHalfWidth))
		z.LineTo(float32(p[0]-lineHalfWidth), float32(p[1]+lineHalfWidth))
		z.ClosePath()
		z.Draw(dst, bounds, src, image.Point{})
		return
	}
	// Each segment is rasterised on its own so overlapping joints never cancel out.
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*lineHalfWidth, dx/length*lineHalfWidth
		z.Reset(bounds.Dx(), bounds.Dy())
		z.DrawOp = draw.Over
		z.MoveTo(float32(a[0]+nx), float32(a[1]+ny))
		z.LineTo(float32(b[0]+nx), float32(b[1]+ny))
		z.LineTo(float32(b[0]-nx), float32(b[1]-ny))
		z.LineTo(float32(a[0]-nx), float32(a[1]-ny))
		z.ClosePath()
		z.Draw(dst, bounds, src, image.Point{})
	}
}

func drawControls(dst *image.RGBA, controls ControlsView) {
	fill(dst, image.Rect(20, 440, Width-20, 441), border)
	render.DrawText(dst, "Simulation Controls", Width/2, 458, heading)

	label, buttonColor := "Pause", amber
	if controls.Paused {
		label, buttonColor = "Resume", emerald
	}
	fill(dst, image.Rect(20, 474, 175, 506), buttonColor)
	render.DrawText(dst, label, 97, 490, background)
	fill(dst, image.Rect(185, 474, Width-20, 506), neutralTile)
	render.DrawText(dst, "Reset", 262, 490, muted)

	density := controls.Density
	render.DrawText(dst, fmt.Sprintf("Traffic Density %.1f", density), Width/2, 524, muted)
	track := image.Rect(20, 540, Width-20, 546)
	fill(dst, track, border)
	fraction := (density - protocol.MinDensity) / (protocol.MaxDensity - protocol.MinDensity)
	fraction = math.Min(math.Max(fraction, 0), 1)
	knob := track.Min.X + int(math.Round(fraction*float64(track.Dx())))
	fill(dst, image.Rect(knob-5, 535, knob+5, 551), blue)
	render.DrawText(dst, "Low", 32, 564, faint)
	render.DrawText(dst, "High", Width-34, 564, faint)

	render.DrawText(dst, "connection: "+controls.Status.String(), Width/2, 586, faint)
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func drawFrame(dst *image.RGBA, r image.Rectangle, c color.Color) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fill(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}
