package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
)

type point struct{ x, y float64 }

// fillRect paints the axis-aligned rectangle [x0,x1)x[y0,y1), clipped to dst.
func fillRect(dst *image.RGBA, x0, y0, x1, y1 float64, c color.Color) {
	rect := image.Rect(pixelEdge(x0), pixelEdge(y0), pixelEdge(x1), pixelEdge(y1)).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// pixelEdge maps a continuous edge onto the first pixel whose center lies beyond it.
func pixelEdge(v float64) int { return int(math.Ceil(v - 0.5)) }

// fillPolygon scan-converts a closed polygon by sampling pixel centers with the
// even-odd rule. Output is clipped to dst, so glyphs may extend off the surface.
func fillPolygon(dst *image.RGBA, pts []point, c color.RGBA) {
	if len(pts) < 3 {
		return
	}
	bounds := dst.Bounds()
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		minY = math.Min(minY, p.y)
		maxY = math.Max(maxY, p.y)
	}
	yStart := max(pixelEdge(minY), bounds.Min.Y)
	yEnd := min(pixelEdge(maxY), bounds.Max.Y)

	nodes := make([]float64, 0, len(pts))
	for y := yStart; y < yEnd; y++ {
		//1.- Collect edge crossings at the pixel-center scanline.
		fy := float64(y) + 0.5
		nodes = nodes[:0]
		for i := range pts {
			a, b := pts[i], pts[(i+1)%len(pts)]
			if (a.y <= fy && b.y > fy) || (b.y <= fy && a.y > fy) {
				nodes = append(nodes, a.x+(fy-a.y)/(b.y-a.y)*(b.x-a.x))
			}
		}
		sort.Float64s(nodes)
		//2.- Fill between crossing pairs.
		for i := 0; i+1 < len(nodes); i += 2 {
			xs := max(pixelEdge(nodes[i]), bounds.Min.X)
			xe := min(pixelEdge(nodes[i+1]), bounds.Max.X)
			for x := xs; x < xe; x++ {
				blend(dst, x, y, c)
			}
		}
	}
}

// blend composites c over the pixel at (x, y).
func blend(dst *image.RGBA, x, y int, c color.RGBA) {
	off := dst.PixOffset(x, y)
	if c.A == 0xff {
		dst.Pix[off], dst.Pix[off+1], dst.Pix[off+2], dst.Pix[off+3] = c.R, c.G, c.B, 0xff
		return
	}
	inv := uint32(0xff - c.A)
	dst.Pix[off] = uint8((uint32(dst.Pix[off])*inv)/0xff) + c.R
	dst.Pix[off+1] = uint8((uint32(dst.Pix[off+1])*inv)/0xff) + c.G
	dst.Pix[off+2] = uint8((uint32(dst.Pix[off+2])*inv)/0xff) + c.B
	dst.Pix[off+3] = uint8((uint32(dst.Pix[off+3])*inv)/0xff) + c.A
}

// circle approximates a disc with a regular polygon.
func circle(cx, cy, radius float64, segments int) []point {
	pts := make([]point, segments)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		pts[i] = point{x: cx + radius*math.Cos(theta), y: cy + radius*math.Sin(theta)}
	}
	return pts
}
