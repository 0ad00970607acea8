package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"intersection/viewer/internal/protocol"
)

const (
	// ConnectingMessage is shown whenever the connection is not open.
	ConnectingMessage = "Connecting to Server..."
	// WaitingMessage is shown while open but before the first snapshot.
	WaitingMessage = "Waiting for simulation data..."
)

var (
	veilColor = color.RGBA{0xb3, 0xb3, 0xb3, 0xb3} // white at 70% opacity, premultiplied
	textColor = color.RGBA{0x2c, 0x3e, 0x50, 0xff}
)

// OverlayMessage reports the status text for the current view, or "" when none applies.
func OverlayMessage(status protocol.ConnectionStatus, s *protocol.Snapshot) string {
	if status != protocol.Open {
		return ConnectingMessage
	}
	if s == nil {
		return WaitingMessage
	}
	return ""
}

// RenderFrame draws the scene and then the status overlay.
func (r *Renderer) RenderFrame(dst *image.RGBA, status protocol.ConnectionStatus, s *protocol.Snapshot) error {
	if err := r.Render(dst, s); err != nil {
		return err
	}
	DrawOverlay(dst, OverlayMessage(status, s))
	return nil
}

// DrawOverlay veils dst and centers message on it. An empty message is a no-op.
func DrawOverlay(dst *image.RGBA, message string) {
	if message == "" {
		return
	}
	b := dst.Bounds()
	fillRect(dst, float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y), veilColor)
	DrawText(dst, message, float64(b.Min.X+b.Max.X)/2, float64(b.Min.Y+b.Max.Y)/2, textColor)
}

// DrawText centers label horizontally on cx with its vertical middle at cy.
func DrawText(dst *image.RGBA, label string, cx, cy float64, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(label)
	metrics := face.Metrics()
	baseline := fixed.Int26_6(cy*64) + (metrics.Ascent-metrics.Descent)/2
	d.Dot = fixed.Point26_6{X: fixed.Int26_6(cx*64) - width/2, Y: baseline}
	d.DrawString(label)
}
