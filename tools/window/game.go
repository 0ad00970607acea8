// Package window shows the live viewer frames in a desktop window.
package window

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"

	"intersection/viewer/internal/controls"
	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/panel"
	"intersection/viewer/internal/viewer"
)

const (
	// Width and Height size the window: scene on the left, panel on the right.
	Width  = 800 + panel.Width
	Height = 600

	hintSize = 11
)

var (
	watchedKeys = []ebiten.Key{
		ebiten.KeySpace, ebiten.KeyP, ebiten.KeyR,
		ebiten.KeyArrowUp, ebiten.KeyArrowDown, ebiten.KeyArrowLeft, ebiten.KeyArrowRight,
	}
	hintColor = color.RGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff}
)

// Source is what the window needs from the running viewer.
type Source interface {
	Latest() *viewer.Frame
	Apply(action controls.Action) bool
	SessionID() string
}

// Game implements ebiten.Game over the latest published frame.
type Game struct {
	source Source
	logger *logging.Logger
	face   *text.GoTextFace

	scene    *ebiten.Image
	side     *ebiten.Image
	sequence uint64
}

// New prepares the window. The font is optional; without it the key hint is skipped.
func New(source Source, logger *logging.Logger) *Game {
	if logger == nil {
		logger = logging.L()
	}
	g := &Game{source: source, logger: logger.With(logging.String("component", "window"))}
	fontSource, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		g.logger.Warn("hint font unavailable", logging.Error(err))
	} else {
		g.face = &text.GoTextFace{Source: fontSource, Size: hintSize}
	}
	return g
}

// Update turns key presses into control actions.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	for _, key := range watchedKeys {
		if !inpututil.IsKeyJustPressed(key) {
			continue
		}
		action := controls.ActionForKey(key.String())
		sent := g.source.Apply(action)
		g.logger.Debug("control applied", logging.String("action", action.String()), logging.Bool("sent", sent))
	}
	return nil
}

// Draw blits the scene and panel. Textures are only re-uploaded when a new frame was published.
func (g *Game) Draw(screen *ebiten.Image) {
	frame := g.source.Latest()
	if frame == nil {
		screen.Fill(color.Black)
		return
	}
	if g.scene == nil || frame.Sequence != g.sequence {
		g.scene = ebiten.NewImageFromImage(frame.Scene)
		g.side = nil
		if frame.Panel != nil {
			g.side = ebiten.NewImageFromImage(frame.Panel)
		}
		g.sequence = frame.Sequence
	}

	screen.DrawImage(g.scene, nil)
	if g.side != nil {
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(frame.Scene.Bounds().Dx()), 0)
		screen.DrawImage(g.side, op)
	}
	g.drawHint(screen, frame)
}

func (g *Game) drawHint(screen *ebiten.Image, frame *viewer.Frame) {
	if g.face == nil {
		return
	}
	label := fmt.Sprintf("Space pause  R reset  Up/Down density  Esc quit  [%s]", frame.Status)
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(frame.Scene.Bounds().Dx())+20, Height-24)
	op.ColorScale.ScaleWithColor(hintColor)
	text.Draw(screen, label, g.face, op)
}

// Layout keeps a fixed logical size.
func (g *Game) Layout(int, int) (int, int) { return Width, Height }

// Title names the window after the session.
func Title(source Source) string {
	return fmt.Sprintf("Traffic Intersection Viewer (%s)", shortID(source.SessionID()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

