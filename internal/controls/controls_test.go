package controls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intersection/viewer/internal/protocol"
)

type fakeSender struct {
	open bool
	sent []protocol.Command
}

func (f *fakeSender) SendCommand(kind protocol.CommandKind, value *float64) bool {
	if !f.open {
		return false
	}
	f.sent = append(f.sent, protocol.Command{Type: kind, Value: value})
	return true
}

func TestDefaults(t *testing.T) {
	panel := New(&fakeSender{open: true})
	assert.Equal(t, State{Paused: false, Density: 0.3}, panel.State())
}

func TestToggleAlternatesStopAndStart(t *testing.T) {
	sender := &fakeSender{open: true}
	panel := New(sender)

	require.True(t, panel.Toggle())
	assert.True(t, panel.State().Paused)
	require.True(t, panel.Toggle())
	assert.False(t, panel.State().Paused)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, protocol.CommandStop, sender.sent[0].Type)
	assert.Nil(t, sender.sent[0].Value)
	assert.Equal(t, protocol.CommandStart, sender.sent[1].Type)
}

func TestPauseFlagFlipsEvenWhenDropped(t *testing.T) {
	panel := New(&fakeSender{open: false})
	assert.False(t, panel.Pause())
	assert.True(t, panel.State().Paused)
}

func TestResetKeepsState(t *testing.T) {
	sender := &fakeSender{open: true}
	panel := New(sender)
	panel.Pause()
	panel.SetDensity(0.6)
	require.True(t, panel.Reset())
	assert.Equal(t, State{Paused: true, Density: 0.6}, panel.State())
	assert.Equal(t, protocol.CommandReset, sender.sent[len(sender.sent)-1].Type)
}

func TestSetDensitySnapsToSlider(t *testing.T) {
	sender := &fakeSender{open: true}
	panel := New(sender)

	panel.SetDensity(0.55)
	assert.Equal(t, 0.6, panel.State().Density)
	panel.SetDensity(5)
	assert.Equal(t, 0.8, panel.State().Density)
	panel.SetDensity(-1)
	assert.Equal(t, 0.1, panel.State().Density)

	require.Len(t, sender.sent, 3)
	for _, cmd := range sender.sent {
		assert.Equal(t, protocol.CommandSetDensity, cmd.Type)
		require.NotNil(t, cmd.Value)
	}
	assert.Equal(t, 0.6, *sender.sent[0].Value)
}

func TestStepDensityStopsAtBounds(t *testing.T) {
	sender := &fakeSender{open: true}
	panel := New(sender)

	for i := 0; i < 10; i++ {
		panel.StepDensity(1)
	}
	assert.Equal(t, 0.8, panel.State().Density)
	assert.Len(t, sender.sent, 5, "0.3 to 0.8 is five notches")

	assert.False(t, panel.StepDensity(1))
	assert.True(t, panel.StepDensity(-1))
	assert.Equal(t, 0.7, panel.State().Density)
}

func TestApplyKeys(t *testing.T) {
	sender := &fakeSender{open: true}
	panel := New(sender)

	assert.Equal(t, TogglePause, ActionForKey("Space"))
	assert.Equal(t, TogglePause, ActionForKey("p"))
	assert.Equal(t, Reset, ActionForKey("R"))
	assert.Equal(t, DensityUp, ActionForKey("ArrowUp"))
	assert.Equal(t, DensityDown, ActionForKey("down"))
	assert.Equal(t, None, ActionForKey("q"))

	panel.Apply(ActionForKey("space"))
	panel.Apply(ActionForKey("up"))
	panel.Apply(ActionForKey("r"))
	assert.False(t, panel.Apply(None))

	require.Len(t, sender.sent, 3)
	assert.Equal(t, protocol.CommandStop, sender.sent[0].Type)
	assert.Equal(t, protocol.CommandSetDensity, sender.sent[1].Type)
	assert.Equal(t, 0.4, *sender.sent[1].Value)
	assert.Equal(t, protocol.CommandReset, sender.sent[2].Type)
}

func TestNilSenderNeverSends(t *testing.T) {
	panel := New(nil)
	assert.False(t, panel.Reset())
	assert.False(t, panel.SetDensity(0.5))
	assert.Equal(t, 0.5, panel.State().Density)
}

func TestSnapDensity(t *testing.T) {
	assert.Equal(t, 0.3, SnapDensity(0.3))
	assert.Equal(t, 0.1, SnapDensity(0.04))
	assert.Equal(t, 0.8, SnapDensity(0.84))
	assert.Equal(t, 0.3, SnapDensity(math.NaN()))
}

func TestForwardSendsRawValueAndMirrorsState(t *testing.T) {
	sender := &fakeSender{open: true}
	panel := New(sender)

	require.True(t, panel.Forward(protocol.Command{Type: protocol.CommandSetDensity, Value: protocol.Float(1.5)}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 1.5, *sender.sent[0].Value)
	assert.Equal(t, 0.8, panel.State().Density)

	panel.Forward(protocol.Command{Type: protocol.CommandStop})
	assert.True(t, panel.State().Paused)
	panel.Forward(protocol.Command{Type: protocol.CommandStart})
	assert.False(t, panel.State().Paused)

	closed := New(&fakeSender{open: false})
	assert.False(t, closed.Forward(protocol.Command{Type: protocol.CommandStop}))
	assert.True(t, closed.State().Paused)
}
