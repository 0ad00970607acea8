// Package controls holds the operator's pause toggle and density slider and
// turns them into simulation commands.
package controls

import (
	"math"
	"strings"
	"sync"

	"intersection/viewer/internal/protocol"
)

// DensityStep is the slider granularity.
const DensityStep = 0.1

// Sender transmits commands to the simulation.
type Sender interface {
	SendCommand(kind protocol.CommandKind, value *float64) bool
}

// State is the operator-visible control state.
type State struct {
	Paused  bool
	Density float64
}

// Action is an operator intent decoded from input.
type Action int

const (
	None Action = iota
	TogglePause
	Reset
	DensityUp
	DensityDown
)

func (a Action) String() string {
	switch a {
	case TogglePause:
		return "toggle_pause"
	case Reset:
		return "reset"
	case DensityUp:
		return "density_up"
	case DensityDown:
		return "density_down"
	default:
		return "none"
	}
}

// ActionForKey maps a key name to an action.
func ActionForKey(key string) Action {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "space", "p":
		return TogglePause
	case "r":
		return Reset
	case "up", "arrowup", "right", "arrowright":
		return DensityUp
	case "down", "arrowdown", "left", "arrowleft":
		return DensityDown
	default:
		return None
	}
}

// Panel mirrors the browser control panel: it remembers the pause state and
// slider position and forwards commands through a Sender.
type Panel struct {
	mu     sync.Mutex
	sender Sender
	state  State
}

// New starts unpaused with the slider at its default.
func New(sender Sender) *Panel {
	return &Panel{sender: sender, state: State{Density: protocol.DefaultDensity}}
}

// State returns the current control state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pause sends stop and marks the panel paused whether or not the command went out.
func (p *Panel) Pause() bool {
	sent := p.send(protocol.CommandStop, nil)
	p.mu.Lock()
	p.state.Paused = true
	p.mu.Unlock()
	return sent
}

// Resume sends start and clears the paused flag.
func (p *Panel) Resume() bool {
	sent := p.send(protocol.CommandStart, nil)
	p.mu.Lock()
	p.state.Paused = false
	p.mu.Unlock()
	return sent
}

// Toggle flips between Pause and Resume.
func (p *Panel) Toggle() bool {
	if p.State().Paused {
		return p.Resume()
	}
	return p.Pause()
}

// Reset asks the simulation to restart. The slider and pause flag are kept.
func (p *Panel) Reset() bool { return p.send(protocol.CommandReset, nil) }

// SetDensity snaps value onto the slider domain and sends it.
func (p *Panel) SetDensity(value float64) bool {
	snapped := SnapDensity(value)
	p.mu.Lock()
	p.state.Density = snapped
	p.mu.Unlock()
	return p.send(protocol.CommandSetDensity, protocol.Float(snapped))
}

// StepDensity moves the slider by steps notches. Moving past either end sends nothing.
func (p *Panel) StepDensity(steps int) bool {
	current := p.State().Density
	next := SnapDensity(current + float64(steps)*DensityStep)
	if next == current {
		return false
	}
	return p.SetDensity(next)
}

// Apply performs the action and reports whether a command was transmitted.
func (p *Panel) Apply(action Action) bool {
	switch action {
	case TogglePause:
		return p.Toggle()
	case Reset:
		return p.Reset()
	case DensityUp:
		return p.StepDensity(1)
	case DensityDown:
		return p.StepDensity(-1)
	default:
		return false
	}
}

// Forward sends cmd exactly as given and mirrors its effect on the panel:
// stop pauses, start resumes and set_density moves the slider to the nearest
// notch. The value itself is not validated.
func (p *Panel) Forward(cmd protocol.Command) bool {
	sent := p.send(cmd.Type, cmd.Value)
	p.mu.Lock()
	defer p.mu.Unlock()
	switch cmd.Type {
	case protocol.CommandStop:
		p.state.Paused = true
	case protocol.CommandStart:
		p.state.Paused = false
	case protocol.CommandSetDensity:
		if cmd.Value != nil {
			p.state.Density = SnapDensity(*cmd.Value)
		}
	}
	return sent
}

func (p *Panel) send(kind protocol.CommandKind, value *float64) bool {
	if p.sender == nil {
		return false
	}
	return p.sender.SendCommand(kind, value)
}

// SnapDensity clamps to [MinDensity, MaxDensity] and rounds to the nearest step.
func SnapDensity(value float64) float64 {
	if math.IsNaN(value) {
		return protocol.DefaultDensity
	}
	value = math.Min(math.Max(value, protocol.MinDensity), protocol.MaxDensity)
	return math.Round(value/DensityStep) / 10
}
