package protocol

import "encoding/json"

// CommandKind names an outbound control command.
type CommandKind string

const (
	CommandStart      CommandKind = "start"
	CommandStop       CommandKind = "stop"
	CommandReset      CommandKind = "reset"
	CommandSetDensity CommandKind = "set_density"
)

// Density bounds accepted by the simulation. They are advisory: the viewer
// forwards whatever value the caller supplies.
const (
	MinDensity     = 0.1
	MaxDensity     = 0.8
	DefaultDensity = 0.3
)

// Known reports whether the kind is one the simulation understands.
func (k CommandKind) Known() bool {
	switch k {
	case CommandStart, CommandStop, CommandReset, CommandSetDensity:
		return true
	}
	return false
}

// Command is the outbound control message.
type Command struct {
	Type  CommandKind `json:"type"`
	Value *float64    `json:"value"`
}

// Float returns a pointer suitable for Command.Value.
func Float(v float64) *float64 { return &v }

// EncodeCommand serialises {type, value|null}.
func EncodeCommand(kind CommandKind, value *float64) ([]byte, error) {
	return json.Marshal(Command{Type: kind, Value: value})
}

// DecodeCommand parses an outbound command; used by fake servers and the HTTP control endpoint.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
