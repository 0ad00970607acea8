package protocol

// ConnectionStatus tracks the lifecycle of one simulation connection.
type ConnectionStatus int32

const (
	Connecting ConnectionStatus = iota
	Open
	Closed
)

func (s ConnectionStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
