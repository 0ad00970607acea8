package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// MaxHistory bounds the queue history carried by a snapshot.
const MaxHistory = 20

// Lane identifies one of the four approaches to the intersection.
type Lane int

const (
	North Lane = iota
	South
	East
	West
)

// Lanes lists every approach in wire order.
var Lanes = [...]Lane{North, South, East, West}

// Valid reports whether the lane is one of the four known approaches.
func (l Lane) Valid() bool { return l >= North && l <= West }

func (l Lane) String() string {
	switch l {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return fmt.Sprintf("lane(%d)", int(l))
	}
}

// Vehicle is a single car as reported by the simulation.
type Vehicle struct {
	ID       int
	Lane     Lane
	Position float64
	// Speed is optional; the viewer carries it but never interprets it.
	Speed *float64
}

// LightPair holds the two independent signal groups.
type LightPair struct {
	NorthSouth string
	EastWest   string
}

// Metrics are the pre-computed analytics attached to a snapshot.
type Metrics struct {
	TotalQueue  int
	AvgWaitTime float64
	History     []float64
	Step        *int
}

// Snapshot is one complete description of simulation state at a tick.
// Values returned by DecodeSnapshot must be treated as read-only.
type Snapshot struct {
	Lights   LightPair
	Vehicles []Vehicle
	Metrics  Metrics
}

// Clone returns a deep copy so callers never share slices with the original.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := &Snapshot{Lights: s.Lights, Metrics: s.Metrics}
	if s.Vehicles != nil {
		clone.Vehicles = make([]Vehicle, len(s.Vehicles))
		for i, v := range s.Vehicles {
			if v.Speed != nil {
				speed := *v.Speed
				v.Speed = &speed
			}
			clone.Vehicles[i] = v
		}
	}
	if s.Metrics.History != nil {
		clone.Metrics.History = append([]float64(nil), s.Metrics.History...)
	}
	if s.Metrics.Step != nil {
		step := *s.Metrics.Step
		clone.Metrics.Step = &step
	}
	return clone
}

// DecodeError reports an inbound payload that could not be turned into a Snapshot.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode snapshot: %s: %v", e.Reason, e.Err)
	}
	return "decode snapshot: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err carries a DecodeError.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

func decodeFailure(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}

// wireSnapshot mirrors the JSON layout emitted by the simulation server. Pointer
// fields distinguish "absent" from zero values.
type wireSnapshot struct {
	Lights   *wireLights   `json:"lights"`
	Vehicles []wireVehicle `json:"vehicles"`
	Metrics  *wireMetrics  `json:"metrics"`
}

type wireLights struct {
	NorthSouth *string `json:"north_south"`
	EastWest   *string `json:"east_west"`
}

type wireVehicle struct {
	ID       *int     `json:"id"`
	Lane     *int     `json:"lane"`
	Position *float64 `json:"position"`
	Speed    *float64 `json:"speed,omitempty"`
}

type wireMetrics struct {
	TotalQueue  *int      `json:"total_queue"`
	AvgWaitTime *float64  `json:"avg_wait_time"`
	History     []float64 `json:"history"`
	Step        *int      `json:"step,omitempty"`
}

// DecodeSnapshot parses one websocket frame into a Snapshot. Any structural
// problem yields a *DecodeError and no partial value.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	//1.- Reject empty frames before handing them to the JSON decoder.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, decodeFailure("empty payload", nil)
	}
	var wire wireSnapshot
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, decodeFailure("invalid json", err)
	}

	//2.- Required substructures must be present.
	if wire.Lights == nil {
		return nil, decodeFailure("missing lights", nil)
	}
	if wire.Lights.NorthSouth == nil || wire.Lights.EastWest == nil {
		return nil, decodeFailure("incomplete lights", nil)
	}
	if wire.Metrics == nil {
		return nil, decodeFailure("missing metrics", nil)
	}
	if wire.Metrics.TotalQueue == nil || wire.Metrics.AvgWaitTime == nil {
		return nil, decodeFailure("incomplete metrics", nil)
	}
	if *wire.Metrics.TotalQueue < 0 {
		return nil, decodeFailure(fmt.Sprintf("negative total_queue %d", *wire.Metrics.TotalQueue), nil)
	}
	if *wire.Metrics.AvgWaitTime < 0 {
		return nil, decodeFailure(fmt.Sprintf("negative avg_wait_time %g", *wire.Metrics.AvgWaitTime), nil)
	}

	snapshot := &Snapshot{
		Lights: LightPair{NorthSouth: *wire.Lights.NorthSouth, EastWest: *wire.Lights.EastWest},
		Metrics: Metrics{
			TotalQueue:  *wire.Metrics.TotalQueue,
			AvgWaitTime: *wire.Metrics.AvgWaitTime,
			Step:        wire.Metrics.Step,
		},
	}

	//3.- Keep only the most recent history samples.
	history := wire.Metrics.History
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	snapshot.Metrics.History = append([]float64{}, history...)

	//4.- Vehicles may be absent; each present vehicle must be complete.
	if len(wire.Vehicles) > 0 {
		snapshot.Vehicles = make([]Vehicle, 0, len(wire.Vehicles))
	}
	for i, v := range wire.Vehicles {
		if v.ID == nil || v.Lane == nil || v.Position == nil {
			return nil, decodeFailure(fmt.Sprintf("vehicle %d missing id, lane or position", i), nil)
		}
		if *v.ID < 0 {
			return nil, decodeFailure(fmt.Sprintf("vehicle %d has negative id %d", i, *v.ID), nil)
		}
		lane := Lane(*v.Lane)
		if !lane.Valid() {
			return nil, decodeFailure(fmt.Sprintf("vehicle %d has unknown lane %d", *v.ID, *v.Lane), nil)
		}
		if math.IsNaN(*v.Position) || math.IsInf(*v.Position, 0) {
			return nil, decodeFailure(fmt.Sprintf("vehicle %d has non-finite position", *v.ID), nil)
		}
		snapshot.Vehicles = append(snapshot.Vehicles, Vehicle{ID: *v.ID, Lane: lane, Position: *v.Position, Speed: v.Speed})
	}
	return snapshot, nil
}

// EncodeSnapshot renders a snapshot back into the wire layout. It is used by
// the recorder and by test servers.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.New("snapshot is nil")
	}
	ns, ew := s.Lights.NorthSouth, s.Lights.EastWest
	total, wait := s.Metrics.TotalQueue, s.Metrics.AvgWaitTime
	wire := wireSnapshot{
		Lights:   &wireLights{NorthSouth: &ns, EastWest: &ew},
		Vehicles: make([]wireVehicle, 0, len(s.Vehicles)),
		Metrics: &wireMetrics{
			TotalQueue:  &total,
			AvgWaitTime: &wait,
			History:     append([]float64{}, s.Metrics.History...),
			Step:        s.Metrics.Step,
		},
	}
	for _, v := range s.Vehicles {
		id, lane, pos := v.ID, int(v.Lane), v.Position
		wire.Vehicles = append(wire.Vehicles, wireVehicle{ID: &id, Lane: &lane, Position: &pos, Speed: v.Speed})
	}
	return json.Marshal(wire)
}
