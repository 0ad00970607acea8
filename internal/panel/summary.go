// Package panel draws the live analytics and control side panel.
package panel

import (
	"strconv"

	"intersection/viewer/internal/protocol"
)

const (
	// NorthSouthFlow is the phase label while the north-south group is green.
	NorthSouthFlow = "North-South Flow"
	// EastWestFlow is the phase label otherwise.
	EastWestFlow = "East-West Flow"
)

// Point is one sample of the queue history chart.
type Point struct {
	Step  int
	Queue float64
}

// Summary is the text and series shown for one snapshot.
type Summary struct {
	TotalQueue string
	AvgWait    string
	Phase      string
	NSGreen    bool
	History    []Point
}

// Summarize derives the panel content. It reports false when there is no snapshot yet.
func Summarize(s *protocol.Snapshot) (Summary, bool) {
	if s == nil {
		return Summary{}, false
	}
	return Summary{
		TotalQueue: strconv.Itoa(s.Metrics.TotalQueue),
		AvgWait:    FormatWait(s.Metrics.AvgWaitTime),
		Phase:      Phase(s.Lights),
		NSGreen:    s.Lights.NorthSouth == "green",
		History:    Series(s.Metrics.History),
	}, true
}

// Phase names the active flow. Anything other than a green north-south group
// reads as east-west, including both groups green.
func Phase(lights protocol.LightPair) string {
	if lights.NorthSouth == "green" {
		return NorthSouthFlow
	}
	return EastWestFlow
}

// FormatWait prints the average wait the way the simulation reports it, in seconds.
func FormatWait(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s"
}

// Series indexes history samples from oldest to newest.
func Series(history []float64) []Point {
	points := make([]Point, len(history))
	for i, v := range history {
		points[i] = Point{Step: i, Queue: v}
	}
	return points
}
