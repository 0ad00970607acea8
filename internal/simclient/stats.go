package simclient

import (
	"sync"

	"intersection/viewer/internal/protocol"
)

// Stats summarises traffic observed on one connection.
type Stats struct {
	SnapshotsApplied uint64
	DecodeFailures   uint64
	BytesReceived    uint64
	CommandsSent     map[protocol.CommandKind]uint64
	CommandsDropped  map[protocol.CommandKind]uint64
}

// TotalSent sums outbound commands across kinds.
func (s Stats) TotalSent() uint64 { return sum(s.CommandsSent) }

// TotalDropped sums commands discarded because the connection was not open.
func (s Stats) TotalDropped() uint64 { return sum(s.CommandsDropped) }

func sum(counts map[protocol.CommandKind]uint64) uint64 {
	var total uint64
	for _, n := range counts {
		total += n
	}
	return total
}

// counters tracks inbound and outbound traffic for a client.
type counters struct {
	mu       sync.RWMutex
	applied  uint64
	failures uint64
	bytes    uint64
	sent     map[protocol.CommandKind]uint64
	dropped  map[protocol.CommandKind]uint64
}

func newCounters() *counters {
	return &counters{
		sent:    make(map[protocol.CommandKind]uint64),
		dropped: make(map[protocol.CommandKind]uint64),
	}
}

func (c *counters) observeFrame(size int, decoded bool) {
	//1.- Clamp negative sizes so byte totals never wrap.
	if size < 0 {
		size = 0
	}
	//2.- Count the frame as applied or rejected while holding the mutex.
	c.mu.Lock()
	c.bytes += uint64(size)
	if decoded {
		c.applied++
	} else {
		c.failures++
	}
	c.mu.Unlock()
}

func (c *counters) observeCommand(kind protocol.CommandKind, sent bool) {
	c.mu.Lock()
	if sent {
		c.sent[kind]++
	} else {
		c.dropped[kind]++
	}
	c.mu.Unlock()
}

func (c *counters) snapshot() Stats {
	//1.- Copy the maps so callers can iterate without racing the reader goroutine.
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := Stats{
		SnapshotsApplied: c.applied,
		DecodeFailures:   c.failures,
		BytesReceived:    c.bytes,
		CommandsSent:     make(map[protocol.CommandKind]uint64, len(c.sent)),
		CommandsDropped:  make(map[protocol.CommandKind]uint64, len(c.dropped)),
	}
	for kind, n := range c.sent {
		out.CommandsSent[kind] = n
	}
	for kind, n := range c.dropped {
		out.CommandsDropped[kind] = n
	}
	return out
}
