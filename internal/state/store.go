// Package state holds the single current view of the simulation connection.
package state

import (
	"sync/atomic"

	"intersection/viewer/internal/protocol"
)

// View is an immutable pairing of connection status and the latest snapshot.
type View struct {
	Status   protocol.ConnectionStatus
	Snapshot *protocol.Snapshot
	Version  uint64
}

// Store publishes views atomically. Writers replace the whole view; readers
// always observe one consistent status and snapshot pair.
type Store struct {
	view    atomic.Pointer[View]
	updates chan struct{}
}

// NewStore constructs a store in the Connecting state with no snapshot.
func NewStore() *Store {
	s := &Store{updates: make(chan struct{}, 1)}
	s.view.Store(&View{Status: protocol.Connecting})
	return s
}

// Current returns the status and snapshot from one published view.
func (s *Store) Current() (protocol.ConnectionStatus, *protocol.Snapshot) {
	v := s.View()
	return v.Status, v.Snapshot
}

// View returns the latest published view.
func (s *Store) View() View {
	if s == nil {
		return View{Status: protocol.Closed}
	}
	return *s.view.Load()
}

// Version increases by one on every mutation.
func (s *Store) Version() uint64 { return s.View().Version }

// ApplySnapshot replaces the held snapshot and marks the connection open.
func (s *Store) ApplySnapshot(snapshot *protocol.Snapshot) {
	if s == nil || snapshot == nil {
		return
	}
	s.publish(func(prev *View) View {
		return View{Status: protocol.Open, Snapshot: snapshot}
	})
}

// SetStatus changes the connection status and keeps the last snapshot.
func (s *Store) SetStatus(status protocol.ConnectionStatus) {
	if s == nil {
		return
	}
	s.publish(func(prev *View) View {
		return View{Status: status, Snapshot: prev.Snapshot}
	})
}

// Updates signals that at least one mutation happened since the last receive.
// Bursts coalesce into a single pending signal.
func (s *Store) Updates() <-chan struct{} { return s.updates }

func (s *Store) publish(next func(prev *View) View) {
	for {
		//1.- Build the successor from the currently published view.
		prev := s.view.Load()
		v := next(prev)
		v.Version = prev.Version + 1
		//2.- Swap only if nobody raced us, otherwise rebuild.
		if s.view.CompareAndSwap(prev, &v) {
			break
		}
	}
	//3.- Leave one pending wake-up for the render task.
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
