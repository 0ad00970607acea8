package state

import (
	"sync"
	"testing"

	"intersection/viewer/internal/protocol"
)

func snapshotWithQueue(queue int, lights string) *protocol.Snapshot {
	return &protocol.Snapshot{
		Lights:  protocol.LightPair{NorthSouth: lights, EastWest: lights},
		Metrics: protocol.Metrics{TotalQueue: queue, History: []float64{float64(queue)}},
		Vehicles: []protocol.Vehicle{
			{ID: queue, Lane: protocol.North, Position: float64(queue)},
		},
	}
}

func TestNewStoreStartsConnecting(t *testing.T) {
	store := NewStore()
	status, snap := store.Current()
	if status != protocol.Connecting {
		t.Fatalf("expected connecting, got %v", status)
	}
	if snap != nil {
		t.Fatalf("expected no snapshot, got %+v", snap)
	}
	if store.Version() != 0 {
		t.Fatalf("expected version 0, got %d", store.Version())
	}
}

func TestApplySnapshotReplacesAndOpens(t *testing.T) {
	store := NewStore()
	first := snapshotWithQueue(1, "red")
	second := snapshotWithQueue(2, "green")

	store.ApplySnapshot(first)
	store.ApplySnapshot(second)

	status, snap := store.Current()
	if status != protocol.Open {
		t.Fatalf("expected open, got %v", status)
	}
	if snap != second {
		t.Fatalf("expected the second snapshot to fully replace the first")
	}
	if store.Version() != 2 {
		t.Fatalf("expected version 2, got %d", store.Version())
	}
}

func TestClosedKeepsLastSnapshot(t *testing.T) {
	store := NewStore()
	snap := snapshotWithQueue(4, "green")
	store.ApplySnapshot(snap)
	store.SetStatus(protocol.Closed)

	status, held := store.Current()
	if status != protocol.Closed {
		t.Fatalf("expected closed, got %v", status)
	}
	if held != snap {
		t.Fatalf("expected the last snapshot to survive the close")
	}
}

func TestApplyNilSnapshotIsIgnored(t *testing.T) {
	store := NewStore()
	store.ApplySnapshot(nil)
	if status, _ := store.Current(); status != protocol.Connecting {
		t.Fatalf("nil snapshot must not change status, got %v", status)
	}
}

func TestUpdatesCoalesce(t *testing.T) {
	store := NewStore()
	store.SetStatus(protocol.Open)
	store.ApplySnapshot(snapshotWithQueue(1, "red"))
	store.ApplySnapshot(snapshotWithQueue(2, "red"))

	select {
	case <-store.Updates():
	default:
		t.Fatalf("expected a pending update signal")
	}
	select {
	case <-store.Updates():
		t.Fatalf("expected bursts to coalesce into one signal")
	default:
	}
}

func TestReadersNeverObserveMixedSnapshots(t *testing.T) {
	store := NewStore()
	a := snapshotWithQueue(1, "red")
	b := snapshotWithQueue(2, "green")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			if i%2 == 0 {
				store.ApplySnapshot(a)
			} else {
				store.ApplySnapshot(b)
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		_, snap := store.Current()
		if snap == nil {
			continue
		}
		// Each snapshot is internally consistent: queue, lights and vehicle agree.
		switch snap.Metrics.TotalQueue {
		case 1:
			if snap.Lights.NorthSouth != "red" || snap.Vehicles[0].ID != 1 {
				t.Fatalf("observed a mixed view: %+v", snap)
			}
		case 2:
			if snap.Lights.NorthSouth != "green" || snap.Vehicles[0].ID != 2 {
				t.Fatalf("observed a mixed view: %+v", snap)
			}
		default:
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	store.ApplySnapshot(snapshotWithQueue(1, "red"))
	store.SetStatus(protocol.Open)
	if status, snap := store.Current(); status != protocol.Closed || snap != nil {
		t.Fatalf("nil store should report closed with no snapshot")
	}
}
