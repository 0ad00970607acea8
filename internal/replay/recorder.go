package replay

import (
	"bytes"
	"encoding/json"
	"image/png"
	"sync"
	"sync/atomic"

	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/viewer"
)

// DefaultQueueSize bounds how many records may wait for the disk writer.
const DefaultQueueSize = 256

type record struct {
	kind    EventKind
	payload []byte
	frame   *viewer.Frame
}

// Recorder adapts live viewer traffic into a bundle. It satisfies both the
// sync client's observer hooks and the orchestrator's frame sink; callbacks
// only enqueue, and a single goroutine owns the writer.
type Recorder struct {
	writer *Writer
	logger *logging.Logger
	queue  chan record

	mu     sync.RWMutex
	closed bool

	dropped  atomic.Uint64
	failures atomic.Uint64
	done     chan struct{}
	once     sync.Once
	closeErr error
}

// NewRecorder starts draining records into writer.
func NewRecorder(writer *Writer, logger *logging.Logger, queueSize int) *Recorder {
	if logger == nil {
		logger = logging.L()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		writer: writer,
		logger: logger.With(logging.String("bundle", writer.Directory())),
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// ObserveSnapshot records the raw snapshot payload exactly as received.
func (r *Recorder) ObserveSnapshot(raw []byte, _ *protocol.Snapshot) {
	r.enqueue(record{kind: EventSnapshot, payload: append([]byte(nil), raw...)})
}

// ObserveCommand records a command attempt and whether it reached the socket.
func (r *Recorder) ObserveCommand(cmd protocol.Command, sent bool) {
	payload, err := json.Marshal(CommandEvent{Command: cmd, Sent: sent})
	if err != nil {
		r.failures.Add(1)
		return
	}
	r.enqueue(record{kind: EventCommand, payload: payload})
}

// ObserveStatus records a connection status transition.
func (r *Recorder) ObserveStatus(status protocol.ConnectionStatus) {
	payload, _ := json.Marshal(StatusEvent{Status: status.String()})
	r.enqueue(record{kind: EventStatus, payload: payload})
}

// RecordFrame queues a published scene frame; PNG encoding happens off the render path.
func (r *Recorder) RecordFrame(frame *viewer.Frame) {
	if frame == nil || frame.Scene == nil {
		return
	}
	r.enqueue(record{kind: EventFrame, frame: frame})
}

// Dropped reports records discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Failures reports records that could not be encoded or written.
func (r *Recorder) Failures() uint64 { return r.failures.Load() }

// Close stops accepting records, drains the queue and closes the bundle.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
		r.closeErr = r.writer.Close()
		if dropped := r.dropped.Load(); dropped > 0 {
			r.logger.Warn("recorder dropped records", logging.Uint64("dropped", dropped))
		}
	})
	return r.closeErr
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	var buf bytes.Buffer
	for rec := range r.queue {
		var err error
		if rec.kind == EventFrame {
			//1.- Frames are encoded here so the render task never waits on PNG compression.
			buf.Reset()
			if err = png.Encode(&buf, rec.frame.Scene); err == nil {
				err = r.writer.AppendFrame(rec.frame.Sequence, buf.Bytes())
			}
		} else {
			err = r.writer.AppendEvent(rec.kind, rec.payload)
		}
		if err != nil {
			r.failures.Add(1)
			r.logger.Warn("failed to record", logging.String("type", string(rec.kind)), logging.Error(err))
		}
	}
}
