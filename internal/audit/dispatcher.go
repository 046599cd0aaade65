package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSinkTimeout = 5 * time.Second

// Config controls how lifecycle events reach the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of making sign-in, refresh and registration
	// wait for queue space.
	DropIfFull bool
	// SinkTimeout bounds one delivery. NATS publishes are network calls.
	SinkTimeout time.Duration
}

// Dispatcher queues registration, session and account events and hands them to a
// sink from one background goroutine, in the order they were accepted.
type Dispatcher struct {
	sink        Sink
	dropIfFull  bool
	sinkTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event

	drained chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled. A nil *Dispatcher accepts and
// discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:        sink,
		dropIfFull:  cfg.DropIfFull,
		sinkTimeout: cfg.SinkTimeout,
		queue:       make(chan Event, cfg.BufferSize),
		drained:     make(chan struct{}),
	}
	go d.deliverAll()
	return d
}

func (d *Dispatcher) deliverAll() {
	defer close(d.drained)
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
		d.sink.Emit(ctx, event)
		cancel()
	}
}

// Emit queues event and stamps it when Timestamp is zero. In blocking mode it
// gives up when ctx ends.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close refuses new events and returns once the queued ones reached the sink.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.drained
}

// Dropped counts events that never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
