package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// Broadcaster defaults.
const (
	DefaultQueueSize = 256

	// sinkTimeout bounds a single sink delivery.
	sinkTimeout = 5 * time.Second

	// drainTimeout bounds how long Run waits for sinks at shutdown.
	drainTimeout = 2 * sinkTimeout
)

// Event is a transfer lifecycle notification: {"type": ..., "data": ...}.
type Event struct {
	Type transfer.EventType `json:"type"`
	Data *transfer.Transfer `json:"data"`
}

// Sink consumes events from the Broadcaster.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Handle delivers one event. Errors are logged; delivery is not retried.
	Handle(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, ev Event) error
}

// Name implements Sink.
func (f SinkFunc) Name() string { return f.SinkName }

// Handle implements Sink.
func (f SinkFunc) Handle(ctx context.Context, ev Event) error { return f.Fn(ctx, ev) }

// Logger defines the logging interface used by the Broadcaster.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster fans committed transfer events out to every registered sink.
//
// Publish enqueues into a bounded queue and never blocks: when the queue is
// full the event is dropped and counted. The dispatcher (Run) copies each
// event into a bounded per-sink queue served by that sink's own goroutine,
// so a stalled sink only delays itself. Every sink sees events in publish
// order; a sink whose queue is full loses the event.
//
// Thread Safety: all methods are safe for concurrent use.
type Broadcaster struct {
	queue  chan Event
	size   int
	logger Logger

	mu      sync.Mutex
	workers []*sinkWorker
	running bool
	wg      sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
}

// sinkWorker owns one sink and its queue.
type sinkWorker struct {
	sink  Sink
	queue chan Event
}

// NewBroadcaster creates a broadcaster with a queue of size events. Each
// sink gets a queue of the same size.
func NewBroadcaster(size int, logger Logger) *Broadcaster {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Broadcaster{
		queue:  make(chan Event, size),
		size:   size,
		logger: logger,
	}
}

// AddSink registers a sink. Sinks added while Run is active receive
// events dispatched after registration.
func (b *Broadcaster) AddSink(s Sink) {
	w := &sinkWorker{sink: s, queue: make(chan Event, b.size)}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.workers = append(b.workers, w)
	if b.running {
		b.start(w)
	}
}

// Publish implements transfer.Publisher.
func (b *Broadcaster) Publish(eventType transfer.EventType, t *transfer.Transfer) {
	select {
	case b.queue <- Event{Type: eventType, Data: t}:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		assetID := ""
		if t != nil {
			assetID = t.AssetID
		}
		b.logger.Warn("event queue full, dropping event", "type", eventType, "asset_id", assetID)
	}
}

// Run dispatches queued events until ctx is cancelled, then hands what is
// already queued to the sinks, waits up to the drain timeout for them to
// finish and returns nil.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	for _, w := range b.workers {
		b.start(w)
	}
	b.mu.Unlock()

	for {
		select {
		case ev := <-b.queue:
			b.dispatch(ev)
		case <-ctx.Done():
			b.shutdown()
			return nil
		}
	}
}

// start runs w until its queue is closed. Must be called with b.mu held.
func (b *Broadcaster) start(w *sinkWorker) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range w.queue {
			if err := b.deliver(w.sink, ev); err != nil {
				b.logger.Error("event sink failed", "sink", w.sink.Name(), "type", ev.Type, "error", err)
			}
		}
	}()
}

// shutdown flushes the queue to the sinks and waits for them to drain.
func (b *Broadcaster) shutdown() {
	for {
		select {
		case ev := <-b.queue:
			b.dispatch(ev)
			continue
		default:
		}
		break
	}

	b.mu.Lock()
	b.running = false
	for _, w := range b.workers {
		close(w.queue)
	}
	b.workers = nil
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		b.logger.Warn("event sinks still busy at shutdown", "timeout", drainTimeout)
	}
}

func (b *Broadcaster) dispatch(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range b.workers {
		select {
		case w.queue <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event sink lagging, dropping event", "sink", w.sink.Name(), "type", ev.Type)
		}
	}
}

func (b *Broadcaster) deliver(s Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	return s.Handle(ctx, ev)
}

// Stats reports how many events were queued and how many were lost, either
// at the shared queue or at a lagging sink.
func (b *Broadcaster) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}
