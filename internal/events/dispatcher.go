package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink receives security events. Emit must not block the caller.
type Sink interface {
	Emit(name string, severity Severity, fields map[string]any)
}

// EventHandler consumes a dispatched event.
type EventHandler func(context.Context, Event)

// Dispatcher buffers events and fans them out to handlers on a single
// goroutine. When the buffer is full new events are dropped and counted.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []EventHandler
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher with the given buffer size.
func NewDispatcher(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	d := &Dispatcher{
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Subscribe registers a handler for every event.
func (d *Dispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, handler)
}

// Emit enqueues an event without blocking.
func (d *Dispatcher) Emit(name string, severity Severity, fields map[string]any) {
	if d == nil || d.closed.Load() {
		return
	}
	event := Event{Name: name, Severity: severity, Fields: fields, At: time.Now()}
	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		safeHandle(handler, event)
	}
}

// a panicking handler must not stop delivery
func safeHandle(handler EventHandler, event Event) {
	defer func() { _ = recover() }()
	handler(context.Background(), event)
}

// Close drains buffered events and stops the dispatcher.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// ZapHandler writes events to logger. High severity events log at warn.
func ZapHandler(logger *zap.Logger) EventHandler {
	return func(_ context.Context, event Event) {
		fields := make([]zap.Field, 0, len(event.Fields)+3)
		fields = append(fields,
			zap.String("category", "security"),
			zap.String("event", event.Name),
			zap.String("severity", string(event.Severity)),
		)
		for k, v := range event.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if event.Severity == SeverityHigh {
			logger.Warn("security event", fields...)
			return
		}
		logger.Info("security event", fields...)
	}
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(string, Severity, map[string]any) {}
