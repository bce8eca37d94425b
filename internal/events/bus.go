package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the number of recent events kept in memory.
const DefaultBufferSize = 256

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Sink receives every emitted event, e.g. for persistence or forwarding.
type Sink interface {
	Append(e Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e Event) error

func (f SinkFunc) Append(e Event) error { return f(e) }

// Bus validates, buffers and fans out audit events.
type Bus struct {
	buffer *RingBuffer
	logger *slog.Logger
	total  atomic.Uint64

	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
	sinks       []Sink
	sinkFailed  bool
}

// NewBus creates a bus keeping the last size events.
func NewBus(size int, logger *slog.Logger) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		buffer:      NewRingBuffer(size),
		logger:      logger,
		subscribers: make(map[Subscriber]struct{}),
	}
}

// AddSink registers a sink for all future events.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Emit records an event and returns its JSON encoding.
func (b *Bus) Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	b.buffer.Add(e)
	b.total.Add(1)

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Append(e); err != nil {
			b.reportSinkFailure(err)
		}
	}

	b.broadcast(e)

	out, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return out, nil
}

// reportSinkFailure records the first sink failure as system.error. It goes
// straight into the buffer; emitting it would hit the failing sink again.
func (b *Bus) reportSinkFailure(err error) {
	b.mu.Lock()
	first := !b.sinkFailed
	b.sinkFailed = true
	b.mu.Unlock()

	if !first {
		b.logger.Debug("event sink append failed", slog.String("error", err.Error()))
		return
	}
	b.logger.Warn("event sink append failed", slog.String("error", err.Error()))
	b.buffer.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event sink append failed",
		Fields: map[string]interface{}{
			"error": err.Error(),
		},
	})
	b.total.Add(1)
}

// Snapshot returns all buffered events, oldest first.
func (b *Bus) Snapshot() []Event {
	return b.buffer.Snapshot()
}

// RecentEvents returns the last n events from the ring buffer.
// If n is zero or exceeds the available events, all are returned.
func (b *Bus) RecentEvents(n int) []Event {
	return b.buffer.Last(n)
}

// TotalCount returns the number of events recorded since creation.
func (b *Bus) TotalCount() uint64 {
	return b.total.Load()
}

// Clear drops all buffered events. The total count is kept.
func (b *Bus) Clear() {
	b.buffer.Clear()
}
