package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	EventShown     = "shown"
	EventUpdated   = "updated"
	EventDismissed = "dismissed"
)

// Event describes one change to a toast.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	EventType string        `json:"event_type"`
	ToastID   string        `json:"toast_id"`
	Message   string        `json:"message"`
	IsError   bool          `json:"is_error"`
	Duration  time.Duration `json:"duration"`
}

// Sink receives emitted toast events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops toast events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes toast events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit queues event. When the buffer is full it waits until ctx is done and then
// drops the event.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
		return
	default:
	}
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// WriterSink renders toasts as terminal lines. Dismissals are silent.
type WriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{writer: w}
}

func (s *WriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil || event.EventType == EventDismissed {
		return
	}

	mark := "✔"
	if event.IsError {
		mark = "✘"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.writer, "%s %s\n", mark, event.Message)
}
