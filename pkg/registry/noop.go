package registry

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ItemRegistered does nothing and returns nil
func (n *NoopEventSink) ItemRegistered(ctx context.Context, item *Item) error {
	return nil
}

// ItemDeregistered does nothing and returns nil
func (n *NoopEventSink) ItemDeregistered(ctx context.Context, name string) error {
	return nil
}

// LogEventSink writes lifecycle events to a structured logger
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an event sink logging at info level. A nil logger
// uses slog.Default().
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) ItemRegistered(ctx context.Context, item *Item) error {
	s.logger.InfoContext(ctx, "Item registered", "name", item.Name, "kind", item.Content.Kind().String(), "bytes", len(item.Content.Raw()))
	return nil
}

func (s *LogEventSink) ItemDeregistered(ctx context.Context, name string) error {
	s.logger.InfoContext(ctx, "Item deregistered", "name", name)
	return nil
}
