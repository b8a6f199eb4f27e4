package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tendant/content-registry/pkg/registry"

// Registry stores typed content under unique names on top of one Storage
// backend. It must be initialized exactly once before use and never
// overwrites a registered name.
type Registry struct {
	storage   Storage
	eventSink EventSink
	logger    *slog.Logger
	tracer    trace.Tracer

	initMu      sync.Mutex
	initialized atomic.Bool
}

// Option represents a functional option for configuring the registry
type Option func(*Registry)

// WithStorage sets the storage backend for the registry
func WithStorage(storage Storage) Option {
	return func(r *Registry) {
		r.storage = storage
	}
}

// WithEventSink sets the event sink for the registry
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		r.eventSink = sink
	}
}

// WithLogger sets the logger for the registry
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracerProvider sets the tracer provider used for operation spans.
// The global provider is used when this option is not given.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a new registry with the given options. A storage backend is required.
func New(options ...Option) (*Registry, error) {
	r := &Registry{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}

	for _, option := range options {
		option(r)
	}

	if r.storage == nil {
		return nil, errors.New("storage is required")
	}

	return r, nil
}

// Initialize prepares the storage backend. It succeeds at most once; later
// calls fail with ErrAlreadyInitialized. If the backend fails to initialize
// the registry stays uninitialized.
func (r *Registry) Initialize(ctx context.Context) (err error) {
	ctx, span := r.startSpan(ctx, "initialize", "")
	defer func() { endSpan(span, err) }()

	r.initMu.Lock()
	defer r.initMu.Unlock()

	if r.initialized.Load() {
		return &OpError{Op: "initialize", Err: ErrAlreadyInitialized}
	}
	if err := r.storage.Initialize(ctx); err != nil {
		return &OpError{Op: "initialize", Err: fmt.Errorf("initialize storage: %w", err)}
	}

	r.initialized.Store(true)
	r.logger.DebugContext(ctx, "Registry initialized", "storage", fmt.Sprintf("%T", r.storage))
	return nil
}

// Initialized reports whether Initialize has completed.
func (r *Registry) Initialized() bool {
	return r.initialized.Load()
}

// Register stores content under name.
//
// The existence check and the backend add are two steps, so two callers
// racing on the same name can both pass the check. The backend add is atomic
// and only one of them wins; the loser gets ErrRegistrationFailed.
func (r *Registry) Register(ctx context.Context, name string, content Content) (err error) {
	ctx, span := r.startSpan(ctx, "register", name)
	defer func() { endSpan(span, err) }()

	if err := r.ensureInitialized(); err != nil {
		return &OpError{Op: "register", Name: name, Err: err}
	}
	if err := checkName(name); err != nil {
		return &OpError{Op: "register", Name: name, Err: err}
	}
	if content.IsZero() {
		return &OpError{Op: "register", Name: name, Err: fmt.Errorf("%w: content is required", ErrInvalidArgument)}
	}
	if !content.IsValid() {
		return &OpError{Op: "register", Name: name, Err: fmt.Errorf("%w: invalid %s content", ErrInvalidArgument, content.Kind())}
	}
	span.SetAttributes(attribute.String("registry.kind", content.Kind().String()))

	exists, err := r.storage.ContainsKey(ctx, name)
	if err != nil {
		return &OpError{Op: "register", Name: name, Err: err}
	}
	if exists {
		return &OpError{Op: "register", Name: name, Err: ErrAlreadyExists}
	}

	item, err := NewItem(name, content)
	if err != nil {
		return &OpError{Op: "register", Name: name, Err: err}
	}

	added, err := r.storage.TryAdd(ctx, name, item)
	if err != nil {
		return &OpError{Op: "register", Name: name, Err: err}
	}
	if !added {
		return &OpError{Op: "register", Name: name, Err: ErrRegistrationFailed}
	}

	if r.eventSink != nil {
		if err := r.eventSink.ItemRegistered(ctx, item); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish registration event", "name", name, "err", err)
		}
	}
	return nil
}

// Retrieve returns the content registered under name.
func (r *Registry) Retrieve(ctx context.Context, name string) (_ Content, err error) {
	ctx, span := r.startSpan(ctx, "retrieve", name)
	defer func() { endSpan(span, err) }()

	if err := r.ensureInitialized(); err != nil {
		return Content{}, &OpError{Op: "retrieve", Name: name, Err: err}
	}
	if err := checkName(name); err != nil {
		return Content{}, &OpError{Op: "retrieve", Name: name, Err: err}
	}

	item, found, err := r.storage.TryGet(ctx, name)
	if err != nil {
		return Content{}, &OpError{Op: "retrieve", Name: name, Err: err}
	}
	if !found || item == nil {
		return Content{}, &OpError{Op: "retrieve", Name: name, Err: ErrNotFound}
	}
	return item.Content, nil
}

// Deregister removes the item registered under name.
func (r *Registry) Deregister(ctx context.Context, name string) (err error) {
	ctx, span := r.startSpan(ctx, "deregister", name)
	defer func() { endSpan(span, err) }()

	if err := r.ensureInitialized(); err != nil {
		return &OpError{Op: "deregister", Name: name, Err: err}
	}
	if err := checkName(name); err != nil {
		return &OpError{Op: "deregister", Name: name, Err: err}
	}

	removed, err := r.storage.TryRemove(ctx, name)
	if err != nil {
		return &OpError{Op: "deregister", Name: name, Err: err}
	}
	if !removed {
		return &OpError{Op: "deregister", Name: name, Err: ErrNotFound}
	}

	if r.eventSink != nil {
		if err := r.eventSink.ItemDeregistered(ctx, name); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish deregistration event", "name", name, "err", err)
		}
	}
	return nil
}

// Contains reports whether an item is registered under name. A blank name is
// never registered and returns false without error.
func (r *Registry) Contains(ctx context.Context, name string) (_ bool, err error) {
	ctx, span := r.startSpan(ctx, "contains", name)
	defer func() { endSpan(span, err) }()

	if err := r.ensureInitialized(); err != nil {
		return false, &OpError{Op: "contains", Name: name, Err: err}
	}
	if strings.TrimSpace(name) == "" {
		return false, nil
	}

	exists, err := r.storage.ContainsKey(ctx, name)
	if err != nil {
		return false, &OpError{Op: "contains", Name: name, Err: err}
	}
	return exists, nil
}

// Close releases the storage backend if it holds resources.
func (r *Registry) Close() error {
	if closer, ok := r.storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (r *Registry) ensureInitialized() error {
	if !r.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: item name cannot be blank", ErrInvalidArgument)
	}
	return nil
}

func (r *Registry) startSpan(ctx context.Context, op, name string) (context.Context, trace.Span) {
	var opts []trace.SpanStartOption
	if name != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("registry.item", name)))
	}
	return r.tracer.Start(ctx, "registry."+op, opts...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
