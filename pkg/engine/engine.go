// Package engine drives the lifecycle of the live aggregate root: it starts
// Unloaded, LoadState moves it to Loaded exactly once, and from then on
// mutations run against the live root and SaveState checkpoints it through
// the snapshot caretaker.
package engine

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wilhg/workshop/pkg/aggregate"
	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/errmodel"
	"github.com/wilhg/workshop/pkg/metrics"
	"github.com/wilhg/workshop/pkg/snapshot"
)

// Checkpoint triggers, used as a metrics label.
const (
	TriggerManual   = "manual"
	TriggerInterval = "interval"
	TriggerShutdown = "shutdown"
)

var (
	// ErrNotLoaded is returned by operations that need a loaded root.
	ErrNotLoaded = errmodel.Usage("not_loaded", "state has not been loaded", nil)
	// ErrAlreadyLoaded is returned by a second LoadState.
	ErrAlreadyLoaded = errmodel.Usage("already_loaded", "state was already loaded", nil)
)

// Engine owns the live root and the identifier counters. It has no locking;
// wrap it in a Guard when handlers run on several goroutines.
type Engine[T aggregate.Root[T]] struct {
	ct      *snapshot.Caretaker[T]
	reg     *counters.Registry
	newRoot func() T

	log      *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	interval int
	session  string

	root       T
	loaded     bool
	loadedFrom snapshot.ID
	pending    int
}

// Option configures the Engine at construction time.
type Option func(*options)

type options struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	interval int
	session  string
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithCheckpointInterval saves state after every n successful mutations.
// n <= 0 disables automatic checkpoints.
func WithCheckpointInterval(n int) Option { return func(o *options) { o.interval = n } }

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option { return func(o *options) { o.session = id } }

// New returns an Unloaded engine. newRoot builds the empty root used when
// no snapshot can be loaded.
func New[T aggregate.Root[T]](ct *snapshot.Caretaker[T], reg *counters.Registry, newRoot func() T, opts ...Option) *Engine[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.session == "" {
		o.session = uuid.NewString()
	}
	return &Engine[T]{
		ct:       ct,
		reg:      reg,
		newRoot:  newRoot,
		log:      o.log.With(zap.String("session", o.session)),
		metrics:  o.metrics,
		tracer:   otel.Tracer("engine"),
		interval: o.interval,
		session:  o.session,
	}
}

// LoadState installs the newest usable snapshot, or an empty root when there
// is none, and restores the counters captured with it.
func (e *Engine[T]) LoadState(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "Engine.LoadState", trace.WithAttributes(
		attribute.String("session.id", e.session),
	))
	defer span.End()

	if e.loaded {
		return ErrAlreadyLoaded
	}
	if err := e.ct.LoadIndex(ctx); err != nil {
		span.RecordError(err)
		e.log.Error("snapshot index unusable; continuing with an empty history", zap.Error(err))
	}

	snap, ok := e.ct.Load(ctx)
	if !ok {
		if err := e.reg.Restore(nil); err != nil {
			return err
		}
		e.root = e.newRoot()
		e.loaded = true
		e.log.Info("no snapshot found; starting empty", zap.Int("evicted", len(e.ct.Evicted())))
		return nil
	}
	if err := e.reg.Restore(snap.Counters()); err != nil {
		span.RecordError(err)
		return err
	}
	e.root = snap.Root()
	e.loadedFrom = snap.ID()
	e.loaded = true
	span.SetAttributes(attribute.Int64("snapshot.id", int64(snap.ID())))
	e.log.Info("state loaded",
		zap.Uint64("snapshot_id", uint64(snap.ID())),
		zap.Time("created_at", snap.CreatedAt()),
		zap.Int("evicted", len(e.ct.Evicted())),
	)
	return nil
}

// SaveState checkpoints the live root. A failed save is returned as a fatal
// error wrapping the storage cause; it is not retried.
func (e *Engine[T]) SaveState(ctx context.Context) (snapshot.ID, error) {
	return e.Checkpoint(ctx, TriggerManual)
}

// Checkpoint is SaveState with an explicit trigger label.
func (e *Engine[T]) Checkpoint(ctx context.Context, trigger string) (snapshot.ID, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.SaveState", trace.WithAttributes(
		attribute.String("checkpoint.trigger", trigger),
	))
	defer span.End()

	if !e.loaded {
		return 0, ErrNotLoaded
	}
	id, err := e.ct.Save(ctx, e.root, e.reg.Capture())
	if err != nil {
		span.RecordError(err)
		e.log.Error("checkpoint failed", zap.String("trigger", trigger), zap.Error(err))
		return 0, errmodel.Fatal("persist_failed", "state could not be persisted", map[string]any{"trigger": trigger}, err)
	}
	e.pending = 0
	e.metrics.Checkpoint(trigger)
	span.SetAttributes(attribute.Int64("snapshot.id", int64(id)))
	return id, nil
}

// Mutate runs fn against the live root. With a checkpoint interval set,
// every n-th successful mutation is followed by a checkpoint whose error,
// if any, is returned.
func (e *Engine[T]) Mutate(ctx context.Context, fn func(T) error) error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if err := fn(e.root); err != nil {
		return err
	}
	e.pending++
	if e.interval > 0 && e.pending >= e.interval {
		if _, err := e.Checkpoint(ctx, TriggerInterval); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the live root. Mutations should go through Mutate so
// checkpoints are counted.
func (e *Engine[T]) Root() T { return e.root }

func (e *Engine[T]) Counters() *counters.Registry { return e.reg }

func (e *Engine[T]) Caretaker() *snapshot.Caretaker[T] { return e.ct }

func (e *Engine[T]) Loaded() bool { return e.loaded }

func (e *Engine[T]) Session() string { return e.session }

// LoadedFrom is the id of the snapshot LoadState installed, or 0.
func (e *Engine[T]) LoadedFrom() snapshot.ID { return e.loadedFrom }

// Dirty reports whether mutations happened since the last checkpoint.
func (e *Engine[T]) Dirty() bool { return e.pending > 0 }
