package snapshot

import (
	"context"
	"fmt"
	"slices"
	"time"

	gschema "github.com/google/jsonschema-go/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wilhg/workshop/pkg/aggregate"
	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/errmodel"
	"github.com/wilhg/workshop/pkg/metrics"
	"github.com/wilhg/workshop/pkg/store"
)

// Caretaker owns the snapshot history of one aggregate root. It is not safe
// for concurrent use.
type Caretaker[T aggregate.Root[T]] struct {
	blobs     store.BlobStore
	blank     func() T
	aggregate *jsonschema.Schema

	log          *zap.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	retention    int
	writer       string
	recoverIndex bool

	ids     idClock
	history []ID
	evicted []ID
}

// Option configures a Caretaker at construction time.
type Option func(*options)

type options struct {
	log          *zap.Logger
	now          func() time.Time
	retention    int
	metrics      *metrics.Metrics
	writer       string
	recoverIndex bool
	aggregate    *gschema.Schema
}

// WithLogger sets the logger. Evictions are logged at warn level.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithRetention keeps at most n snapshots; older payloads are deleted after
// a successful save. n <= 0 keeps everything.
func WithRetention(n int) Option { return func(o *options) { o.retention = n } }

// WithMetrics reports saves, loads and evictions.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithWriter records the writing session in every payload.
func WithWriter(session string) Option { return func(o *options) { o.writer = session } }

// WithIndexRecovery rebuilds an absent or unreadable index from the stored
// snapshot keys instead of starting with an empty history.
func WithIndexRecovery() Option { return func(o *options) { o.recoverIndex = true } }

// WithAggregateSchema checks the aggregate of every payload read against s
// before decoding it. A mismatch is a corruption, so Load falls back to an
// older snapshot.
func WithAggregateSchema(s *gschema.Schema) Option { return func(o *options) { o.aggregate = s } }

// NewCaretaker returns a caretaker with an empty history. Call LoadIndex to
// pick up the persisted one. blank returns an empty value payloads are
// decoded into. It panics if the WithAggregateSchema schema does not compile.
func NewCaretaker[T aggregate.Root[T]](blobs store.BlobStore, blank func() T, opts ...Option) *Caretaker[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	var agg *jsonschema.Schema
	if o.aggregate != nil {
		var err error
		if agg, err = compileSchema("mem://aggregate.schema.json", o.aggregate); err != nil {
			panic(fmt.Sprintf("snapshot: aggregate schema: %v", err))
		}
	}
	return &Caretaker[T]{
		blobs:        blobs,
		blank:        blank,
		aggregate:    agg,
		log:          o.log,
		metrics:      o.metrics,
		tracer:       otel.Tracer("snapshot/caretaker"),
		retention:    o.retention,
		writer:       o.writer,
		recoverIndex: o.recoverIndex,
		ids:          idClock{now: o.now},
	}
}

// History returns a copy of the ids, oldest first.
func (c *Caretaker[T]) History() []ID { return slices.Clone(c.history) }

// Evicted returns the ids Load dropped during this session.
func (c *Caretaker[T]) Evicted() []ID { return slices.Clone(c.evicted) }

// Save captures root and counters under a new id. The payload is written
// before the id is appended; if the payload write fails the history is left
// unchanged, and if the index write fails the append is rolled back.
func (c *Caretaker[T]) Save(ctx context.Context, root T, captured counters.Captured) (ID, error) {
	ctx, span := c.tracer.Start(ctx, "Caretaker.Save")
	defer span.End()
	start := time.Now()

	id := c.ids.next()
	span.SetAttributes(attribute.Int64("snapshot.id", int64(id)))
	snap := New(id, root, captured, c.ids.now().UTC())
	snap.writer = c.writer

	data, err := encodeSnapshot(snap)
	if err != nil {
		c.metrics.ObserveSave(false, 0)
		span.RecordError(err)
		return 0, errmodel.System("snapshot_encode_failed", "snapshot could not be encoded", map[string]any{"id": uint64(id)}, err)
	}
	if err := c.blobs.Put(ctx, id.Key(), data); err != nil {
		c.metrics.ObserveSave(false, 0)
		span.RecordError(err)
		c.log.Warn("snapshot write failed", zap.Uint64("snapshot_id", uint64(id)), zap.Error(err))
		return 0, errmodel.IO("snapshot_write_failed", "snapshot payload could not be written", map[string]any{"id": uint64(id)}, err)
	}

	next := append(slices.Clone(c.history), id)
	var dropped []ID
	if c.retention > 0 && len(next) > c.retention {
		cut := len(next) - c.retention
		dropped = slices.Clone(next[:cut])
		next = next[cut:]
	}
	if err := c.writeIndex(ctx, next); err != nil {
		c.metrics.ObserveSave(false, 0)
		span.RecordError(err)
		c.log.Warn("index write failed; snapshot left unindexed", zap.Uint64("snapshot_id", uint64(id)), zap.Error(err))
		return 0, errmodel.IO("index_write_failed", "snapshot history could not be written", map[string]any{"id": uint64(id)}, err)
	}
	c.history = next
	c.metrics.ObserveSave(true, time.Since(start))
	c.metrics.SetHistoryLen(len(c.history))

	for _, old := range dropped {
		if err := c.blobs.Delete(ctx, old.Key()); err != nil {
			c.log.Warn("retention delete failed", zap.Uint64("snapshot_id", uint64(old)), zap.Error(err))
		}
	}
	c.log.Debug("snapshot saved", zap.Uint64("snapshot_id", uint64(id)), zap.Int("history", len(c.history)))
	return id, nil
}

// Load returns the newest snapshot that still reads and decodes. Entries
// that fail are evicted from the history before trying the next one, so a
// later Load never reads them again. The bool is false when nothing usable
// is left.
func (c *Caretaker[T]) Load(ctx context.Context) (Snapshot[T], bool) {
	ctx, span := c.tracer.Start(ctx, "Caretaker.Load", trace.WithAttributes(
		attribute.Int("history.len", len(c.history)),
	))
	defer span.End()

	for i := len(c.history) - 1; i >= 0; i-- {
		id := c.history[i]
		snap, err := c.read(ctx, id)
		if err == nil {
			span.SetAttributes(attribute.Int64("snapshot.id", int64(id)))
			c.metrics.SetHistoryLen(len(c.history))
			c.metrics.ObserveLoad(true)
			return snap, true
		}
		ce := errmodel.From(err)
		c.history = slices.Delete(c.history, i, i+1)
		c.evicted = append(c.evicted, id)
		c.metrics.Evicted(ce.Category)
		c.log.Warn("evicting unusable snapshot",
			zap.Uint64("snapshot_id", uint64(id)),
			zap.String("category", ce.Category),
			zap.String("code", ce.Code),
			zap.Error(err),
		)
	}
	c.metrics.SetHistoryLen(len(c.history))
	c.metrics.ObserveLoad(false)
	return Snapshot[T]{}, false
}

// Inspect reads one snapshot without touching the history.
func (c *Caretaker[T]) Inspect(ctx context.Context, id ID) (Snapshot[T], error) {
	return c.read(ctx, id)
}

func (c *Caretaker[T]) read(ctx context.Context, id ID) (Snapshot[T], error) {
	ctxMap := map[string]any{"id": uint64(id)}
	data, err := c.blobs.Get(ctx, id.Key())
	if err != nil {
		return Snapshot[T]{}, errmodel.IO("snapshot_read_failed", "snapshot payload could not be read", ctxMap, err)
	}
	snap, err := decodeSnapshot(data, c.blank, c.aggregate)
	if err != nil {
		return Snapshot[T]{}, errmodel.Corruption("snapshot_corrupt", "snapshot payload failed to decode", ctxMap, err)
	}
	if snap.id != id {
		return Snapshot[T]{}, errmodel.Corruption("snapshot_id_mismatch", "snapshot payload carries another id", map[string]any{"id": uint64(id), "payload_id": uint64(snap.id)}, nil)
	}
	return snap, nil
}

// LoadIndex replaces the in-memory history with the persisted index. An
// absent index yields an empty history and no error. An unreadable or
// corrupt index also yields an empty history, plus a categorized error the
// caller should log; with WithIndexRecovery the history is rebuilt from the
// stored snapshot keys instead.
func (c *Caretaker[T]) LoadIndex(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Caretaker.LoadIndex")
	defer span.End()

	c.history = nil
	data, err := c.blobs.Get(ctx, indexKey)
	switch {
	case store.IsNotFound(err):
		if c.recoverIndex {
			return c.recover(ctx, nil)
		}
		return nil
	case err != nil:
		span.RecordError(err)
		return c.recover(ctx, errmodel.IO("index_read_failed", "snapshot history could not be read", nil, err))
	}
	ids, err := decodeIndex(data)
	if err != nil {
		span.RecordError(err)
		return c.recover(ctx, errmodel.Corruption("index_corrupt", "snapshot history failed to decode", nil, err))
	}
	c.history = ids
	c.ids.observe(ids...)
	c.metrics.SetHistoryLen(len(c.history))
	return nil
}

// recover rebuilds the history from the stored keys when index recovery is
// enabled, and otherwise returns cause unchanged.
func (c *Caretaker[T]) recover(ctx context.Context, cause error) error {
	if !c.recoverIndex {
		return cause
	}
	ids, err := c.scan(ctx)
	if err != nil {
		if cause != nil {
			return cause
		}
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if cause != nil {
		c.log.Warn("rebuilding snapshot history from stored keys", zap.Error(cause), zap.Int("found", len(ids)))
	}
	c.history = ids
	c.ids.observe(ids...)
	c.metrics.SetHistoryLen(len(c.history))
	if err := c.writeIndex(ctx, ids); err != nil {
		c.log.Warn("rebuilt history not persisted", zap.Error(err))
	}
	return nil
}

// RebuildIndex replaces the history with every snapshot key found in the
// store and persists it.
func (c *Caretaker[T]) RebuildIndex(ctx context.Context) error {
	ids, err := c.scan(ctx)
	if err != nil {
		return err
	}
	if err := c.writeIndex(ctx, ids); err != nil {
		return errmodel.IO("index_write_failed", "snapshot history could not be written", nil, err)
	}
	c.history = ids
	c.ids.observe(ids...)
	c.metrics.SetHistoryLen(len(c.history))
	return nil
}

func (c *Caretaker[T]) scan(ctx context.Context) ([]ID, error) {
	keys, err := c.blobs.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, errmodel.IO("snapshot_list_failed", "snapshot keys could not be listed", nil, err)
	}
	ids := make([]ID, 0, len(keys))
	for _, k := range keys {
		if id, ok := ParseKey(k); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (c *Caretaker[T]) writeIndex(ctx context.Context, ids []ID) error {
	data, err := encodeIndex(ids, c.ids.now().UTC())
	if err != nil {
		return err
	}
	return c.blobs.Put(ctx, indexKey, data)
}

// Check is the outcome of verifying one stored snapshot.
type Check struct {
	ID ID
	// Indexed is false for payloads found in the store but absent from the history.
	Indexed bool
	Err     error
}

func (ch Check) OK() bool { return ch.Err == nil }

// Verify reads every indexed snapshot, plus any unindexed payload found in
// the store, without modifying the history.
func (c *Caretaker[T]) Verify(ctx context.Context) []Check {
	ctx, span := c.tracer.Start(ctx, "Caretaker.Verify")
	defer span.End()

	checks := make([]Check, 0, len(c.history))
	seen := make(map[ID]bool, len(c.history))
	for _, id := range c.history {
		seen[id] = true
		_, err := c.read(ctx, id)
		checks = append(checks, Check{ID: id, Indexed: true, Err: err})
	}
	stored, err := c.scan(ctx)
	if err != nil {
		c.log.Warn("verify could not list stored snapshots", zap.Error(err))
		return checks
	}
	for _, id := range stored {
		if seen[id] {
			continue
		}
		_, err := c.read(ctx, id)
		checks = append(checks, Check{ID: id, Err: err})
	}
	return checks
}
