package snapshot

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gschema "github.com/google/jsonschema-go/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/workshop/pkg/aggregate"
	"github.com/wilhg/workshop/pkg/counters"
)

// Wire formats written into every payload.
const (
	SnapshotFormat = "workshop.snapshot/v1"
	IndexFormat    = "workshop.history/v1"
)

type envelope struct {
	Format    string            `json:"format"`
	ID        ID                `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Writer    string            `json:"writer,omitempty"`
	Counters  counters.Captured `json:"counters"`
	Aggregate json.RawMessage   `json:"aggregate"`
}

type indexDoc struct {
	Format    string    `json:"format"`
	Snapshots []ID      `json:"snapshots"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ptr[T any](v T) *T { return &v }

// SnapshotSchema describes a snapshot payload.
func SnapshotSchema() *gschema.Schema {
	return &gschema.Schema{
		Title:    "workshop snapshot",
		Type:     "object",
		Required: []string{"format", "id", "created_at", "counters", "aggregate"},
		Properties: map[string]*gschema.Schema{
			"format":     {Type: "string", Enum: []any{SnapshotFormat}},
			"id":         {Type: "integer", Minimum: ptr(1.0)},
			"created_at": {Type: "string", MinLength: ptr(1)},
			"writer":     {Type: "string"},
			"counters": {
				Types:                []string{"object", "null"},
				AdditionalProperties: &gschema.Schema{Type: "integer", Minimum: ptr(0.0)},
			},
			"aggregate": {Not: &gschema.Schema{Type: "null"}},
		},
	}
}

// IndexSchema describes the caretaker's history index.
func IndexSchema() *gschema.Schema {
	return &gschema.Schema{
		Title:    "workshop snapshot history",
		Type:     "object",
		Required: []string{"format", "snapshots"},
		Properties: map[string]*gschema.Schema{
			"format":     {Type: "string", Enum: []any{IndexFormat}},
			"snapshots":  {Type: "array", Items: &gschema.Schema{Type: "integer", Minimum: ptr(1.0)}},
			"updated_at": {Type: "string"},
		},
	}
}

type validators struct {
	snapshot *jsonschema.Schema
	index    *jsonschema.Schema
}

var compiled = sync.OnceValues(func() (*validators, error) {
	snap, err := compileSchema("mem://snapshot.schema.json", SnapshotSchema())
	if err != nil {
		return nil, err
	}
	idx, err := compileSchema("mem://history.schema.json", IndexSchema())
	if err != nil {
		return nil, err
	}
	return &validators{snapshot: snap, index: idx}, nil
})

func compileSchema(url string, s *gschema.Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func validate(sch *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

func encodeSnapshot[T aggregate.Root[T]](s Snapshot[T]) ([]byte, error) {
	agg, err := json.Marshal(s.root)
	if err != nil {
		return nil, fmt.Errorf("encode aggregate: %w", err)
	}
	env := envelope{
		Format:    SnapshotFormat,
		ID:        s.id,
		CreatedAt: s.createdAt,
		Writer:    s.writer,
		Counters:  s.counters,
		Aggregate: agg,
	}
	return json.MarshalIndent(env, "", "  ")
}

// decodeSnapshot validates data against the snapshot schema and decodes it
// into a value obtained from blank. A non-nil agg is checked against the raw
// aggregate, and a root implementing aggregate.Validator is checked after
// decoding.
func decodeSnapshot[T aggregate.Root[T]](data []byte, blank func() T, agg *jsonschema.Schema) (Snapshot[T], error) {
	v, err := compiled()
	if err != nil {
		return Snapshot[T]{}, err
	}
	if err := validate(v.snapshot, data); err != nil {
		return Snapshot[T]{}, fmt.Errorf("schema: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot[T]{}, fmt.Errorf("envelope: %w", err)
	}
	if agg != nil {
		if err := validate(agg, env.Aggregate); err != nil {
			return Snapshot[T]{}, fmt.Errorf("aggregate schema: %w", err)
		}
	}
	root := blank()
	if err := json.Unmarshal(env.Aggregate, &root); err != nil {
		return Snapshot[T]{}, fmt.Errorf("aggregate: %w", err)
	}
	if v, ok := any(root).(aggregate.Validator); ok {
		if err := v.Validate(); err != nil {
			return Snapshot[T]{}, fmt.Errorf("aggregate: %w", err)
		}
	}
	return Snapshot[T]{
		id:        env.ID,
		root:      root,
		counters:  env.Counters,
		createdAt: env.CreatedAt,
		writer:    env.Writer,
	}, nil
}

func encodeIndex(ids []ID, at time.Time) ([]byte, error) {
	if ids == nil {
		ids = []ID{}
	}
	return json.MarshalIndent(indexDoc{Format: IndexFormat, Snapshots: ids, UpdatedAt: at}, "", "  ")
}

func decodeIndex(data []byte) ([]ID, error) {
	v, err := compiled()
	if err != nil {
		return nil, err
	}
	if err := validate(v.index, data); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	var doc indexDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for i := 1; i < len(doc.Snapshots); i++ {
		if doc.Snapshots[i] <= doc.Snapshots[i-1] {
			return nil, fmt.Errorf("ids not strictly increasing at position %d", i)
		}
	}
	return doc.Snapshots, nil
}
