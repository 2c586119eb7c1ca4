package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/wilhg/workshop/internal/config"
	"github.com/wilhg/workshop/pkg/admin"
	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/engine"
	"github.com/wilhg/workshop/pkg/metrics"
	wotel "github.com/wilhg/workshop/pkg/otel"
	"github.com/wilhg/workshop/pkg/snapshot"
	"github.com/wilhg/workshop/pkg/store"
	"github.com/wilhg/workshop/pkg/store/entstore"
	"github.com/wilhg/workshop/pkg/store/fsstore"
	"github.com/wilhg/workshop/pkg/store/gormstore"
	"github.com/wilhg/workshop/pkg/store/memstore"
	"github.com/wilhg/workshop/pkg/store/redisstore"
	"github.com/wilhg/workshop/pkg/undo"
	"github.com/wilhg/workshop/pkg/workshop"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	blobs     store.BlobStore
	reg       *prometheus.Registry
	metrics   *metrics.Metrics
	session   string
	caretaker *snapshot.Caretaker[*workshop.Workshop]

	stopTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, traceOut io.Writer) (*app, error) {
	log, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, session: uuid.NewString(), reg: prometheus.NewRegistry()}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.metrics, err = metrics.New(a.reg); err != nil {
		return nil, err
	}

	a.stopTracing, err = wotel.Init(ctx, wotel.Config{
		ServiceVersion: version,
		UseStdout:      cfg.Trace.Stdout,
		Writer:         traceOut,
		SampleRatio:    cfg.Trace.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if a.blobs, err = openStore(ctx, cfg.Store); err != nil {
		_ = a.stopTracing(ctx)
		return nil, err
	}
	log.Info("blob store ready", zap.String("backend", cfg.Store.Backend), zap.String("session", a.session))

	opts := []snapshot.Option{
		snapshot.WithLogger(log),
		snapshot.WithMetrics(a.metrics),
		snapshot.WithRetention(cfg.Snapshot.Retention),
		snapshot.WithWriter(a.session),
		snapshot.WithAggregateSchema(workshop.Schema()),
	}
	if cfg.Snapshot.RecoverIndex {
		opts = append(opts, snapshot.WithIndexRecovery())
	}
	a.caretaker = snapshot.NewCaretaker(a.blobs, workshop.New, opts...)
	return a, nil
}

// openStore opens the blob store named by sc.Backend.
func openStore(ctx context.Context, sc config.StoreConfig) (store.BlobStore, error) {
	switch sc.Backend {
	case "fs":
		return fsstore.Open(sc.Dir)
	case "memory":
		return memstore.New(), nil
	case "sqlite", "postgres":
		st, err := entstore.Open(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "mysql":
		return gormstore.Open(sc.MySQLDSN)
	case "redis":
		rc := redisstore.DefaultConfig()
		rc.Addr = sc.Redis.Addr
		rc.Password = sc.Redis.Password
		rc.DB = sc.Redis.DB
		rc.KeyPrefix = sc.Redis.Prefix
		return redisstore.Open(ctx, rc)
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// load builds the engine, loads state and wraps it in the admin service.
func (a *app) load(ctx context.Context) (*admin.Service, error) {
	e := engine.New(a.caretaker, counters.NewRegistry(), workshop.New,
		engine.WithLogger(a.log),
		engine.WithMetrics(a.metrics),
		engine.WithCheckpointInterval(a.cfg.Snapshot.CheckpointInterval),
		engine.WithSessionID(a.session),
	)
	if err := e.LoadState(ctx); err != nil {
		return nil, err
	}
	return admin.New(e, a.metrics, undo.WithLimit(a.cfg.Undo.Limit))
}

func (a *app) close(ctx context.Context) {
	err := errors.Join(a.blobs.Close(), a.stopTracing(ctx))
	if err != nil {
		a.log.Warn("shutdown", zap.Error(err))
	}
	_ = a.log.Sync()
}

// withApp loads config and runs fn with a ready app.
func withApp(ctx context.Context, configPath string, traceOut io.Writer, fn func(*app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, traceOut)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))
	return fn(a)
}
