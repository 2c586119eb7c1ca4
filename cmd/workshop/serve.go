package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/wilhg/workshop/pkg/admin"
	"github.com/wilhg/workshop/pkg/errmodel"
)

func newServeCmd(configPath func() string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load state and serve the HTTP admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				if addr == "" {
					addr = a.cfg.Addr
				}
				svc, err := a.load(ctx)
				if err != nil {
					return err
				}
				return serve(ctx, a, svc, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config addr)")
	return cmd
}

func serve(ctx context.Context, a *app, svc *admin.Service, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           buildMux(svc, a.reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()
	a.log.Info("admin api listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}
	saved, err := svc.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	a.log.Info("stopped", zap.Bool("saved", saved))
	return nil
}

// buildMux wires the admin API. Every error goes out in the errmodel envelope.
func buildMux(svc *admin.Service, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/snapshots", func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Snapshots()
		respond(w, r, list, err)
	})
	mux.HandleFunc("POST /api/checkpoint", func(w http.ResponseWriter, r *http.Request) {
		id, err := svc.Checkpoint(r.Context())
		respond(w, r, map[string]any{"id": id, "created_at": id.Time()}, err)
	})
	mux.HandleFunc("GET /api/stock", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Stock()
		respond(w, r, st, err)
	})
	mux.HandleFunc("POST /api/stock/products", func(w http.ResponseWriter, r *http.Request) {
		var in admin.ProductInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			errmodel.WriteHTTP(w, r, errmodel.Validation("bad_request", "invalid JSON body", map[string]any{"detail": err.Error()}))
			return
		}
		p, err := svc.AddProduct(r.Context(), in)
		respond(w, r, p, err)
	})
	mux.HandleFunc("POST /api/stock/undo", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Undo(r.Context())
		respond(w, r, st, err)
	})
	mux.HandleFunc("POST /api/stock/redo", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Redo(r.Context())
		respond(w, r, st, err)
	})
	return otelhttp.NewHandler(mux, "workshop.admin")
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
