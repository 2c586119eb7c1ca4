package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/admin"
	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/engine"
	"github.com/wilhg/workshop/pkg/metrics"
	"github.com/wilhg/workshop/pkg/snapshot"
	"github.com/wilhg/workshop/pkg/store/entstore"
	"github.com/wilhg/workshop/pkg/workshop"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	if got := getEnv("FOO", "default"); got != "bar" {
		t.Fatalf("getEnv returned %q, want %q", got, "bar")
	}
	if got := getEnv("MISSING", "default"); got != "default" {
		t.Fatalf("getEnv returned %q, want %q", got, "default")
	}
}

func TestAdminAPI_StockLifecycle(t *testing.T) {
	ctx := context.Background()
	st, err := entstore.Open(ctx, "sqlite:file:httptest?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	ct := snapshot.NewCaretaker(st, workshop.New, snapshot.WithMetrics(m))
	e := engine.New(ct, counters.NewRegistry(), workshop.New, engine.WithMetrics(m))
	require.NoError(t, e.LoadState(ctx))
	svc, err := admin.New(e, m)
	require.NoError(t, err)

	srv := httptest.NewServer(buildMux(svc, reg))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// add product
	res, err = http.Post(srv.URL+"/api/stock/products", "application/json",
		bytes.NewBufferString(`{"name":"Wiper blade","sku":"WB-1","quantity":6,"unit_cents":1800}`))
	require.NoError(t, err)
	var p workshop.Product
	require.NoError(t, json.NewDecoder(res.Body).Decode(&p))
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, uint64(1), p.ID)

	// duplicate sku maps to 409
	res, err = http.Post(srv.URL+"/api/stock/products", "application/json",
		bytes.NewBufferString(`{"name":"Other","sku":"WB-1"}`))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res, err = http.Post(srv.URL+"/api/stock/products", "application/json", bytes.NewBufferString(`{`))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// checkpoint
	res, err = http.Post(srv.URL+"/api/checkpoint", "application/json", nil)
	require.NoError(t, err)
	var cp struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&cp))
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotZero(t, cp.ID)

	res, err = http.Get(srv.URL + "/api/snapshots")
	require.NoError(t, err)
	var list admin.SnapshotList
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	_ = res.Body.Close()
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, cp.ID, uint64(list.Snapshots[0].ID))

	// undo, then a second undo has nothing left
	res, err = http.Post(srv.URL+"/api/stock/undo", "application/json", nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Post(srv.URL+"/api/stock/undo", "application/json", nil)
	require.NoError(t, err)
	var envelope struct {
		Error struct {
			Category string `json:"category"`
			Code     string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	_ = res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "usage", envelope.Error.Category)

	res, err = http.Post(srv.URL+"/api/stock/redo", "application/json", nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/api/stock")
	require.NoError(t, err)
	var stock workshop.Stock
	require.NoError(t, json.NewDecoder(res.Body).Decode(&stock))
	_ = res.Body.Close()
	assert.Len(t, stock.Products, 1)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(res.Body)
	_ = res.Body.Close()
	assert.Contains(t, body.String(), "workshop_snapshot_saves_total")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandsOverFilesystemStore(t *testing.T) {
	t.Setenv("WORKSHOP_STORE_BACKEND", "fs")
	t.Setenv("WORKSHOP_STORE_DIR", t.TempDir())
	t.Setenv("WORKSHOP_LOG_LEVEL", "error")

	out, err := run(t, "seed")
	require.NoError(t, err)
	var seeded struct {
		SnapshotID uint64 `json:"snapshot_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	require.NotZero(t, seeded.SnapshotID)
	id := snapshot.ID(seeded.SnapshotID).String()

	out, err = run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, "inspect", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"Oil filter"`)

	out, err = run(t, "diff", id, id)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, id+": ok")

	out, err = run(t, "reindex")
	require.NoError(t, err)
	assert.Equal(t, "indexed 1 snapshot(s)\n", out)

	_, err = run(t, "inspect", "not-a-number")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "workshop dev"))
}
