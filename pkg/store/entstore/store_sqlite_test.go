package entstore

import (
	"context"
	"path/filepath"
	"testing"

	"entgo.io/ent/dialect"

	"github.com/wilhg/workshop/pkg/store"
	"github.com/wilhg/workshop/pkg/store/storetest"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite:file:" + filepath.Join(t.TempDir(), "blobs.sqlite") + "?_pragma=busy_timeout(5000)"
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.BlobStore { return openSQLite(t) })
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	st := openSQLite(t)
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSQLiteListIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	st := openSQLite(t)
	t.Cleanup(func() { _ = st.Close() })

	for _, k := range []string{"snapshots/1", "SNAPSHOTS/2"} {
		if err := st.Put(ctx, k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := st.List(ctx, "snapshots/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "snapshots/1" {
		t.Fatalf("keys=%v want [snapshots/1]", keys)
	}
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		in      string
		driver  string
		dialect string
		wantErr bool
	}{
		{in: "sqlite:file:x.db", driver: "sqlite3", dialect: dialect.SQLite},
		{in: "postgres://u:p@localhost:5432/db?sslmode=disable", driver: "pgx", dialect: dialect.Postgres},
		{in: "host=localhost user=u dbname=db", driver: "pgx", dialect: dialect.Postgres},
		{in: "mysql://u@h/db", wantErr: true},
		{in: "nonsense", wantErr: true},
	}
	for _, c := range cases {
		drv, _, dia, err := parseURL(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseURL(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || drv != c.driver || dia != c.dialect {
			t.Errorf("parseURL(%q)=%s,%s,%v", c.in, drv, dia, err)
		}
	}
}
