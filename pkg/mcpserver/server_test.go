package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/admin"
	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/engine"
	"github.com/wilhg/workshop/pkg/snapshot"
	"github.com/wilhg/workshop/pkg/store/memstore"
	"github.com/wilhg/workshop/pkg/workshop"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { at = at.Add(time.Second); return at }
	ct := snapshot.NewCaretaker(memstore.New(), workshop.New, snapshot.WithClock(clock))
	e := engine.New(ct, counters.NewRegistry(), workshop.New)
	require.NoError(t, e.LoadState(ctx))
	svc, err := admin.New(e, nil)
	require.NoError(t, err)

	srv := New(svc, "test")
	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := srv.srv.Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return res
}

func TestToolsAreListed(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_snapshots", "checkpoint", "stock_list", "stock_add_product", "stock_undo", "stock_redo"}, names)
}

func TestStockToolsRoundTrip(t *testing.T) {
	cs := connect(t)

	var p workshop.Product
	res := call(t, cs, "stock_add_product", map[string]any{"name": "Air filter", "sku": "AF-1", "quantity": 3, "unit_cents": 1500}, &p)
	require.False(t, res.IsError)
	assert.Equal(t, uint64(1), p.ID)

	var stock stockOut
	call(t, cs, "stock_list", nil, &stock)
	require.Len(t, stock.Products, 1)
	assert.Equal(t, int64(4500), stock.ValuationCents)

	var st admin.UndoStatus
	call(t, cs, "stock_undo", nil, &st)
	assert.Equal(t, admin.UndoStatus{CanRedo: true}, st)
	call(t, cs, "stock_list", nil, &stock)
	assert.Empty(t, stock.Products)

	call(t, cs, "stock_redo", nil, &st)
	assert.Equal(t, 1, st.Depth)

	res = call(t, cs, "stock_redo", nil, nil)
	assert.True(t, res.IsError)
}

func TestCheckpointTool(t *testing.T) {
	cs := connect(t)
	call(t, cs, "stock_add_product", map[string]any{"name": "Bulb", "quantity": 1, "unit_cents": 200}, nil)

	var cp checkpointOut
	res := call(t, cs, "checkpoint", nil, &cp)
	require.False(t, res.IsError)
	assert.NotZero(t, cp.ID)

	var list snapshotsOut
	call(t, cs, "list_snapshots", nil, &list)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, cp.ID, list.Snapshots[0].ID)
	assert.False(t, list.Dirty)
}
