// Package mcpserver exposes the admin operations as MCP tools.
package mcpserver

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wilhg/workshop/pkg/admin"
	"github.com/wilhg/workshop/pkg/workshop"
)

type Server struct {
	srv *mcp.Server
	svc *admin.Service
	log *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// New registers every tool on a fresh MCP server.
func New(svc *admin.Service, version string, opts ...Option) *Server {
	s := &Server{
		srv: mcp.NewServer(&mcp.Implementation{Name: "workshop", Version: version}, nil),
		svc: svc,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "list_snapshots",
		Description: "List the snapshot history, oldest first, with the id the session was loaded from.",
	}, s.listSnapshots)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "checkpoint",
		Description: "Persist the live workshop state as a new snapshot.",
	}, s.checkpoint)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "stock_list",
		Description: "List stocked products ordered by id.",
	}, s.stockList)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "stock_add_product",
		Description: "Register a product in stock. The change can be undone.",
	}, s.addProduct)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "stock_undo",
		Description: "Revert the last stock change.",
	}, s.undo)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "stock_redo",
		Description: "Reapply the last reverted stock change.",
	}, s.redo)
	return s
}

// Run serves on t until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.srv.Run(ctx, t)
}

// ServeStdio serves over the process's stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

type empty struct{}

type snapshotEntry struct {
	ID        uint64 `json:"id"`
	CreatedAt string `json:"created_at"`
}

type snapshotsOut struct {
	Snapshots  []snapshotEntry `json:"snapshots"`
	LoadedFrom uint64          `json:"loaded_from"`
	Evicted    []uint64        `json:"evicted"`
	Dirty      bool            `json:"dirty"`
}

func (s *Server) listSnapshots(ctx context.Context, _ *mcp.CallToolRequest, _ empty) (*mcp.CallToolResult, snapshotsOut, error) {
	list, err := s.svc.Snapshots()
	if err != nil {
		return nil, snapshotsOut{}, err
	}
	out := snapshotsOut{
		Snapshots:  make([]snapshotEntry, 0, len(list.Snapshots)),
		LoadedFrom: uint64(list.LoadedFrom),
		Evicted:    make([]uint64, 0, len(list.Evicted)),
		Dirty:      list.Dirty,
	}
	for _, sn := range list.Snapshots {
		out.Snapshots = append(out.Snapshots, snapshotEntry{ID: uint64(sn.ID), CreatedAt: sn.CreatedAt.Format(time.RFC3339Nano)})
	}
	for _, id := range list.Evicted {
		out.Evicted = append(out.Evicted, uint64(id))
	}
	return nil, out, nil
}

type checkpointOut struct {
	ID uint64 `json:"id"`
}

func (s *Server) checkpoint(ctx context.Context, _ *mcp.CallToolRequest, _ empty) (*mcp.CallToolResult, checkpointOut, error) {
	id, err := s.svc.Checkpoint(ctx)
	if err != nil {
		s.log.Error("checkpoint tool failed", zap.Error(err))
		return nil, checkpointOut{}, err
	}
	return nil, checkpointOut{ID: uint64(id)}, nil
}

type stockOut struct {
	Products       []workshop.Product `json:"products"`
	ValuationCents int64              `json:"valuation_cents"`
}

func (s *Server) stockList(ctx context.Context, _ *mcp.CallToolRequest, _ empty) (*mcp.CallToolResult, stockOut, error) {
	st, err := s.svc.Stock()
	if err != nil {
		return nil, stockOut{}, err
	}
	out := stockOut{Products: make([]workshop.Product, 0, len(st.Products)), ValuationCents: st.Valuation()}
	for _, p := range st.Products {
		out.Products = append(out.Products, p)
	}
	slices.SortFunc(out.Products, func(a, b workshop.Product) int { return cmp.Compare(a.ID, b.ID) })
	return nil, out, nil
}

type addProductIn struct {
	Name       string `json:"name" jsonschema:"product name"`
	SKU        string `json:"sku,omitempty" jsonschema:"unique stock keeping unit"`
	Quantity   int    `json:"quantity" jsonschema:"initial quantity"`
	UnitCents  int64  `json:"unit_cents" jsonschema:"unit price in cents"`
	SupplierID uint64 `json:"supplier_id,omitempty" jsonschema:"registered supplier id"`
}

func (s *Server) addProduct(ctx context.Context, _ *mcp.CallToolRequest, in addProductIn) (*mcp.CallToolResult, workshop.Product, error) {
	p, err := s.svc.AddProduct(ctx, admin.ProductInput(in))
	if err != nil {
		return nil, workshop.Product{}, err
	}
	return nil, p, nil
}

func (s *Server) undo(ctx context.Context, _ *mcp.CallToolRequest, _ empty) (*mcp.CallToolResult, admin.UndoStatus, error) {
	st, err := s.svc.Undo(ctx)
	return nil, st, err
}

func (s *Server) redo(ctx context.Context, _ *mcp.CallToolRequest, _ empty) (*mcp.CallToolResult, admin.UndoStatus, error) {
	st, err := s.svc.Redo(ctx)
	return nil, st, err
}
