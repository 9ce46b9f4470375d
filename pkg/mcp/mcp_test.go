package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/engine"
	"github.com/ArionMiles/financehub/pkg/tools"
)

func dataset() *api.Dataset {
	return &api.Dataset{Transactions: []api.Transaction{
		{
			ID: "t1", Direction: api.DirectionIncome, Amount: decimal.NewFromInt(8500), Balance: decimal.NewFromInt(8500),
			Date: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: "t2", Direction: api.DirectionExpense, Amount: decimal.RequireFromString("245.32"), Balance: decimal.RequireFromString("8254.68"),
			Date: time.Date(2025, time.January, 19, 0, 0, 0, 0, time.UTC), Category: "Groceries",
		},
	}}
}

func snapshotOf(ds *api.Dataset) SnapshotFunc {
	return func(ctx context.Context) (tools.Snapshot, error) {
		view := engine.Build(ds, engine.Options{Reference: time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)})
		return tools.Snapshot{Dataset: ds, View: view}, nil
	}
}

func testServer(t *testing.T, snapshot SnapshotFunc) *Server {
	t.Helper()
	s, err := NewServer(Info{Name: "financehub", Version: "test"}, tools.NewFinanceRegistry(), snapshot, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

// connect runs srv over in-memory transports and returns a client session.
func connect(t *testing.T, srv *sdk.Server) *sdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := sdk.NewInMemoryTransports()
	if _, err := srv.Connect(ctx, serverT, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func text(t *testing.T, res *sdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestBind_ListsRegistry(t *testing.T) {
	s := testServer(t, snapshotOf(dataset()))
	cs := connect(t, s.Bind(s.snapshot))
	ctx := context.Background()

	list, err := cs.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range list.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"get_financial_overview", "get_recent_transactions", "get_expense_analysis",
		"get_budget_recommendations", "render_dashboard",
	} {
		if !names[want] {
			t.Errorf("tool %s not listed", want)
		}
	}

	resources, err := cs.ListResources(ctx, &sdk.ListResourcesParams{})
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources.Resources) != 1 || resources.Resources[0].URI != DashboardURI {
		t.Errorf("resources: got %+v", resources.Resources)
	}
}

func TestBind_CallTool(t *testing.T) {
	s := testServer(t, snapshotOf(dataset()))
	cs := connect(t, s.Bind(s.snapshot))
	ctx := context.Background()

	t.Run("recent transactions", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &sdk.CallToolParams{
			Name:      "get_recent_transactions",
			Arguments: map[string]any{"limit": 1},
		})
		if err != nil {
			t.Fatalf("CallTool: %v", err)
		}
		if res.IsError {
			t.Fatalf("unexpected error result: %s", text(t, res))
		}
		var txs []api.Transaction
		if err := json.Unmarshal([]byte(text(t, res)), &txs); err != nil {
			t.Fatalf("decoding result: %v", err)
		}
		if len(txs) != 1 || txs[0].ID != "t2" {
			t.Errorf("got %+v", txs)
		}
	})

	t.Run("overview", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &sdk.CallToolParams{Name: "get_financial_overview"})
		if err != nil {
			t.Fatalf("CallTool: %v", err)
		}
		if !strings.Contains(text(t, res), "8254.68") {
			t.Errorf("overview: %s", text(t, res))
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := cs.CallTool(ctx, &sdk.CallToolParams{Name: "get_nonexistent"})
		if err == nil || !strings.Contains(err.Error(), "get_nonexistent") {
			t.Errorf("got %v, want an error naming get_nonexistent", err)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &sdk.CallToolParams{
			Name:      "get_recent_transactions",
			Arguments: map[string]any{"limit": "many"},
		})
		if err != nil {
			t.Fatalf("CallTool: %v", err)
		}
		if !res.IsError || !strings.Contains(text(t, res), "invalid arguments") {
			t.Errorf("got %+v", res)
		}
	})
}

func TestBind_ReadDashboard(t *testing.T) {
	s := testServer(t, snapshotOf(dataset()))
	cs := connect(t, s.Bind(s.snapshot))

	res, err := cs.ReadResource(context.Background(), &sdk.ReadResourceParams{URI: DashboardURI})
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	if len(res.Contents) != 1 || !strings.Contains(res.Contents[0].Text, `"totalBalance":8254.68`) {
		t.Errorf("got %+v", res.Contents)
	}

	if _, err := cs.ReadResource(context.Background(), &sdk.ReadResourceParams{URI: "finance://nothing"}); err == nil {
		t.Error("expected error for unknown resource")
	}
}

func TestBind_SnapshotFailure(t *testing.T) {
	s := testServer(t, func(ctx context.Context) (tools.Snapshot, error) {
		return tools.Snapshot{}, errors.New("database down")
	})
	cs := connect(t, s.Bind(s.snapshot))

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "render_dashboard"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result")
	}
	if strings.Contains(text(t, res), "database down") {
		t.Error("internal error detail leaked to the client")
	}
}

func TestServe_Stdio(t *testing.T) {
	s := testServer(t, snapshotOf(dataset()))

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), serverReader, serverWriter)
	}()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(context.Background(), &sdk.IOTransport{Reader: clientReader, Writer: clientWriter}, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "get_expense_analysis"})
	if err != nil || res.IsError {
		t.Fatalf("CallTool: %v %+v", err, res)
	}
	if !strings.Contains(text(t, res), "Groceries") {
		t.Errorf("analysis: %s", text(t, res))
	}

	cs.Close()
	clientWriter.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the client closed")
	}
}

func TestServe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()
	err := testServer(t, snapshotOf(dataset())).Serve(ctx, r, io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

type ctxKey struct{}

func TestHandler_UsesRequestSnapshot(t *testing.T) {
	ds := dataset()
	s := testServer(t, func(ctx context.Context) (tools.Snapshot, error) {
		if ctx.Value(ctxKey{}) == nil {
			return tools.Snapshot{}, errors.New("no caller")
		}
		return snapshotOf(ds)(ctx)
	})

	handler := s.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, "caller")))
	}))
	defer srv.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(context.Background(), &sdk.StreamableClientTransport{Endpoint: srv.URL}, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "get_financial_overview"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || !strings.Contains(text(t, res), "8254.68") {
		t.Errorf("got %+v", res)
	}

	if _, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "get_nonexistent"}); err == nil {
		t.Error("expected unknown tool error over HTTP")
	}
}
