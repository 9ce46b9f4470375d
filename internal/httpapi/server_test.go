package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/auth"
	"github.com/ArionMiles/financehub/pkg/logging"
	"github.com/ArionMiles/financehub/pkg/session"
	"github.com/ArionMiles/financehub/pkg/tools"
)

var now = time.Date(2025, time.January, 25, 12, 0, 0, 0, time.UTC)

func tx(id string, date time.Time, dir api.Direction, amount, balance, category string) api.Transaction {
	return api.Transaction{
		ID:        id,
		UserID:    "u1",
		Direction: dir,
		Amount:    decimal.RequireFromString(amount),
		Balance:   decimal.RequireFromString(balance),
		Date:      date,
		Category:  category,
		Status:    api.StatusSuccess,
	}
}

func testDataset() *api.Dataset {
	return &api.Dataset{
		Transactions: []api.Transaction{
			tx("t0", time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), api.DirectionIncome, "1000", "1000", "Salary"),
			tx("t3", time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC), api.DirectionExpense, "100", "900", "Dining"),
			tx("t1", time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), api.DirectionIncome, "8500", "9400", "Salary"),
			tx("t2", time.Date(2025, time.January, 19, 0, 0, 0, 0, time.UTC), api.DirectionExpense, "245.32", "9154.68", "Groceries"),
		},
		Budgets: []api.Budget{{Category: "Groceries", MonthlyLimit: decimal.NewFromInt(500)}},
	}
}

type fixture struct {
	srv   *httptest.Server
	token string
	loads int
}

func newFixture(t *testing.T, load session.Loader) *fixture {
	t.Helper()
	logger := logging.Discard()

	gate, err := auth.NewGate([]auth.Record{{
		User:     auth.User{ID: "u1", Name: "Demo", Email: "demo@example.com"},
		Password: "secret",
	}}, logger)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	f := &fixture{}
	if load == nil {
		load = func(ctx context.Context) (*api.Dataset, error) {
			f.loads++
			return testDataset(), nil
		}
	}
	clock := func() time.Time { return now }
	sessions := session.NewStore(load, session.Options{Location: time.UTC, Now: clock}, logger)

	s, err := New(gate, sessions, tools.NewFinanceRegistry(), Config{Location: time.UTC, Now: clock, Version: "test"}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.srv = httptest.NewServer(s.Routes())
	t.Cleanup(f.srv.Close)

	resp := f.do(t, http.MethodPost, "/api/login", `{"email":"Demo@Example.com","password":"secret"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var sess session.Session
	decode(t, resp, &sess)
	if sess.Token == "" || sess.User.ID != "u1" {
		t.Fatalf("login returned %+v", sess)
	}
	f.token = sess.Token
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.token = ""

	resp := f.do(t, http.MethodGet, "/health", "")
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["service"] != "FinanceHub" {
		t.Errorf("got %d %v", resp.StatusCode, body)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	f.token = ""

	var bodies []string
	for _, body := range []string{
		`{"email":"demo@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"secret"}`,
		`{}`,
	} {
		resp := f.do(t, http.MethodPost, "/api/login", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", body, resp.StatusCode)
		}
		b, _ := io.ReadAll(resp.Body)
		bodies = append(bodies, string(b))
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("401 bodies differ: %q vs %q", bodies[0], b)
		}
	}

	resp := f.do(t, http.MethodPost, "/api/login", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", resp.StatusCode)
	}
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t, nil)

	for _, token := range []string{"", "not-a-token"} {
		f.token = token
		for _, path := range []string{"/api/me", "/api/dashboard", "/api/transactions"} {
			resp := f.do(t, http.MethodGet, path, "")
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("%s with %q: status = %d", path, token, resp.StatusCode)
			}
		}
	}
}

func TestMeAndLogout(t *testing.T) {
	f := newFixture(t, nil)

	var user auth.User
	resp := f.do(t, http.MethodGet, "/api/me", "")
	decode(t, resp, &user)
	if user.Email != "demo@example.com" {
		t.Errorf("me = %+v", user)
	}

	if resp := f.do(t, http.MethodPost, "/api/logout", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("logout status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/me", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("after logout: status = %d", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantMonth  float64
		income     float64
		expense    float64
	}{
		{name: "current month", query: "", wantStatus: http.StatusOK, wantMonth: 1, income: 8500, expense: 245.32},
		{name: "explicit current month", query: "?month=2025-01", wantStatus: http.StatusOK, wantMonth: 1, income: 8500, expense: 245.32},
		{name: "previous month", query: "?month=2024-12", wantStatus: http.StatusOK, wantMonth: 12, income: 1000, expense: 100},
		{name: "empty month", query: "?month=2023-06", wantStatus: http.StatusOK, wantMonth: 6},
		{name: "bad month", query: "?month=January", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, "/api/dashboard"+tt.query, "")
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var view map[string]any
			decode(t, resp, &view)
			if view["month"] != tt.wantMonth || view["monthlyIncome"] != tt.income || view["monthlyExpense"] != tt.expense {
				t.Errorf("got month=%v income=%v expense=%v", view["month"], view["monthlyIncome"], view["monthlyExpense"])
			}
			if view["totalBalance"] != 9154.68 {
				t.Errorf("totalBalance = %v", view["totalBalance"])
			}
		})
	}

	if f.loads != 1 {
		t.Errorf("dataset loaded %d times, want once per session", f.loads)
	}
}

func TestDashboard_LoadFailure(t *testing.T) {
	f := newFixture(t, func(ctx context.Context) (*api.Dataset, error) {
		return nil, errors.New("connection refused on 10.0.0.5")
	})

	resp := f.do(t, http.MethodGet, "/api/dashboard", "")
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if bytes.Contains(b, []byte("10.0.0.5")) {
		t.Errorf("response leaks internal detail: %s", b)
	}
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		query      string
		wantStatus int
		wantIDs    []string
	}{
		{query: "", wantStatus: http.StatusOK, wantIDs: []string{"t2", "t1", "t3", "t0"}},
		{query: "?type=expense", wantStatus: http.StatusOK, wantIDs: []string{"t2", "t3"}},
		{query: "?type=income&sort=amount", wantStatus: http.StatusOK, wantIDs: []string{"t1", "t0"}},
		{query: "?limit=1", wantStatus: http.StatusOK, wantIDs: []string{"t2"}},
		{query: "?type=refund", wantStatus: http.StatusBadRequest},
		{query: "?sort=name", wantStatus: http.StatusBadRequest},
		{query: "?limit=-2", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, "/api/transactions"+tt.query, "")
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Transactions []api.Transaction `json:"transactions"`
			}
			decode(t, resp, &body)
			var ids []string
			for _, tx := range body.Transactions {
				ids = append(ids, tx.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("got %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestExportTransactions(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/transactions/export?type=expense", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "t2,") || !strings.Contains(lines[1], ",debit,245.32,") {
		t.Errorf("export:\n%s", b)
	}

	if resp := f.do(t, http.MethodGet, "/api/transactions/export?sort=size", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad sort: status = %d", resp.StatusCode)
	}
}

func TestCreateTransaction(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":"54.68","category":"Dining","date":"2025-01-20"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created api.Transaction
	decode(t, resp, &created)
	if created.ID == "" || !created.Balance.Equal(decimal.NewFromInt(9100)) {
		t.Errorf("created = %+v", created)
	}

	var view map[string]any
	decode(t, f.do(t, http.MethodGet, "/api/dashboard", ""), &view)
	if view["totalBalance"] != 9100.0 || view["monthlyExpense"] != 300.0 {
		t.Errorf("view after append: balance=%v expense=%v", view["totalBalance"], view["monthlyExpense"])
	}

	for _, body := range []string{
		`{"type":"expense","amount":"-5","date":"2025-01-20"}`,
		`{"type":"transfer","amount":"5"}`,
		`{"type":"income","amount":"5","date":"yesterday"}`,
		`[1,2`,
	} {
		if resp := f.do(t, http.MethodPost, "/api/transactions", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, resp.StatusCode)
		}
	}
}

func TestChat(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/chat", `{"message":"How much should I save each month?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Topic  string `json:"topic"`
		Advice string `json:"advice"`
	}
	decode(t, resp, &body)
	if body.Topic != "saving" || body.Advice == "" {
		t.Errorf("got %+v", body)
	}

	if resp := f.do(t, http.MethodPost, "/api/chat", `{"message":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message: status = %d", resp.StatusCode)
	}
}

func TestTools(t *testing.T) {
	f := newFixture(t, nil)

	var list struct {
		Tools []toolInfo `json:"tools"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/tools", ""), &list)
	if len(list.Tools) != 5 || list.Tools[0].Name != "get_financial_overview" {
		t.Errorf("tools = %+v", list.Tools)
	}

	resp := f.do(t, http.MethodPost, "/api/tools/get_financial_overview", "")
	var overview map[string]any
	decode(t, resp, &overview)
	if resp.StatusCode != http.StatusOK || overview["totalBalance"] != 9154.68 {
		t.Errorf("overview: %d %v", resp.StatusCode, overview)
	}

	resp = f.do(t, http.MethodPost, "/api/tools/get_recent_transactions", `{"limit":2}`)
	var recent []api.Transaction
	decode(t, resp, &recent)
	if len(recent) != 2 || recent[0].ID != "t2" {
		t.Errorf("recent: %+v", recent)
	}

	resp = f.do(t, http.MethodPost, "/api/tools/get_nonexistent", "{}")
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusBadRequest || !bytes.Contains(b, []byte("get_nonexistent")) {
		t.Errorf("unknown tool: %d %s", resp.StatusCode, b)
	}

	if resp := f.do(t, http.MethodPost, "/api/tools/get_recent_transactions", `{"limit":"ten"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad arguments: status = %d", resp.StatusCode)
	}
}

type bearer struct {
	token string
	next  http.RoundTripper
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.next.RoundTrip(req)
}

func TestMCPEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   f.srv.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearer{token: f.token, next: http.DefaultTransport}},
	}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "get_financial_overview"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	text, _ := res.Content[0].(*sdkmcp.TextContent)
	if res.IsError || text == nil || !strings.Contains(text.Text, "9154.68") {
		t.Errorf("got %+v", res)
	}

	if _, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "get_nonexistent"}); err == nil || !strings.Contains(err.Error(), "get_nonexistent") {
		t.Errorf("unknown tool: got %v", err)
	}

	f.token = ""
	if resp := f.do(t, http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"ping"}`); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated mcp: status = %d", resp.StatusCode)
	}
}
