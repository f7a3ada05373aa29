package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/handler"
	"github.com/finchapp/finch/internal/infra/cache"
	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/port"
	"github.com/finchapp/finch/internal/schedule"
	"github.com/finchapp/finch/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type memSettings struct {
	values map[string]string
}

func (m *memSettings) GetSetting(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memSettings) SetSetting(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

type memLedger struct {
	accounts map[string]*domain.Account
	invs     map[string]*domain.Investment
	txs      []domain.Transaction
	snaps    []domain.Snapshot
}

func (m *memLedger) ListAccounts(_ context.Context) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memLedger) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	cp := *a
	return &cp, nil
}

func (m *memLedger) CreateAccount(_ context.Context, a *domain.Account) (string, error) {
	if a.ID == "" {
		a.ID = "acc-gen"
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return a.ID, nil
}

func (m *memLedger) SaveAccount(_ context.Context, a *domain.Account) error {
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memLedger) DeleteAccount(_ context.Context, id string) error {
	delete(m.accounts, id)
	return nil
}

func (m *memLedger) ListInvestments(_ context.Context) ([]domain.Investment, error) {
	var out []domain.Investment
	for _, i := range m.invs {
		out = append(out, *i)
	}
	return out, nil
}

func (m *memLedger) GetInvestment(_ context.Context, id string) (*domain.Investment, error) {
	i, ok := m.invs[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	cp := *i
	return &cp, nil
}

func (m *memLedger) CreateInvestment(_ context.Context, i *domain.Investment) (string, error) {
	if i.ID == "" {
		i.ID = "inv-gen"
	}
	cp := *i
	m.invs[i.ID] = &cp
	return i.ID, nil
}

func (m *memLedger) SaveInvestment(_ context.Context, i *domain.Investment) error {
	cp := *i
	m.invs[i.ID] = &cp
	return nil
}

func (m *memLedger) DeleteInvestment(_ context.Context, id string) error {
	delete(m.invs, id)
	return nil
}

func (m *memLedger) AppendTransaction(_ context.Context, tx *domain.Transaction) error {
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memLedger) ListTransactions(_ context.Context, _ string, _ int) ([]domain.Transaction, error) {
	return append([]domain.Transaction(nil), m.txs...), nil
}

func (m *memLedger) AppendSnapshot(_ context.Context, s *domain.Snapshot) error {
	m.snaps = append(m.snaps, *s)
	return nil
}

func (m *memLedger) ListSnapshots(_ context.Context, _, _ string) ([]domain.Snapshot, error) {
	return append([]domain.Snapshot(nil), m.snaps...), nil
}

func (m *memLedger) LatestSnapshot(_ context.Context) (*domain.Snapshot, error) {
	if len(m.snaps) == 0 {
		return nil, &domain.ErrNotFound{Resource: "snapshot", ID: "latest"}
	}
	cp := m.snaps[len(m.snaps)-1]
	return &cp, nil
}

type memRules struct {
	rules map[string]*domain.RecurringRule
}

func (m *memRules) ListEnabledRules(_ context.Context) ([]domain.RecurringRule, error) {
	var out []domain.RecurringRule
	for _, r := range m.rules {
		if r.Enabled {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRules) ListRules(_ context.Context) ([]domain.RecurringRule, error) {
	var out []domain.RecurringRule
	for _, r := range m.rules {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRules) ListRulesByFilter(ctx context.Context, _ port.RuleFilter) ([]domain.RecurringRule, error) {
	return m.ListRules(ctx)
}

func (m *memRules) GetRule(_ context.Context, id string) (*domain.RecurringRule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "rule", ID: id}
	}
	cp := *r
	return &cp, nil
}

func (m *memRules) CreateRule(_ context.Context, rule *domain.RecurringRule) (string, error) {
	if rule.ID == "" {
		rule.ID = "rule-gen"
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return rule.ID, nil
}

func (m *memRules) UpdateRule(_ context.Context, rule *domain.RecurringRule) error {
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *memRules) DeleteRule(_ context.Context, id string) error {
	delete(m.rules, id)
	return nil
}

type memBackupStore struct{}

func (memBackupStore) ExportAll(_ context.Context) (*domain.Backup, error) {
	return &domain.Backup{}, nil
}

func (memBackupStore) ImportAll(_ context.Context, _ *domain.Backup) error {
	return nil
}

// --- Helpers ---

func newTestRouter() (http.Handler, *memLedger) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	ledger := &memLedger{
		accounts: map[string]*domain.Account{},
		invs:     map[string]*domain.Investment{},
	}
	rules := &memRules{rules: map[string]*domain.RecurringRule{}}
	settings := &memSettings{values: map[string]string{}}

	snapshots := service.NewSnapshotService(ledger, cache.New[*service.Summary](time.Minute), metrics, logger)
	engine := schedule.NewEngine(rules, ledger, snapshots, metrics, logger)

	svcs := handler.Services{
		Recurring: service.NewRecurringService(rules, engine, metrics, logger),
		Ledger:    service.NewLedgerService(ledger, metrics, logger),
		Snapshots: snapshots,
		Auth:      service.NewAuthService(settings, "test-secret", time.Hour, logger),
		Backup:    service.NewBackupService(memBackupStore{}, nil, metrics, logger),
	}
	return handler.NewRouter(svcs, metrics, nil, logger), ledger
}

func doJSON(router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestOperationalEndpoints(t *testing.T) {
	router, _ := newTestRouter()

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping"} {
		rec := doJSON(router, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}
}

func TestAccountLifecycle(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/v1/accounts", map[string]any{
		"name": "Checking", "type": "bank", "balance": 250.0,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account = %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(router, http.MethodGet, "/v1/accounts/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account = %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/v1/accounts/"+created.ID+"/adjust", map[string]any{
		"balance": 300.0, "reason": "correction",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(router, http.MethodGet, "/v1/transactions", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions = %d", rec.Code)
	}
	var txs []domain.Transaction
	json.Unmarshal(rec.Body.Bytes(), &txs)
	if len(txs) != 1 || txs[0].Type != domain.TxAdjust {
		t.Errorf("transactions = %+v", txs)
	}

	rec = doJSON(router, http.MethodGet, "/v1/accounts/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing account = %d, want 404", rec.Code)
	}
}

func TestRecurringRuleEndpoints(t *testing.T) {
	router, ledger := newTestRouter()
	ledger.accounts["acc-1"] = &domain.Account{ID: "acc-1", Balance: 0}

	rec := doJSON(router, http.MethodPost, "/v1/recurring", map[string]any{
		"kind": "account", "action": "income", "account_id": "acc-1",
		"frequency": "daily", "amount": 10.0,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule = %d: %s", rec.Code, rec.Body.String())
	}
	var rule domain.RecurringRule
	json.Unmarshal(rec.Body.Bytes(), &rule)
	if rule.NextRun == "" {
		t.Error("created rule has no NextRun")
	}

	// Invalid payloads are rejected before the store sees them.
	rec = doJSON(router, http.MethodPost, "/v1/recurring", map[string]any{
		"kind": "account", "action": "income", "account_id": "acc-1",
		"frequency": "daily", "amount": -1.0,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid rule = %d, want 400", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/v1/recurring/run", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run now = %d: %s", rec.Code, rec.Body.String())
	}
	var result map[string]int
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result["executed"] != 1 {
		t.Errorf("executed = %d, want 1", result["executed"])
	}

	rec = doJSON(router, http.MethodPost, "/v1/recurring/"+rule.ID+"/toggle", map[string]any{"enabled": false}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle = %d", rec.Code)
	}

	rec = doJSON(router, http.MethodDelete, "/v1/recurring/"+rule.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
}

func TestLockScreenFlow(t *testing.T) {
	router, ledger := newTestRouter()
	ledger.accounts["acc-1"] = &domain.Account{ID: "acc-1", Balance: 0}

	// Unlocked tracker serves requests without a token.
	if rec := doJSON(router, http.MethodGet, "/v1/accounts", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("open tracker = %d, want 200", rec.Code)
	}

	rec := doJSON(router, http.MethodPost, "/v1/auth/password", map[string]any{
		"current_password": "", "new_password": "hunter2",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("set password = %d: %s", rec.Code, rec.Body.String())
	}

	// Locked now.
	if rec := doJSON(router, http.MethodGet, "/v1/accounts", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("locked tracker = %d, want 401", rec.Code)
	}

	// Status stays reachable.
	if rec := doJSON(router, http.MethodGet, "/v1/auth/status", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("auth status = %d, want 200", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/v1/auth/unlock", map[string]any{"password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d, want 401", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/v1/auth/unlock", map[string]any{"password": "hunter2"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock = %d: %s", rec.Code, rec.Body.String())
	}
	var unlock map[string]any
	json.Unmarshal(rec.Body.Bytes(), &unlock)
	token, _ := unlock["token"].(string)
	if token == "" {
		t.Fatal("no token in unlock response")
	}

	rec = doJSON(router, http.MethodGet, "/v1/accounts", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("with token = %d, want 200", rec.Code)
	}
}

func TestNetWorthEndpoints(t *testing.T) {
	router, ledger := newTestRouter()
	ledger.accounts["a"] = &domain.Account{ID: "a", Balance: 500}
	ledger.invs["f"] = &domain.Investment{ID: "f", Type: domain.InvestmentFund, Quantity: 2, CostPrice: 50, CurrentPrice: 100}

	rec := doJSON(router, http.MethodGet, "/v1/networth", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("networth = %d", rec.Code)
	}
	var summary service.Summary
	json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.NetWorth != 700 {
		t.Errorf("net worth = %v, want 700", summary.NetWorth)
	}

	rec = doJSON(router, http.MethodPost, "/v1/networth/snapshot", map[string]any{"date": "2024-06-01"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("snapshot = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(router, http.MethodGet, "/v1/networth/history", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	var snaps []domain.Snapshot
	json.Unmarshal(rec.Body.Bytes(), &snaps)
	if len(snaps) != 1 {
		t.Errorf("history length = %d, want 1", len(snaps))
	}
}

func TestBackupEndpoints(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(router, http.MethodGet, "/v1/backup/export", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}

	rec = doJSON(router, http.MethodGet, "/v1/backup/transactions.csv", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %s", ct)
	}

	// No vault configured.
	rec = doJSON(router, http.MethodPost, "/v1/backup/remote/push", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("push without vault = %d, want 400", rec.Code)
	}
}
