package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/fjod/megamart-storefront/internal/catalog"
	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/fjod/megamart-storefront/internal/journal"
	"github.com/fjod/megamart-storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type mockSessions struct {
	mu         sync.Mutex
	token      string
	loginErr   error
	signUpErr  error
	registered []session.Registration
}

func (m *mockSessions) SignUp(_ context.Context, reg session.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := reg.Validate(); err != nil {
		return err
	}
	if m.signUpErr != nil {
		return m.signUpErr
	}
	m.registered = append(m.registered, reg)
	return nil
}

func (m *mockSessions) Profile(context.Context) (*session.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return nil, session.ErrNoSession
	}
	username := m.token[len("jwt-"):]
	return &session.Profile{ID: 17, Username: username, FullName: "Test Cashier", UserType: "user"}, nil
}

func (m *mockSessions) Login(_ context.Context, username, password string) (*session.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	if username == "" || password == "" {
		return nil, session.ErrMissingCredentials
	}
	m.token = "jwt-" + username
	return &session.Identity{Username: username, UserType: "user"}, nil
}

func (m *mockSessions) Logout(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func (m *mockSessions) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", session.ErrNoSession
	}
	return m.token, nil
}

type mockCatalog struct {
	mu          sync.Mutex
	snapshot    *catalog.Snapshot
	err         error
	invalidated int
}

func (m *mockCatalog) AddCategory(_ context.Context, name string) (domain.Category, error) {
	if m.err != nil {
		return domain.Category{}, m.err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, catalog.ErrBlankCategoryName
	}
	m.Invalidate()
	return domain.Category{ID: 20, Name: name}, nil
}

func (m *mockCatalog) Snapshot(context.Context) (*catalog.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

func (m *mockCatalog) Product(ctx context.Context, id int64) (domain.Product, domain.StockSnapshot, error) {
	s, err := m.Snapshot(ctx)
	if err != nil {
		return domain.Product{}, domain.StockSnapshot{}, err
	}
	p, ok := s.Product(id)
	if !ok {
		return domain.Product{}, domain.StockSnapshot{}, catalog.ErrProductNotFound
	}
	return p, s.StockSnapshot(), nil
}

func (m *mockCatalog) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
}

func (m *mockCatalog) invalidations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidated
}

type mockGateway struct {
	mu           sync.Mutex
	decrementErr error
	createErr    error
	decrements   []map[int64]int
}

func (m *mockGateway) DecrementStock(_ context.Context, request map[int64]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decrementErr != nil {
		return m.decrementErr
	}
	m.decrements = append(m.decrements, request)
	return nil
}

func (m *mockGateway) CreateOrder(context.Context, []int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	return "5012", nil
}

type mockJournal struct {
	entries []*journal.Entry
	err     error
}

func (m *mockJournal) ListPartialFailures(context.Context) ([]*journal.Entry, error) {
	return m.entries, m.err
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

type testServer struct {
	router   chi.Router
	sessions *mockSessions
	catalog  *mockCatalog
	gateway  *mockGateway
	journal  *mockJournal
	engine   *cart.Engine
	health   map[string]HealthChecker
}

func testCatalogSnapshot() *catalog.Snapshot {
	return &catalog.Snapshot{
		Products: []domain.Product{
			{ID: 1, Name: "Rice 5kg", Description: "Samba rice", Price: decimal.RequireFromString("1450.00"), CategoryID: 10},
			{ID: 2, Name: "Coconut oil", Description: "1 litre bottle", Price: decimal.RequireFromString("890.50"), CategoryID: 11},
			{ID: 3, Name: "Tea", Description: "Ceylon black tea", Price: decimal.RequireFromString("1200.00"), CategoryID: 12},
		},
		Stock: []domain.StockLevel{
			{StockID: 101, ProductID: 1, QuantityOnHand: 20},
			{StockID: 102, ProductID: 2, QuantityOnHand: 4},
		},
		Categories: []domain.Category{{ID: 10, Name: "Grains"}, {ID: 11, Name: "Oils"}, {ID: 12, Name: "Beverages"}},
		FetchedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := test.NewNullLogger()

	ts := &testServer{
		sessions: &mockSessions{},
		catalog:  &mockCatalog{snapshot: testCatalogSnapshot()},
		gateway:  &mockGateway{},
		journal:  &mockJournal{},
		health:   map[string]HealthChecker{},
	}
	ts.engine = cart.NewEngine(ts.gateway, nil, log)
	ts.router = NewRouter(RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}, Deps{
		Sessions: ts.sessions,
		Catalog:  ts.catalog,
		Engine:   ts.engine,
		Journal:  ts.journal,
		Health:   ts.health,
		Log:      log,
	})
	return ts
}

func (ts *testServer) login(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/session/login", `{"username":"cashier","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

var errBackendDown = errors.New("backend down")
