package cart

import (
	"context"
	"sync"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type mockGateway struct {
	m              sync.Mutex
	decrementErr   error
	createErr      error
	orderID        string
	decrementCalls []map[int64]int
	createCalls    [][]int64
	block          chan struct{} // when set, DecrementStock waits on it
	entered        chan struct{}
	panicOnCreate  bool
}

func (g *mockGateway) DecrementStock(_ context.Context, request map[int64]int) error {
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
	g.m.Lock()
	defer g.m.Unlock()
	g.decrementCalls = append(g.decrementCalls, request)
	return g.decrementErr
}

func (g *mockGateway) CreateOrder(_ context.Context, productIDs []int64) (string, error) {
	g.m.Lock()
	defer g.m.Unlock()
	g.createCalls = append(g.createCalls, productIDs)
	if g.panicOnCreate {
		panic("nil response body")
	}
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.orderID, nil
}

func (g *mockGateway) setPanicOnCreate(v bool) {
	g.m.Lock()
	defer g.m.Unlock()
	g.panicOnCreate = v
}

func (g *mockGateway) setCreateErr(err error) {
	g.m.Lock()
	defer g.m.Unlock()
	g.createErr = err
}

type mockRecorder struct {
	m           sync.Mutex
	submissions []Submission
	err         error
}

func (r *mockRecorder) RecordSubmission(_ context.Context, s Submission) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.submissions = append(r.submissions, s)
	return r.err
}

func (r *mockRecorder) recorded() []Submission {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]Submission(nil), r.submissions...)
}

func newTestEngine(g Gateway, r Recorder) (*Engine, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewEngine(g, r, log), hook
}

var (
	productA = domain.Product{ID: 1, Name: "Rice 5kg", Description: "Samba rice", Price: decimal.NewFromInt(100), CategoryID: 1}
	productB = domain.Product{ID: 2, Name: "Coconut oil", Description: "1L bottle", Price: decimal.RequireFromString("45.50"), CategoryID: 2}
	productC = domain.Product{ID: 3, Name: "Tea", Description: "Ceylon black tea 400g", Price: decimal.RequireFromString("12.25"), CategoryID: 2}

	testStock = domain.NewStockSnapshot([]domain.StockLevel{
		{StockID: 101, ProductID: 1, QuantityOnHand: 5},
		{StockID: 102, ProductID: 2, QuantityOnHand: 10},
		{StockID: 103, ProductID: 3, QuantityOnHand: 3},
	})
)
