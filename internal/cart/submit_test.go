package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyToSubmit(t *testing.T, g *mockGateway, r Recorder) *Engine {
	sut, _ := newTestEngine(g, r)
	_, err := sut.AddToCart(productA, 2, testStock)
	require.NoError(t, err)
	_, err = sut.AddToCart(productB, 1, testStock)
	require.NoError(t, err)
	require.NoError(t, sut.BeginPayment())
	_, err = sut.ConfirmTender(decimal.NewFromInt(300))
	require.NoError(t, err)
	return sut
}

func TestSubmitOrder_Success(t *testing.T) {
	g := &mockGateway{orderID: "order-42"}
	rec := &mockRecorder{}
	sut := readyToSubmit(t, g, rec)

	confirmed, err := sut.SubmitOrder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "order-42", confirmed.OrderID)
	assert.True(t, decimal.RequireFromString("245.50").Equal(confirmed.Total))
	assert.True(t, decimal.RequireFromString("54.50").Equal(confirmed.ChangeDue))
	assert.Len(t, confirmed.Lines, 2)

	require.Len(t, g.decrementCalls, 1)
	assert.Equal(t, map[int64]int{101: 2, 102: 1}, g.decrementCalls[0])
	require.Len(t, g.createCalls, 1)
	assert.Equal(t, []int64{1, 1, 2}, g.createCalls[0])

	session := sut.Checkout()
	assert.Equal(t, domain.CheckoutPhaseCompleted, session.Phase)
	assert.Empty(t, sut.Lines())
	assert.True(t, sut.CartTotal().IsZero())

	recorded := rec.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.CheckoutPhaseCompleted, recorded[0].Outcome)
	assert.Equal(t, confirmed.SubmissionID, recorded[0].ID)
}

func TestSubmitOrder_CartEditAfterCompletionStartsFreshSession(t *testing.T) {
	sut := readyToSubmit(t, &mockGateway{orderID: "o"}, nil)
	_, err := sut.SubmitOrder(context.Background())
	require.NoError(t, err)

	_, err = sut.AddToCart(productC, 1, testStock)
	require.NoError(t, err)

	session := sut.Checkout()
	assert.Equal(t, domain.CheckoutPhaseReviewing, session.Phase)
	assert.True(t, session.CashTendered.IsZero())
	assert.Equal(t, uuid.Nil, session.SubmissionID)
}

func TestSubmitOrder_DecrementFails(t *testing.T) {
	g := &mockGateway{decrementErr: errors.New("connection refused")}
	rec := &mockRecorder{}
	sut := readyToSubmit(t, g, rec)

	confirmed, err := sut.SubmitOrder(context.Background())
	assert.Nil(t, confirmed)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StepDecrementStock, subErr.Step)
	assert.False(t, subErr.StockDecremented)
	assert.Empty(t, g.createCalls)

	session := sut.Checkout()
	assert.Equal(t, domain.CheckoutPhaseFailed, session.Phase)
	assert.False(t, session.StockDecremented)
	assert.Len(t, sut.Lines(), 2)

	recorded := rec.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, StepDecrementStock, recorded[0].FailedStep)
}

func TestSubmitOrder_OrderCreationFailsAfterDecrement(t *testing.T) {
	g := &mockGateway{createErr: errors.New("500 internal server error")}
	sut := readyToSubmit(t, g, &mockRecorder{})
	totalBefore := sut.CartTotal()

	_, err := sut.SubmitOrder(context.Background())

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StepCreateOrder, subErr.Step)
	assert.True(t, subErr.StockDecremented)
	assert.Contains(t, err.Error(), "stock already decremented")

	session := sut.Checkout()
	assert.Equal(t, domain.CheckoutPhaseFailed, session.Phase)
	assert.True(t, session.StockDecremented)
	assert.NotEmpty(t, session.LastError)
	assert.Len(t, sut.Lines(), 2)
	assert.True(t, totalBefore.Equal(sut.CartTotal()))
}

func TestSubmitOrder_GatewayPanicFailsSubmission(t *testing.T) {
	g := &mockGateway{panicOnCreate: true, orderID: "order-9"}
	rec := &mockRecorder{}
	sut := readyToSubmit(t, g, rec)

	var confirmed *OrderConfirmed
	var err error
	require.NotPanics(t, func() {
		confirmed, err = sut.SubmitOrder(context.Background())
	})
	assert.Nil(t, confirmed)
	assert.ErrorIs(t, err, ErrGatewayPanicked)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StepCreateOrder, subErr.Step)
	assert.True(t, subErr.StockDecremented)

	session := sut.Checkout()
	assert.Equal(t, domain.CheckoutPhaseFailed, session.Phase)
	require.Len(t, rec.recorded(), 1)

	// the engine is not stuck in submitting, a retry goes through
	g.setPanicOnCreate(false)
	confirmed, err = sut.SubmitOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "order-9", confirmed.OrderID)
	assert.Len(t, g.decrementCalls, 1)
}

func TestSubmitOrder_RetryDoesNotDecrementTwice(t *testing.T) {
	g := &mockGateway{createErr: errors.New("timeout"), orderID: "order-7"}
	rec := &mockRecorder{}
	sut := readyToSubmit(t, g, rec)

	_, err := sut.SubmitOrder(context.Background())
	require.Error(t, err)
	firstID := sut.Checkout().SubmissionID

	g.setCreateErr(nil)
	confirmed, err := sut.SubmitOrder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "order-7", confirmed.OrderID)
	assert.Equal(t, firstID, confirmed.SubmissionID)
	assert.Len(t, g.decrementCalls, 1)
	assert.Len(t, g.createCalls, 2)
	assert.Len(t, rec.recorded(), 2)
}

func TestSubmitOrder_CancelAfterFailureClearsDecrementFlag(t *testing.T) {
	g := &mockGateway{createErr: errors.New("boom")}
	sut := readyToSubmit(t, g, nil)

	_, err := sut.SubmitOrder(context.Background())
	require.Error(t, err)

	require.NoError(t, sut.CancelPayment())
	session := sut.Checkout()
	assert.Equal(t, domain.CheckoutPhaseReviewing, session.Phase)
	assert.False(t, session.StockDecremented)
	assert.Len(t, sut.Lines(), 2)
}

func TestSubmitOrder_RejectsOutsideCashCollected(t *testing.T) {
	sut, _ := newTestEngine(&mockGateway{}, nil)
	_, err := sut.AddToCart(productA, 1, testStock)
	require.NoError(t, err)

	_, err = sut.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, sut.BeginPayment())
	_, err = sut.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSubmitOrder_SecondCallWhileSubmitting(t *testing.T) {
	g := &mockGateway{
		orderID: "order-1",
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	sut := readyToSubmit(t, g, nil)

	done := make(chan error, 1)
	go func() {
		_, err := sut.SubmitOrder(context.Background())
		done <- err
	}()

	select {
	case <-g.entered:
	case <-time.After(time.Second):
		t.Fatal("first submission never reached the gateway")
	}

	assert.Equal(t, domain.CheckoutPhaseSubmitting, sut.Checkout().Phase)

	_, err := sut.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.ErrorIs(t, sut.CancelPayment(), ErrSubmissionInProgress)
	assert.ErrorIs(t, sut.ResetCart(), ErrSubmissionInProgress)
	_, err = sut.AddToCart(productC, 1, testStock)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(g.block)
	require.NoError(t, <-done)
	assert.Equal(t, domain.CheckoutPhaseCompleted, sut.Checkout().Phase)
}

func TestSubmitOrder_RecorderErrorDoesNotChangeOutcome(t *testing.T) {
	rec := &mockRecorder{err: errors.New("journal down")}
	sut, hook := newTestEngine(&mockGateway{orderID: "o-1"}, rec)
	_, err := sut.AddToCart(productA, 1, testStock)
	require.NoError(t, err)
	require.NoError(t, sut.BeginPayment())
	_, err = sut.ConfirmTender(decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = sut.SubmitOrder(context.Background())
	require.NoError(t, err)

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Message == "failed to record submission" {
			logged = true
		}
	}
	assert.True(t, logged)
}
