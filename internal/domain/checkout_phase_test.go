package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutPhase
		allowed  bool
	}{
		{CheckoutPhaseReviewing, CheckoutPhaseCollectingCash, true},
		{CheckoutPhaseReviewing, CheckoutPhaseCashCollected, false},
		{CheckoutPhaseCollectingCash, CheckoutPhaseCashCollected, true},
		{CheckoutPhaseCollectingCash, CheckoutPhaseReviewing, true},
		{CheckoutPhaseCashCollected, CheckoutPhaseSubmitting, true},
		{CheckoutPhaseCashCollected, CheckoutPhaseReviewing, false},
		{CheckoutPhaseSubmitting, CheckoutPhaseCompleted, true},
		{CheckoutPhaseSubmitting, CheckoutPhaseFailed, true},
		{CheckoutPhaseSubmitting, CheckoutPhaseReviewing, false},
		{CheckoutPhaseFailed, CheckoutPhaseSubmitting, true},
		{CheckoutPhaseFailed, CheckoutPhaseReviewing, true},
		{CheckoutPhaseCompleted, CheckoutPhaseSubmitting, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestCheckoutPhase_AcceptsCartEdits(t *testing.T) {
	assert.True(t, CheckoutPhaseReviewing.AcceptsCartEdits())
	assert.True(t, CheckoutPhaseCompleted.AcceptsCartEdits())
	assert.False(t, CheckoutPhaseCollectingCash.AcceptsCartEdits())
	assert.False(t, CheckoutPhaseCashCollected.AcceptsCartEdits())
	assert.False(t, CheckoutPhaseSubmitting.AcceptsCartEdits())
	assert.False(t, CheckoutPhaseFailed.AcceptsCartEdits())
}

func TestCheckoutPhase_IsTerminal(t *testing.T) {
	assert.True(t, CheckoutPhaseCompleted.IsTerminal())
	assert.True(t, CheckoutPhaseFailed.IsTerminal())
	assert.False(t, CheckoutPhaseSubmitting.IsTerminal())
	assert.False(t, CheckoutPhaseCashCollected.IsTerminal())
}
