package domain

type CheckoutPhase string

const (
	CheckoutPhaseReviewing      CheckoutPhase = "REVIEWING"
	CheckoutPhaseCollectingCash CheckoutPhase = "COLLECTING_CASH"
	CheckoutPhaseCashCollected  CheckoutPhase = "CASH_COLLECTED"
	CheckoutPhaseSubmitting     CheckoutPhase = "SUBMITTING"
	CheckoutPhaseCompleted      CheckoutPhase = "COMPLETED"
	CheckoutPhaseFailed         CheckoutPhase = "FAILED"
)

var transitions = map[CheckoutPhase][]CheckoutPhase{
	CheckoutPhaseReviewing:      {CheckoutPhaseCollectingCash},
	CheckoutPhaseCollectingCash: {CheckoutPhaseCashCollected, CheckoutPhaseReviewing},
	CheckoutPhaseCashCollected:  {CheckoutPhaseSubmitting},
	CheckoutPhaseSubmitting:     {CheckoutPhaseCompleted, CheckoutPhaseFailed},
	CheckoutPhaseCompleted:      {CheckoutPhaseReviewing},
	CheckoutPhaseFailed:         {CheckoutPhaseSubmitting, CheckoutPhaseReviewing},
}

// CanTransitionTo reports whether the checkout may move from one phase to another.
func CanTransitionTo(from, to CheckoutPhase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (p CheckoutPhase) IsTerminal() bool {
	return p == CheckoutPhaseCompleted || p == CheckoutPhaseFailed
}

// AcceptsCartEdits reports whether lines may be added or removed in this phase.
func (p CheckoutPhase) AcceptsCartEdits() bool {
	return p == CheckoutPhaseReviewing || p == CheckoutPhaseCompleted
}

// String representation (for logging)
func (p CheckoutPhase) String() string {
	return string(p)
}
