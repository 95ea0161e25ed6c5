package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/megamart-storefront/internal/journal"
	"github.com/sirupsen/logrus"
)

type JournalReader interface {
	ListPartialFailures(ctx context.Context) ([]*journal.Entry, error)
}

type JournalHandler struct {
	journal JournalReader
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewJournalHandler(journal JournalReader, timeout time.Duration, log logrus.FieldLogger) *JournalHandler {
	return &JournalHandler{journal: journal, timeout: timeout, log: log}
}

// PartialFailures lists submissions that took stock without creating an order.
func (h *JournalHandler) PartialFailures(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entries, err := h.journal.ListPartialFailures(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
