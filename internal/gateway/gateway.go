package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fjod/megamart-storefront/internal/restclient"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	decrementPath = "/MegaMartLanka/stock/getfrom"
	ordersPath    = "/MegaMartLanka/orders"
)

// Client is the part of the REST client the gateway needs.
type Client interface {
	Put(ctx context.Context, path string, body, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

type stockDecrement struct {
	ID  int64 `json:"id"`
	Qty int   `json:"qty"`
}

type createOrderRequest struct {
	ItemIDs []int64 `json:"itemIds"`
}

type createOrderResponse struct {
	ID json.RawMessage `json:"id"`
}

// REST implements cart.Gateway against the MegaMartLanka backend.
type REST struct {
	client  Client
	timeout time.Duration
	log     logrus.FieldLogger
	newID   func() string
}

func NewREST(client Client, timeout time.Duration, log logrus.FieldLogger) *REST {
	return &REST{
		client:  client,
		timeout: timeout,
		log:     log,
		newID:   func() string { return uuid.NewString() },
	}
}

func (g *REST) DecrementStock(ctx context.Context, request map[int64]int) error {
	body := mapDecrements(request)

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()
	if err := g.client.Put(callCtx, decrementPath, body, nil); err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	g.log.WithField("stock_lines", len(body)).Info("stock decremented")
	return nil
}

// CreateOrder posts one product id per unit and returns the backend order id.
// The backend does not always echo an id, in which case a local one is issued.
func (g *REST) CreateOrder(ctx context.Context, productIDs []int64) (string, error) {
	var resp createOrderResponse

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()
	err := g.client.Post(callCtx, ordersPath, createOrderRequest{ItemIDs: productIDs}, &resp)
	switch {
	case errors.Is(err, restclient.ErrDecodeResponse):
		// the order exists, only the body was not JSON
		g.log.WithError(err).Warn("unreadable order response")
	case err != nil:
		return "", fmt.Errorf("failed to create order: %w", err)
	}

	orderID := orderIDString(resp.ID)
	if orderID == "" {
		orderID = g.newID()
		g.log.WithField("order_id", orderID).Debug("backend returned no order id, generated one")
	}
	return orderID, nil
}

func (g *REST) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func mapDecrements(request map[int64]int) []stockDecrement {
	items := make([]stockDecrement, 0, len(request))
	for stockID, qty := range request {
		items = append(items, stockDecrement{ID: stockID, Qty: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// orderIDString keeps numeric ids as the backend wrote them.
func orderIDString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw)
	default:
		return ""
	}
}
