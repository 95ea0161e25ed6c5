package domain

import "github.com/shopspring/decimal"

// CartLine is one aggregated entry of the in-progress order. There is at most one
// line per StockID.
type CartLine struct {
	StockID     int64           `json:"stock_id"`
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
