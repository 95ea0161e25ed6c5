package domain

import "github.com/shopspring/decimal"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id"`
}

// StockLevel is the backend's stock record for one product. StockID and ProductID
// are different identifiers.
type StockLevel struct {
	StockID        int64 `json:"stock_id"`
	ProductID      int64 `json:"product_id"`
	QuantityOnHand int   `json:"quantity_on_hand"`
}

// StockSnapshot is a point-in-time read of stock, indexed by product id.
type StockSnapshot struct {
	byProduct map[int64]StockLevel
}

// NewStockSnapshot indexes levels by product id. When the backend returns more than
// one record for a product the first one wins.
func NewStockSnapshot(levels []StockLevel) StockSnapshot {
	byProduct := make(map[int64]StockLevel, len(levels))
	for _, l := range levels {
		if _, exists := byProduct[l.ProductID]; exists {
			continue
		}
		byProduct[l.ProductID] = l
	}
	return StockSnapshot{byProduct: byProduct}
}

func (s StockSnapshot) ForProduct(productID int64) (StockLevel, bool) {
	l, ok := s.byProduct[productID]
	return l, ok
}

func (s StockSnapshot) Len() int {
	return len(s.byProduct)
}
