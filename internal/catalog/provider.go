package catalog

import (
	"context"
	"time"

	"github.com/fjod/megamart-storefront/internal/domain"
)

type Provider interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListStock(ctx context.Context) ([]domain.StockLevel, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name string) (domain.Category, error)
}

// Snapshot is one read of products, stock and categories.
type Snapshot struct {
	Products   []domain.Product    `json:"products"`
	Stock      []domain.StockLevel `json:"stock"`
	Categories []domain.Category   `json:"categories"`
	FetchedAt  time.Time           `json:"fetched_at"`
}

func (s *Snapshot) StockSnapshot() domain.StockSnapshot {
	return domain.NewStockSnapshot(s.Stock)
}

func (s *Snapshot) Product(id int64) (domain.Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}
