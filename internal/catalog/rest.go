package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/fjod/megamart-storefront/internal/restclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	itemsPath    = "/MegaMartLanka/items"
	stockPath    = "/MegaMartLanka/stock"
	categoryPath = "/MegaMartLanka/category"
)

// Backend is the part of the REST client the catalog needs.
type Backend interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

type categoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type newCategoryRequest struct {
	Name string `json:"name"`
}

type itemDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    *categoryDTO    `json:"category"`
}

type stockDTO struct {
	ID   int64 `json:"id"`
	Qoh  int   `json:"qoh"`
	Item *struct {
		ID int64 `json:"id"`
	} `json:"item"`
}

type RESTProvider struct {
	client Backend
	log    logrus.FieldLogger
}

func NewRESTProvider(client Backend, log logrus.FieldLogger) *RESTProvider {
	return &RESTProvider{client: client, log: log}
}

func (p *RESTProvider) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var items []itemDTO
	if err := p.client.Get(ctx, itemsPath, &items); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		if item.Price.IsNegative() {
			p.log.WithField("product_id", item.ID).Warn("skipping product with negative price")
			continue
		}
		product := domain.Product{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
		}
		if item.Category != nil {
			product.CategoryID = item.Category.ID
		}
		products = append(products, product)
	}
	return products, nil
}

func (p *RESTProvider) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	var records []stockDTO
	if err := p.client.Get(ctx, stockPath, &records); err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}

	levels := make([]domain.StockLevel, 0, len(records))
	for _, r := range records {
		if r.Item == nil {
			p.log.WithField("stock_id", r.ID).Warn("skipping stock record without item")
			continue
		}
		qoh := r.Qoh
		if qoh < 0 {
			qoh = 0
		}
		levels = append(levels, domain.StockLevel{
			StockID:        r.ID,
			ProductID:      r.Item.ID,
			QuantityOnHand: qoh,
		})
	}
	return levels, nil
}

func (p *RESTProvider) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var dtos []categoryDTO
	if err := p.client.Get(ctx, categoryPath, &dtos); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]domain.Category, len(dtos))
	for i, c := range dtos {
		categories[i] = domain.Category{ID: c.ID, Name: c.Name}
	}
	return categories, nil
}

// CreateCategory posts a new category. Some backend builds answer with plain text,
// in which case only the name is known.
func (p *RESTProvider) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	var created categoryDTO
	err := p.client.Post(ctx, categoryPath, newCategoryRequest{Name: name}, &created)
	if err != nil && !errors.Is(err, restclient.ErrDecodeResponse) {
		return domain.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	if created.Name == "" {
		created.Name = name
	}
	return domain.Category{ID: created.ID, Name: created.Name}, nil
}
