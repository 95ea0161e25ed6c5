package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "snapshot"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrBlankCategoryName = errors.New("category name cannot be empty")
)

type Service struct {
	provider Provider
	cache    Cache
	log      logrus.FieldLogger
	sfg      singleflight.Group
	now      func() time.Time

	// bumped by Invalidate; a fetch that started under an older generation is not cached
	generation atomic.Uint64
}

func NewService(provider Provider, cache Cache, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// Snapshot returns the cached catalog, reading it from the backend on a miss.
// Concurrent misses share one backend read.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.sfg.Do(snapshotKey, func() (interface{}, error) {
		snapshot, err := s.cache.Get(ctx)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.WithError(err).Warn("catalog cache get failed")
		}

		gen := s.generation.Load()
		snapshot, err = s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store(snapshot, gen)

		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// store caches a snapshot read under generation gen. If an invalidation lands
// before or during the write, the entry is dropped again.
func (s *Service) store(snapshot *Snapshot, gen uint64) {
	if s.generation.Load() != gen {
		s.log.Debug("catalog invalidated during fetch, not caching")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, snapshot); err != nil {
		s.log.WithError(err).Warn("catalog cache set failed")
		return
	}
	if s.generation.Load() != gen {
		if err := s.cache.Delete(ctx); err != nil {
			s.log.WithError(err).Warn("catalog cache invalidate failed")
		}
	}
}

func (s *Service) fetch(ctx context.Context) (*Snapshot, error) {
	products, err := s.provider.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	stock, err := s.provider.ListStock(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.provider.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]struct{}, len(products))
	for _, p := range products {
		known[p.ID] = struct{}{}
	}
	levels := stock[:0:0]
	for _, level := range stock {
		if _, ok := known[level.ProductID]; !ok {
			s.log.WithFields(logrus.Fields{
				"stock_id":   level.StockID,
				"product_id": level.ProductID,
			}).Debug("dropping stock record for unknown product")
			continue
		}
		levels = append(levels, level)
	}

	s.log.WithFields(logrus.Fields{
		"products":   len(products),
		"stock":      len(levels),
		"categories": len(categories),
	}).Info("catalog fetched")

	return &Snapshot{
		Products:   products,
		Stock:      levels,
		Categories: categories,
		FetchedAt:  s.now(),
	}, nil
}

// Product looks a product up together with the stock snapshot it was read with.
func (s *Service) Product(ctx context.Context, id int64) (domain.Product, domain.StockSnapshot, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Product{}, domain.StockSnapshot{}, err
	}
	product, ok := snapshot.Product(id)
	if !ok {
		return domain.Product{}, domain.StockSnapshot{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return product, snapshot.StockSnapshot(), nil
}

// Invalidate drops the cached snapshot. Called after stock changes on the backend.
func (s *Service) Invalidate() {
	s.generation.Add(1)
	s.sfg.Forget(snapshotKey)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx); err != nil {
		s.log.WithError(err).Warn("catalog cache invalidate failed")
	}
}

// AddCategory creates a category on the backend and drops the cached catalog so
// the next read lists it.
func (s *Service) AddCategory(ctx context.Context, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, ErrBlankCategoryName
	}

	category, err := s.provider.CreateCategory(ctx, name)
	if err != nil {
		return domain.Category{}, err
	}
	s.Invalidate()

	s.log.WithField("category", category.Name).Info("category added")
	return category, nil
}

// Search matches the query against name and description, ignoring case.
// An empty query matches everything.
func Search(products []domain.Product, query string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}
	matched := make([]domain.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) {
			matched = append(matched, p)
		}
	}
	return matched
}

func FilterByCategory(products []domain.Product, categoryID int64) []domain.Product {
	matched := make([]domain.Product, 0)
	for _, p := range products {
		if p.CategoryID == categoryID {
			matched = append(matched, p)
		}
	}
	return matched
}
