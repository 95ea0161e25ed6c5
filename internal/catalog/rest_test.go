package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/fjod/megamart-storefront/internal/restclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	bodies  map[string]string
	err     error
	paths   []string
	posted  []string
	postErr error
}

func (f *fakeGetter) Post(_ context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	f.posted = append(f.posted, path+" "+string(data))
	if f.postErr != nil {
		return f.postErr
	}
	return json.Unmarshal([]byte(f.bodies[path]), out)
}

func (f *fakeGetter) Get(_ context.Context, path string, out interface{}) error {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.bodies[path]), out)
}

func TestRESTProvider_ListProducts(t *testing.T) {
	getter := &fakeGetter{bodies: map[string]string{
		itemsPath: `[
			{"id":1,"name":"Rice 5kg","description":"Samba rice","price":1450.00,"category":{"id":10,"name":"Grains"}},
			{"id":2,"name":"Loose item","description":"","price":"99.90"},
			{"id":3,"name":"Broken","description":"","price":-5,"category":{"id":10,"name":"Grains"}}
		]`,
	}}
	log, hook := test.NewNullLogger()
	provider := NewRESTProvider(getter, log)

	products, err := provider.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, "Samba rice", products[0].Description)
	assert.Equal(t, int64(10), products[0].CategoryID)
	assert.True(t, products[0].Price.Equal(decimal.NewFromInt(1450)))

	assert.Equal(t, int64(0), products[1].CategoryID)
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("99.9")))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "skipping product with negative price", hook.LastEntry().Message)
	assert.Equal(t, []string{"/MegaMartLanka/items"}, getter.paths)
}

func TestRESTProvider_ListStock(t *testing.T) {
	getter := &fakeGetter{bodies: map[string]string{
		stockPath: `[
			{"id":101,"qoh":12,"item":{"id":1}},
			{"id":102,"qoh":-3,"item":{"id":2}},
			{"id":103,"qoh":7}
		]`,
	}}
	log, _ := test.NewNullLogger()
	provider := NewRESTProvider(getter, log)

	levels, err := provider.ListStock(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, int64(101), levels[0].StockID)
	assert.Equal(t, int64(1), levels[0].ProductID)
	assert.Equal(t, 12, levels[0].QuantityOnHand)
	assert.Equal(t, 0, levels[1].QuantityOnHand)
}

func TestRESTProvider_ListCategories(t *testing.T) {
	getter := &fakeGetter{bodies: map[string]string{
		categoryPath: `[{"id":10,"name":"Grains"},{"id":11,"name":"Oils"}]`,
	}}
	log, _ := test.NewNullLogger()

	categories, err := NewRESTProvider(getter, log).ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Oils", categories[1].Name)
}

func TestRESTProvider_BackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	getter := &fakeGetter{err: backendErr}
	log, _ := test.NewNullLogger()
	provider := NewRESTProvider(getter, log)

	_, err := provider.ListProducts(context.Background())
	assert.ErrorIs(t, err, backendErr)
	assert.Contains(t, err.Error(), "failed to list products")

	_, err = provider.ListStock(context.Background())
	assert.ErrorIs(t, err, backendErr)

	_, err = provider.ListCategories(context.Background())
	assert.ErrorIs(t, err, backendErr)
}

func TestRESTProvider_CreateCategory(t *testing.T) {
	getter := &fakeGetter{bodies: map[string]string{
		categoryPath: `{"id":14,"name":"Spices"}`,
	}}
	log, _ := test.NewNullLogger()

	category, err := NewRESTProvider(getter, log).CreateCategory(context.Background(), "Spices")
	require.NoError(t, err)
	assert.Equal(t, domain.Category{ID: 14, Name: "Spices"}, category)
	assert.Equal(t, []string{`/MegaMartLanka/category {"name":"Spices"}`}, getter.posted)
}

func TestRESTProvider_CreateCategory_PlainTextReply(t *testing.T) {
	getter := &fakeGetter{postErr: fmt.Errorf("POST %s: %w: invalid character", categoryPath, restclient.ErrDecodeResponse)}
	log, _ := test.NewNullLogger()

	category, err := NewRESTProvider(getter, log).CreateCategory(context.Background(), "Spices")
	require.NoError(t, err)
	assert.Equal(t, domain.Category{Name: "Spices"}, category)
}

func TestRESTProvider_CreateCategory_BackendError(t *testing.T) {
	getter := &fakeGetter{postErr: restclient.ErrUnavailable}
	log, _ := test.NewNullLogger()

	_, err := NewRESTProvider(getter, log).CreateCategory(context.Background(), "Spices")
	assert.ErrorIs(t, err, restclient.ErrUnavailable)
	assert.Contains(t, err.Error(), "failed to create category")
}
