package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "products": [
    {"id": "p1", "title": "T-shirt", "price": 19.9, "currency": "USD",
     "variants": [{"sku": "p1-red-m", "group_key": "red", "title": "Red M", "price": 19.9, "quantity": 3}]},
    {"id": "p2", "title": "Mug", "price": 7, "currency": "USD"}
  ],
  "accounts": [
    {"id": "acc-1", "name": "Main store", "channel": "shopify", "active": true}
  ],
  "links": [
    {"product_id": "p1", "group_key": "red", "account_id": "acc-1", "listing_handle": "t-shirt-red"},
    {"product_id": "p2", "account_id": "acc-1"}
  ]
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	seed, err := LoadSeedFile(ctx, s, writeSeed(t, seedJSON))
	require.NoError(t, err)
	assert.Len(t, seed.Products, 2)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"red"}, p.GroupKeys())

	link, err := s.GetLink(ctx, "p2", pkgmodels.DefaultGroupKey, "acc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, link.ID)

	ids, err := s.ListLinkedProductIDs(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	active, err := s.ListActiveAccountIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1"}, active)
}

func TestLoadSeedFile_Invalid(t *testing.T) {
	ctx := context.Background()

	_, err := LoadSeedFile(ctx, NewMemoryStorage(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadSeedFile(ctx, NewMemoryStorage(), writeSeed(t, `{"products": [`))
	assert.Error(t, err)

	_, err = LoadSeedFile(ctx, NewMemoryStorage(), writeSeed(t, `{"accounts": [{"id": "a", "channel": "ebay"}]}`))
	assert.ErrorContains(t, err, "unknown channel type")

	_, err = LoadSeedFile(ctx, NewMemoryStorage(), writeSeed(t, `{"links": [{"product_id": "p1", "account_id": "a"}]}`))
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
