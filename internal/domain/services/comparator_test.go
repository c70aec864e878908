package services

import (
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseListing() models.Listing {
	return models.Listing{
		ProductID: "p1",
		GroupKey:  "default",
		Title:     "Linen shirt",
		Price:     49.90,
		Variants: []models.VariantSnapshot{
			{SKU: "s-1", Title: "S", Price: 49.90},
			{SKU: "m-1", Title: "M", Price: 49.90},
		},
		UpdatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func snapshotOf(l models.Listing) *models.Snapshot {
	return models.SnapshotFromListing("ext-1", l, l.UpdatedAt)
}

func TestComparator_Identical(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()

	cmp := c.Compare(local, snapshotOf(local))

	assert.False(t, cmp.NeedsSync)
	assert.Zero(t, cmp.DriftScore)
	assert.Empty(t, cmp.Differences)
	assert.Equal(t, models.RecommendIgnore, cmp.Recommendation)
}

func TestComparator_MissingRemote(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())

	cmp := c.Compare(baseListing(), nil)

	assert.True(t, cmp.NeedsSync)
	assert.Zero(t, cmp.DriftScore)
	assert.Equal(t, models.RecommendSyncNow, cmp.Recommendation)
}

func TestComparator_TitleAndPriceDrift(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()
	remote := snapshotOf(local)
	remote.Title = "Old linen shirt"
	remote.Price = 39.90

	cmp := c.Compare(local, remote)

	assert.True(t, cmp.NeedsSync)
	assert.Equal(t, 7.0, cmp.DriftScore)
	assert.Equal(t, models.RecommendSyncNow, cmp.Recommendation)
	require.Len(t, cmp.Differences, 2)
	assert.Equal(t, models.FieldTitle, cmp.Differences[0].Field)
	assert.Equal(t, "Old linen shirt", cmp.Differences[0].OldValue)
	assert.Equal(t, "Linen shirt", cmp.Differences[0].NewValue)
	assert.Equal(t, models.FieldPrice, cmp.Differences[1].Field)
	assert.Equal(t, 4.0, cmp.Differences[1].Weight)
}

func TestComparator_MonitorBand(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()
	remote := snapshotOf(local)
	remote.Title = "Other"

	cmp := c.Compare(local, remote)

	assert.Equal(t, 3.0, cmp.DriftScore)
	assert.True(t, cmp.NeedsSync)
	assert.Equal(t, models.RecommendMonitor, cmp.Recommendation)
}

func TestComparator_VariantsWeightedByShare(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()
	remote := snapshotOf(local)
	// одна из двух SKU заменена: 2 несовпадения из 3 уникальных SKU
	remote.Variants = []models.VariantSnapshot{
		{SKU: "s-1", Title: "S", Price: 49.90},
		{SKU: "l-1", Title: "L", Price: 49.90},
	}

	cmp := c.Compare(local, remote)

	require.Len(t, cmp.Differences, 1)
	assert.Equal(t, models.FieldVariants, cmp.Differences[0].Field)
	assert.InDelta(t, 2.0*2/3, cmp.Differences[0].Weight, 1e-9)
	assert.Equal(t, 1.33, cmp.DriftScore)
	assert.False(t, cmp.NeedsSync)
	assert.Equal(t, models.RecommendMonitor, cmp.Recommendation)
}

func TestComparator_LastModifiedTolerance(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()

	within := snapshotOf(local)
	within.UpdatedAt = local.UpdatedAt.Add(-30 * time.Second)
	assert.Zero(t, c.Compare(local, within).DriftScore)

	behind := snapshotOf(local)
	behind.UpdatedAt = local.UpdatedAt.Add(-2 * time.Hour)
	cmp := c.Compare(local, behind)
	assert.Equal(t, 1.0, cmp.DriftScore)
	assert.Equal(t, models.FieldLastModified, cmp.Differences[0].Field)
}

func TestComparator_DriftBounded(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()
	remote := &models.Snapshot{
		ExternalID: "ext-1",
		Title:      "completely different",
		Price:      1,
		Variants:   []models.VariantSnapshot{{SKU: "x", Title: "X", Price: 1}},
		UpdatedAt:  local.UpdatedAt.Add(-24 * time.Hour),
	}

	cmp := c.Compare(local, remote)

	assert.Equal(t, models.MaxDriftScore, cmp.DriftScore)
	assert.GreaterOrEqual(t, cmp.DriftScore, 0.0)
}

func TestComparator_CompareMany(t *testing.T) {
	c := NewComparator(DefaultComparatorConfig())
	local := baseListing()

	drifted := snapshotOf(local)
	drifted.Title = "x"
	drifted.Price = 1

	malformed := snapshotOf(local)
	malformed.Variants = []models.VariantSnapshot{{SKU: "", Price: 1}}

	res := c.CompareMany([]models.ComparisonInput{
		{ProductID: "p1", Local: local, Remote: snapshotOf(local)},
		{ProductID: "p2", Local: local, Remote: drifted},
		{ProductID: "p2", GroupKey: "red", Local: local, Remote: drifted},
		{ProductID: "p3", Local: local, Remote: nil},
		{ProductID: "p4", Local: local, Remote: malformed},
	})

	require.Len(t, res.PerProduct, 5)
	assert.Equal(t, 1, res.Summary[models.RecommendIgnore])
	assert.Equal(t, 2, res.Summary[models.RecommendSyncNow])
	assert.Equal(t, 0, res.Summary[models.RecommendMonitor])
	assert.Equal(t, 2, res.Summary[models.RecommendUnknown])
	assert.Equal(t, []string{"p2"}, res.DriftAlerts)

	assert.Nil(t, res.PerProduct[3].Comparison)
	assert.NotEmpty(t, res.PerProduct[3].Error)
	assert.Contains(t, res.PerProduct[4].Error, models.ErrMalformedSnapshot.Error())
}
