package services

import (
	"math"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
)

// ComparatorConfig веса полей и пороги дрейфа
type ComparatorConfig struct {
	TitleWeight        float64
	PriceWeight        float64
	VariantsWeight     float64
	LastModifiedWeight float64

	// SyncThreshold дрейф выше порога требует синхронизации
	SyncThreshold float64
	// CriticalThreshold дрейф выше порога требует немедленной синхронизации
	CriticalThreshold float64

	PriceTolerance    float64
	ModifiedTolerance time.Duration
}

// DefaultComparatorConfig веса в сумме дают максимальный drift score (10)
func DefaultComparatorConfig() ComparatorConfig {
	return ComparatorConfig{
		TitleWeight:        3.0,
		PriceWeight:        4.0,
		VariantsWeight:     2.0,
		LastModifiedWeight: 1.0,
		SyncThreshold:      2.0,
		CriticalThreshold:  5.0,
		PriceTolerance:     0.005,
		ModifiedTolerance:  time.Minute,
	}
}

// Comparator сравнивает локальный листинг со снимком маркетплейса
type Comparator struct {
	cfg ComparatorConfig
}

func NewComparator(cfg ComparatorConfig) *Comparator {
	return &Comparator{cfg: cfg}
}

// Config возвращает пороги и веса компаратора
func (c *Comparator) Config() ComparatorConfig {
	return c.cfg
}

// Compare вычисляет расхождения и drift score.
// Отсутствующий снимок означает, что листинг ни разу не синхронизировался
func (c *Comparator) Compare(local models.Listing, remote *models.Snapshot) models.Comparison {
	if remote == nil {
		return models.Comparison{
			NeedsSync:      true,
			Differences:    []models.Difference{},
			Recommendation: models.RecommendSyncNow,
		}
	}

	diffs := make([]models.Difference, 0, 4)

	if strings.TrimSpace(local.Title) != strings.TrimSpace(remote.Title) {
		diffs = append(diffs, models.Difference{
			Field:    models.FieldTitle,
			OldValue: remote.Title,
			NewValue: local.Title,
			Weight:   c.cfg.TitleWeight,
		})
	}

	if math.Abs(local.Price-remote.Price) > c.cfg.PriceTolerance {
		diffs = append(diffs, models.Difference{
			Field:    models.FieldPrice,
			OldValue: remote.Price,
			NewValue: local.Price,
			Weight:   c.cfg.PriceWeight,
		})
	}

	if mismatched, total := c.variantMismatch(local.Variants, remote.Variants); mismatched > 0 {
		diffs = append(diffs, models.Difference{
			Field:    models.FieldVariants,
			OldValue: skus(remote.Variants),
			NewValue: skus(local.Variants),
			Weight:   c.cfg.VariantsWeight * float64(mismatched) / float64(total),
		})
	}

	if !local.UpdatedAt.IsZero() && !remote.UpdatedAt.IsZero() &&
		local.UpdatedAt.After(remote.UpdatedAt.Add(c.cfg.ModifiedTolerance)) {
		diffs = append(diffs, models.Difference{
			Field:    models.FieldLastModified,
			OldValue: remote.UpdatedAt,
			NewValue: local.UpdatedAt,
			Weight:   c.cfg.LastModifiedWeight,
		})
	}

	var drift float64
	for _, d := range diffs {
		drift += d.Weight
	}
	drift = clampDrift(drift)

	return models.Comparison{
		NeedsSync:      drift > c.cfg.SyncThreshold,
		DriftScore:     drift,
		Differences:    diffs,
		Recommendation: c.recommend(drift),
	}
}

// CompareMany сравнивает пакет. Каждый элемент обрабатывается ровно один раз,
// отсутствующий или поврежденный снимок дает рекомендацию unknown
func (c *Comparator) CompareMany(items []models.ComparisonInput) models.BulkComparison {
	out := models.BulkComparison{
		Summary: map[models.Recommendation]int{
			models.RecommendSyncNow: 0,
			models.RecommendMonitor: 0,
			models.RecommendIgnore:  0,
			models.RecommendUnknown: 0,
		},
		PerProduct:  make([]models.ProductComparison, 0, len(items)),
		DriftAlerts: []string{},
	}
	alerted := make(map[string]struct{})

	for _, item := range items {
		pc := models.ProductComparison{ProductID: item.ProductID, GroupKey: item.GroupKey}

		switch {
		case item.Remote == nil:
			pc.Recommendation = models.RecommendUnknown
			pc.Error = "remote snapshot is missing"
		default:
			if err := item.Remote.Validate(); err != nil {
				pc.Recommendation = models.RecommendUnknown
				pc.Error = err.Error()
				break
			}
			cmp := c.Compare(item.Local, item.Remote)
			pc.Comparison = &cmp
			pc.Recommendation = cmp.Recommendation
			if cmp.DriftScore > c.cfg.CriticalThreshold {
				if _, seen := alerted[item.ProductID]; !seen {
					alerted[item.ProductID] = struct{}{}
					out.DriftAlerts = append(out.DriftAlerts, item.ProductID)
				}
			}
		}

		out.Summary[pc.Recommendation]++
		out.PerProduct = append(out.PerProduct, pc)
	}

	return out
}

func (c *Comparator) recommend(drift float64) models.Recommendation {
	switch {
	case drift > c.cfg.CriticalThreshold:
		return models.RecommendSyncNow
	case drift > 0:
		return models.RecommendMonitor
	default:
		return models.RecommendIgnore
	}
}

// variantMismatch считает варианты, отсутствующие с одной из сторон или отличающиеся
func (c *Comparator) variantMismatch(local, remote []models.VariantSnapshot) (mismatched, total int) {
	remoteBySKU := make(map[string]models.VariantSnapshot, len(remote))
	for _, v := range remote {
		remoteBySKU[v.SKU] = v
	}

	seen := make(map[string]struct{}, len(local))
	for _, lv := range local {
		seen[lv.SKU] = struct{}{}
		total++
		rv, ok := remoteBySKU[lv.SKU]
		if !ok || strings.TrimSpace(rv.Title) != strings.TrimSpace(lv.Title) ||
			math.Abs(rv.Price-lv.Price) > c.cfg.PriceTolerance {
			mismatched++
		}
	}
	for sku := range remoteBySKU {
		if _, ok := seen[sku]; !ok {
			total++
			mismatched++
		}
	}
	return mismatched, total
}

func skus(variants []models.VariantSnapshot) []string {
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		out = append(out, v.SKU)
	}
	return out
}

func clampDrift(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > models.MaxDriftScore {
		return models.MaxDriftScore
	}
	return math.Round(v*100) / 100
}
