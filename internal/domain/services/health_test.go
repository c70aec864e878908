package services

import (
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreOf(t *testing.T, h *HealthScorer, rec *models.SyncRecord) int {
	t.Helper()
	s := h.ScoreAt(rec, fixedNow)
	require.NotNil(t, s)
	return *s
}

func TestHealthScorer_NeverSynced(t *testing.T) {
	h := NewHealthScorer(DefaultHealthConfig(), nil)
	rec := &models.SyncRecord{Status: models.StatusPending}

	assert.Nil(t, h.ScoreAt(rec, fixedNow))
	assert.Nil(t, h.ScoreAt(nil, fixedNow))
	assert.Equal(t, models.GradeNA, GradeFor(h.ScoreAt(rec, fixedNow)))
}

func TestHealthScorer_FreshSynced(t *testing.T) {
	h := NewHealthScorer(DefaultHealthConfig(), nil)
	rec := &models.SyncRecord{Status: models.StatusSynced, LastSyncedAt: timePtr(fixedNow)}

	assert.GreaterOrEqual(t, scoreOf(t, h, rec), 95)
}

func TestHealthScorer_FailedStaleDrifted(t *testing.T) {
	h := NewHealthScorer(DefaultHealthConfig(), nil)
	rec := &models.SyncRecord{
		Status:       models.StatusFailed,
		DriftScore:   8,
		LastSyncedAt: timePtr(fixedNow.Add(-48 * time.Hour)),
	}

	assert.Less(t, scoreOf(t, h, rec), 50)
}

func TestHealthScorer_Bounded(t *testing.T) {
	h := NewHealthScorer(DefaultHealthConfig(), nil)

	for _, st := range models.AllStatuses() {
		for _, drift := range []float64{0, 2.5, 10} {
			for _, age := range []time.Duration{0, 5 * time.Hour, 30 * 24 * time.Hour} {
				for _, failures := range []int{0, 3, 100} {
					rec := &models.SyncRecord{
						Status:       st,
						DriftScore:   drift,
						FailureCount: failures,
						LastSyncedAt: timePtr(fixedNow.Add(-age)),
					}
					s := scoreOf(t, h, rec)
					assert.GreaterOrEqual(t, s, 0)
					assert.LessOrEqual(t, s, models.MaxHealthScore)
				}
			}
		}
	}
}

func TestHealthScorer_Monotonic(t *testing.T) {
	h := NewHealthScorer(DefaultHealthConfig(), nil)
	base := &models.SyncRecord{Status: models.StatusSynced, LastSyncedAt: timePtr(fixedNow.Add(-time.Hour))}

	moreDrift := base.Clone()
	moreDrift.DriftScore = 3
	assert.Less(t, scoreOf(t, h, moreDrift), scoreOf(t, h, base))

	older := base.Clone()
	older.LastSyncedAt = timePtr(fixedNow.Add(-20 * time.Hour))
	assert.Less(t, scoreOf(t, h, older), scoreOf(t, h, base))

	failing := base.Clone()
	failing.FailureCount = 2
	assert.Less(t, scoreOf(t, h, failing), scoreOf(t, h, base))
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score *int
		want  models.Grade
	}{
		{intPtr(100), models.GradeAPlus},
		{intPtr(97), models.GradeAPlus},
		{intPtr(95), models.GradeAPlus},
		{intPtr(94), models.GradeA},
		{intPtr(85), models.GradeA},
		{intPtr(77), models.GradeB},
		{intPtr(70), models.GradeB},
		{intPtr(55), models.GradeC},
		{intPtr(50), models.GradeD},
		{intPtr(45), models.GradeF},
		{intPtr(0), models.GradeF},
		{nil, models.GradeNA},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.score))
	}
	assert.Equal(t, "A+", GradeFor(intPtr(97)).String())
	assert.Equal(t, "N/A", GradeFor(nil).String())
}
