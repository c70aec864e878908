package services

import (
	"math"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
)

// HealthConfig константы формулы здоровья записи
type HealthConfig struct {
	BaseSynced   float64
	BasePending  float64
	BaseDrifted  float64
	BaseFailed   float64
	DriftPenalty float64 // за единицу drift score

	StalePenaltyPerHour float64
	MaxStalePenalty     float64

	FailurePenalty    float64 // за каждую неудачу подряд
	MaxFailurePenalty float64
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		BaseSynced:          100,
		BasePending:         85,
		BaseDrifted:         75,
		BaseFailed:          60,
		DriftPenalty:        4,
		StalePenaltyPerHour: 0.5,
		MaxStalePenalty:     25,
		FailurePenalty:      5,
		MaxFailurePenalty:   25,
	}
}

// HealthScorer вычисляет оценку здоровья записи синхронизации
type HealthScorer struct {
	cfg HealthConfig
	now func() time.Time
}

func NewHealthScorer(cfg HealthConfig, now func() time.Time) *HealthScorer {
	if now == nil {
		now = time.Now
	}
	return &HealthScorer{cfg: cfg, now: now}
}

// Score возвращает оценку 0..100 или nil, если запись ни разу не синхронизировалась
func (h *HealthScorer) Score(rec *models.SyncRecord) *int {
	return h.ScoreAt(rec, h.now())
}

// ScoreAt вычисляет оценку на заданный момент
func (h *HealthScorer) ScoreAt(rec *models.SyncRecord, now time.Time) *int {
	if rec == nil || rec.LastSyncedAt == nil {
		return nil
	}

	score := h.base(rec.Status)
	score -= h.cfg.DriftPenalty * math.Max(0, rec.DriftScore)

	hours := now.Sub(*rec.LastSyncedAt).Hours()
	if hours > 0 {
		score -= math.Min(h.cfg.MaxStalePenalty, h.cfg.StalePenaltyPerHour*hours)
	}

	if rec.FailureCount > 0 {
		score -= math.Min(h.cfg.MaxFailurePenalty, h.cfg.FailurePenalty*float64(rec.FailureCount))
	}

	v := int(math.Round(score))
	if v < 0 {
		v = 0
	}
	if v > models.MaxHealthScore {
		v = models.MaxHealthScore
	}
	return &v
}

func (h *HealthScorer) base(s models.SyncStatus) float64 {
	switch s {
	case models.StatusSynced:
		return h.cfg.BaseSynced
	case models.StatusPending, models.StatusUnlinked:
		return h.cfg.BasePending
	case models.StatusDrifted:
		return h.cfg.BaseDrifted
	case models.StatusFailed:
		return h.cfg.BaseFailed
	default:
		return 0
	}
}

// GradeFor переводит оценку в буквенную
func GradeFor(score *int) models.Grade {
	if score == nil {
		return models.GradeNA
	}
	switch s := *score; {
	case s >= 95:
		return models.GradeAPlus
	case s >= 85:
		return models.GradeA
	case s >= 70:
		return models.GradeB
	case s >= 55:
		return models.GradeC
	case s >= 50:
		return models.GradeD
	default:
		return models.GradeF
	}
}
