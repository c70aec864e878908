package models

import (
	"fmt"
	"strings"
)

// SyncStatus состояние связи записи синхронизации с маркетплейсом.
// Нулевое значение невалидно
type SyncStatus uint8

const (
	StatusUnlinked SyncStatus = iota + 1
	StatusPending
	StatusSynced
	StatusDrifted
	StatusFailed
)

var syncStatusNames = map[SyncStatus]string{
	StatusUnlinked: "unlinked",
	StatusPending:  "pending",
	StatusSynced:   "synced",
	StatusDrifted:  "drifted",
	StatusFailed:   "failed",
}

// AllStatuses возвращает все статусы в порядке объявления
func AllStatuses() []SyncStatus {
	return []SyncStatus{StatusUnlinked, StatusPending, StatusSynced, StatusDrifted, StatusFailed}
}

func (s SyncStatus) String() string {
	if name, ok := syncStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SyncStatus(%d)", uint8(s))
}

func (s SyncStatus) Valid() bool {
	_, ok := syncStatusNames[s]
	return ok
}

// Severity используется для вычисления итогового статуса товара:
// failed > drifted > pending > unlinked > synced
func (s SyncStatus) Severity() int {
	switch s {
	case StatusFailed:
		return 5
	case StatusDrifted:
		return 4
	case StatusPending:
		return 3
	case StatusUnlinked:
		return 2
	case StatusSynced:
		return 1
	default:
		return 0
	}
}

// ParseSyncStatus разбирает строковое представление статуса
func ParseSyncStatus(s string) (SyncStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for st, name := range syncStatusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown sync status %q", s)
}

func (s SyncStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid sync status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *SyncStatus) UnmarshalText(text []byte) error {
	st, err := ParseSyncStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// WorstStatus возвращает самый тяжелый статус из списка
func WorstStatus(statuses ...SyncStatus) SyncStatus {
	var worst SyncStatus
	for _, s := range statuses {
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}

// Grade буквенная оценка здоровья записи
type Grade uint8

const (
	GradeNA Grade = iota
	GradeAPlus
	GradeA
	GradeB
	GradeC
	GradeD
	GradeF
)

var gradeNames = map[Grade]string{
	GradeNA:    "N/A",
	GradeAPlus: "A+",
	GradeA:     "A",
	GradeB:     "B",
	GradeC:     "C",
	GradeD:     "D",
	GradeF:     "F",
}

// AllGrades возвращает все оценки от лучшей к худшей, N/A в конце
func AllGrades() []Grade {
	return []Grade{GradeAPlus, GradeA, GradeB, GradeC, GradeD, GradeF, GradeNA}
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Grade(%d)", uint8(g))
}

func (g Grade) MarshalText() ([]byte, error) {
	if _, ok := gradeNames[g]; !ok {
		return nil, fmt.Errorf("invalid grade %d", uint8(g))
	}
	return []byte(g.String()), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	for gr, name := range gradeNames {
		if name == string(text) {
			*g = gr
			return nil
		}
	}
	return fmt.Errorf("unknown grade %q", string(text))
}

// Recommendation рекомендация компаратора
type Recommendation uint8

const (
	RecommendUnknown Recommendation = iota
	RecommendIgnore
	RecommendMonitor
	RecommendSyncNow
)

var recommendationNames = map[Recommendation]string{
	RecommendUnknown: "unknown",
	RecommendIgnore:  "ignore",
	RecommendMonitor: "monitor",
	RecommendSyncNow: "sync_now",
}

func (r Recommendation) String() string {
	if name, ok := recommendationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Recommendation(%d)", uint8(r))
}

func (r Recommendation) MarshalText() ([]byte, error) {
	if _, ok := recommendationNames[r]; !ok {
		return nil, fmt.Errorf("invalid recommendation %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Recommendation) UnmarshalText(text []byte) error {
	for rec, name := range recommendationNames {
		if name == string(text) {
			*r = rec
			return nil
		}
	}
	return fmt.Errorf("unknown recommendation %q", string(text))
}

// Method способ запуска синхронизации
type Method uint8

const (
	MethodManual Method = iota + 1
	MethodScheduled
	MethodWebhook
)

var methodNames = map[Method]string{
	MethodManual:    "manual",
	MethodScheduled: "scheduled",
	MethodWebhook:   "webhook-triggered",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// ParseMethod разбирает способ запуска. Пустая строка означает manual
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MethodManual, nil
	}
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown sync method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid sync method %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
