package model

import (
	"time"

	"github.com/google/uuid"
)

type VisitStatus string

const (
	VisitStatusPending    VisitStatus = "PENDING_PROVIDER_CONFIRMATION" // Ожидает подтверждения врача
	VisitStatusScheduled  VisitStatus = "SCHEDULED"
	VisitStatusInProgress VisitStatus = "IN_PROGRESS"
	VisitStatusCompleted  VisitStatus = "COMPLETED"
	VisitStatusCancelled  VisitStatus = "CANCELLED"
)

// ParseVisitStatus разбирает статус визита
func ParseVisitStatus(s string) (VisitStatus, bool) {
	switch st := VisitStatus(s); st {
	case VisitStatusPending, VisitStatusScheduled, VisitStatusInProgress, VisitStatusCompleted, VisitStatusCancelled:
		return st, true
	}
	return "", false
}

// Blocking сообщает, занимает ли визит время участников
func (s VisitStatus) Blocking() bool {
	return s == VisitStatusPending || s == VisitStatusScheduled || s == VisitStatusInProgress
}

type VisitCategory string

const (
	VisitCategoryHiring          VisitCategory = "HIRING"
	VisitCategoryPeriodic        VisitCategory = "PERIODIC"
	VisitCategoryReturnToWork    VisitCategory = "RETURN_TO_WORK"
	VisitCategoryPreReturn       VisitCategory = "PRE_RETURN"
	VisitCategoryJobChange       VisitCategory = "JOB_CHANGE"
	VisitCategorySpontaneous     VisitCategory = "SPONTANEOUS"
	VisitCategoryMedicalFollowUp VisitCategory = "MEDICAL_FOLLOW_UP"
	VisitCategoryExceptional     VisitCategory = "EXCEPTIONAL_VISIT"
)

// ParseVisitCategory разбирает категорию визита
func ParseVisitCategory(s string) (VisitCategory, bool) {
	switch c := VisitCategory(s); c {
	case VisitCategoryHiring, VisitCategoryPeriodic, VisitCategoryReturnToWork, VisitCategoryPreReturn,
		VisitCategoryJobChange, VisitCategorySpontaneous, VisitCategoryMedicalFollowUp, VisitCategoryExceptional:
		return c, true
	}
	return "", false
}

type Visit struct {
	ID          uuid.UUID     `json:"id"`
	RequesterID uuid.UUID     `json:"requester_id"`
	ProviderID  uuid.UUID     `json:"provider_id"`
	SlotID      *uuid.UUID    `json:"slot_id"` // nil только до привязки слота
	Category    VisitCategory `json:"category"`
	Status      VisitStatus   `json:"status"`
	CreatedBy   uuid.UUID     `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Заполняется при выборке вместе со слотом (не колонка visits)
	Slot *Slot `json:"slot,omitempty"`
}

// VisitFilter условия выборки визитов; пустые поля не ограничивают
type VisitFilter struct {
	ProviderID  *uuid.UUID
	RequesterID *uuid.UUID
	Statuses    []VisitStatus
	// From/To ограничивают время начала слота: [From, To)
	From *time.Time
	To   *time.Time
}
