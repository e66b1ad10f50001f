package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending           RequestStatus = "PENDING"
	RequestStatusScheduled         RequestStatus = "SCHEDULED"
	RequestStatusNeedsRescheduling RequestStatus = "NEEDS_RESCHEDULING"
	RequestStatusCancelled         RequestStatus = "CANCELLED"
)

// SpontaneousRequest запрос сотрудника на визит без выбранного слота
type SpontaneousRequest struct {
	ID          uuid.UUID     `json:"id"`
	RequesterID uuid.UUID     `json:"requester_id"`
	Reason      string        `json:"reason"`
	Notes       *string       `json:"notes,omitempty"`
	PreferredAt *time.Time    `json:"preferred_at,omitempty"`
	Status      RequestStatus `json:"status"`
	// VisitID последний визит, созданный подтверждением запроса
	VisitID   *uuid.UUID `json:"visit_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RequestStats количество запросов сотрудника по статусам
type RequestStats struct {
	Pending           int `json:"pending"`
	Scheduled         int `json:"scheduled"`
	NeedsRescheduling int `json:"needs_rescheduling"`
	Cancelled         int `json:"cancelled"`
	Total             int `json:"total"`
}

// Add учитывает count запросов в статусе status
func (s *RequestStats) Add(status RequestStatus, count int) {
	switch status {
	case RequestStatusPending:
		s.Pending += count
	case RequestStatusScheduled:
		s.Scheduled += count
	case RequestStatusNeedsRescheduling:
		s.NeedsRescheduling += count
	case RequestStatusCancelled:
		s.Cancelled += count
	}
	s.Total += count
}
