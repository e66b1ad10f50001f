package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "AVAILABLE"
	SlotStatusLocked      SlotStatus = "TEMPORARILY_LOCKED" // ждёт подтверждения врача
	SlotStatusConfirmed   SlotStatus = "CONFIRMED"
	SlotStatusUnavailable SlotStatus = "UNAVAILABLE"
)

// ParseSlotStatus разбирает статус слота
func ParseSlotStatus(s string) (SlotStatus, bool) {
	switch st := SlotStatus(s); st {
	case SlotStatusAvailable, SlotStatusLocked, SlotStatusConfirmed, SlotStatusUnavailable:
		return st, true
	}
	return "", false
}

// Blocking сообщает, занимает ли слот в этом статусе время врача
func (s SlotStatus) Blocking() bool {
	return s == SlotStatusAvailable || s == SlotStatusLocked || s == SlotStatusConfirmed
}

type Slot struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	Status     SlotStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s *Slot) Window() Window {
	return Window{Start: s.StartTime, End: s.EndTime}
}
