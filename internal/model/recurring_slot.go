package model

import (
	"time"

	"github.com/google/uuid"
)

// RecurringSlot еженедельное окно доступности врача, не привязанное к дате
type RecurringSlot struct {
	ID         uuid.UUID    `json:"id"`
	ProviderID uuid.UUID    `json:"provider_id"`
	Weekday    time.Weekday `json:"weekday"` // 0 = Sunday, 6 = Saturday
	StartTime  TimeOfDay    `json:"start_time"`
	EndTime    TimeOfDay    `json:"end_time"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (r *RecurringSlot) Range() TimeOfDayRange {
	return TimeOfDayRange{Start: r.StartTime, End: r.EndTime}
}
