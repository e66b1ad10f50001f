package service

import (
	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
)

// DetectConflicts возвращает элементы, чьё окно пересекает candidate и статус которых блокирующий.
// Функция чистая и годится для слотов и визитов.
func DetectConflicts[T any](candidate model.Window, items []T, windowOf func(T) model.Window, blocking func(T) bool) []T {
	var conflicts []T
	for _, it := range items {
		if blocking(it) && candidate.Overlaps(windowOf(it)) {
			conflicts = append(conflicts, it)
		}
	}
	return conflicts
}

// SlotConflicts занятые слоты врача, пересекающие окно; exclude пропускается
func SlotConflicts(candidate model.Window, slots []*model.Slot, exclude uuid.UUID) []*model.Slot {
	return DetectConflicts(candidate, slots,
		func(s *model.Slot) model.Window { return s.Window() },
		func(s *model.Slot) bool { return s.ID != exclude && s.Status.Blocking() },
	)
}

// VisitConflicts активные визиты со слотом, пересекающие окно
func VisitConflicts(candidate model.Window, visits []*model.Visit) []*model.Visit {
	return DetectConflicts(candidate, visits,
		func(v *model.Visit) model.Window { return v.Slot.Window() },
		func(v *model.Visit) bool { return v.Slot != nil && v.Status.Blocking() },
	)
}

func slotWindows(slots []*model.Slot) []apperr.ConflictingWindow {
	out := make([]apperr.ConflictingWindow, 0, len(slots))
	for _, s := range slots {
		out = append(out, apperr.ConflictingWindow{
			ID:     s.ID.String(),
			Start:  s.StartTime,
			End:    s.EndTime,
			Status: string(s.Status),
		})
	}
	return out
}

func visitWindows(visits []*model.Visit) []apperr.ConflictingWindow {
	out := make([]apperr.ConflictingWindow, 0, len(visits))
	for _, v := range visits {
		out = append(out, apperr.ConflictingWindow{
			ID:     v.ID.String(),
			Start:  v.Slot.StartTime,
			End:    v.Slot.EndTime,
			Status: string(v.Status),
		})
	}
	return out
}

func providerSlotConflict(conflicts []*model.Slot) *apperr.Error {
	return apperr.Conflict(apperr.CodeProviderSlotConflict, "provider already has slots in this window", slotWindows(conflicts))
}
