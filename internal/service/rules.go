package service

import (
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
)

// Policy временные ограничения движка
type Policy struct {
	// LockGracePeriod сколько держится блокировка после начала приёма
	LockGracePeriod time.Duration
	// ClockSkewTolerance допуск для проверки "в будущем"
	ClockSkewTolerance time.Duration
	MinVisitDuration   time.Duration
	MaxVisitDuration   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		LockGracePeriod:    2 * time.Hour,
		ClockSkewTolerance: 5 * time.Minute,
		MinVisitDuration:   15 * time.Minute,
		MaxVisitDuration:   120 * time.Minute,
	}
}

// MatchedSlotDuration длина слота, выводимого из еженедельного окна
const MatchedSlotDuration = time.Hour

var slotTransitions = map[model.SlotStatus][]model.SlotStatus{
	model.SlotStatusAvailable:   {model.SlotStatusLocked, model.SlotStatusUnavailable},
	model.SlotStatusLocked:      {model.SlotStatusConfirmed, model.SlotStatusAvailable},
	model.SlotStatusConfirmed:   {model.SlotStatusAvailable},
	model.SlotStatusUnavailable: {model.SlotStatusAvailable},
}

var visitTransitions = map[model.VisitStatus][]model.VisitStatus{
	model.VisitStatusPending:    {model.VisitStatusScheduled, model.VisitStatusCancelled},
	model.VisitStatusScheduled:  {model.VisitStatusInProgress, model.VisitStatusCancelled},
	model.VisitStatusInProgress: {model.VisitStatusCompleted},
}

func contains[T comparable](items []T, v T) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

// SlotTransitionAllowed проверяет переход по таблице статусов слота
func SlotTransitionAllowed(from, to model.SlotStatus) bool {
	return contains(slotTransitions[from], to)
}

// VisitTransitionAllowed проверяет переход по таблице статусов визита
func VisitTransitionAllowed(from, to model.VisitStatus) bool {
	return contains(visitTransitions[from], to)
}

// PairedSlotTransition возвращает переход слота, который сопровождает переход визита.
// ok = false, если статус слота не меняется.
func PairedSlotTransition(from, to model.VisitStatus) (slotFrom, slotTo model.SlotStatus, ok bool) {
	switch {
	case from == model.VisitStatusPending && to == model.VisitStatusScheduled:
		return model.SlotStatusLocked, model.SlotStatusConfirmed, true
	case from == model.VisitStatusPending && to == model.VisitStatusCancelled:
		return model.SlotStatusLocked, model.SlotStatusAvailable, true
	case from == model.VisitStatusScheduled && to == model.VisitStatusCancelled:
		return model.SlotStatusConfirmed, model.SlotStatusAvailable, true
	}
	return "", "", false
}

// IsSlotExpired слот нельзя бронировать, если приём уже начался
func IsSlotExpired(slot *model.Slot, now time.Time) bool {
	return !slot.StartTime.After(now)
}

// IsLockExpired блокировка просрочена, если приём начался раньше now - grace
func IsLockExpired(slot *model.Slot, now time.Time, grace time.Duration) bool {
	return slot.Status == model.SlotStatusLocked && slot.StartTime.Before(now.Add(-grace))
}

// CanCancelVisit визит отменяется только до начала приёма
func CanCancelVisit(v *model.Visit) bool {
	return v.Status == model.VisitStatusPending || v.Status == model.VisitStatusScheduled
}

// IsRequestEditable сотрудник правит запрос, пока его не разобрали
func IsRequestEditable(r *model.SpontaneousRequest) bool {
	return r.Status == model.RequestStatusPending
}

// StartsInFuture проверяет начало окна с допуском на расхождение часов
func StartsInFuture(start, now time.Time, tolerance time.Duration) bool {
	return !start.Before(now.Add(-tolerance))
}
