package formatting

import "github.com/Freeeeeet/mediwork_scheduler/internal/model"

// StatusDisplay emoji и подпись статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

var slotStatuses = map[model.SlotStatus]StatusDisplay{
	model.SlotStatusAvailable:   {"🟢", "Свободен"},
	model.SlotStatusLocked:      {"🟡", "Ожидает подтверждения"},
	model.SlotStatusConfirmed:   {"🔴", "Занят"},
	model.SlotStatusUnavailable: {"⚫️", "Закрыт"},
}

var visitStatuses = map[model.VisitStatus]StatusDisplay{
	model.VisitStatusPending:    {"⏳", "Ожидает подтверждения"},
	model.VisitStatusScheduled:  {"✅", "Подтверждён"},
	model.VisitStatusInProgress: {"🩺", "Идёт приём"},
	model.VisitStatusCompleted:  {"✔️", "Завершён"},
	model.VisitStatusCancelled:  {"❌", "Отменён"},
}

var unknownStatus = StatusDisplay{"❓", "Неизвестно"}

func SlotStatus(status model.SlotStatus) StatusDisplay {
	if d, ok := slotStatuses[status]; ok {
		return d
	}
	return unknownStatus
}

func VisitStatus(status model.VisitStatus) StatusDisplay {
	if d, ok := visitStatuses[status]; ok {
		return d
	}
	return unknownStatus
}

var categories = map[model.VisitCategory]string{
	model.VisitCategoryHiring:          "Приём на работу",
	model.VisitCategoryPeriodic:        "Периодический осмотр",
	model.VisitCategoryReturnToWork:    "Выход на работу",
	model.VisitCategoryPreReturn:       "Перед выходом на работу",
	model.VisitCategoryJobChange:       "Смена должности",
	model.VisitCategorySpontaneous:     "По запросу сотрудника",
	model.VisitCategoryMedicalFollowUp: "Наблюдение",
	model.VisitCategoryExceptional:     "Внеплановый",
}

// Category подпись категории визита
func Category(c model.VisitCategory) string {
	if s, ok := categories[c]; ok {
		return s
	}
	return string(c)
}
