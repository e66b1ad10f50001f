package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
)

// PendingVisit карточка визита, ожидающего решения врача
func PendingVisit(v *model.Visit, requester *model.User) string {
	var sb strings.Builder
	display := VisitStatus(v.Status)

	fmt.Fprintf(&sb, "%s Визит %s\n\n", display.Emoji, shortID(v.ID.String()))
	if requester != nil {
		fmt.Fprintf(&sb, "👤 Сотрудник: %s\n", requester.FullName())
	}
	fmt.Fprintf(&sb, "📋 %s\n", Category(v.Category))
	if v.Slot != nil {
		fmt.Fprintf(&sb, "📅 %s, %s (%s)\n",
			FormatDay(v.Slot.StartTime),
			FormatTimeRange(v.Slot.StartTime, v.Slot.EndTime),
			FormatDuration(v.Slot.EndTime.Sub(v.Slot.StartTime)),
		)
	}
	fmt.Fprintf(&sb, "📊 %s", display.Text)
	return sb.String()
}

// SlotList расписание врача, сгруппированное по дням
func SlotList(slots []*model.Slot, from, to time.Time) string {
	if len(slots) == 0 {
		return fmt.Sprintf("🗓 С %s по %s слотов нет.", from.Format("02.01"), to.Format("02.01"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 %d %s с %s по %s\n", len(slots), PluralizeSlots(len(slots)), from.Format("02.01"), to.Format("02.01"))

	var day string
	for _, s := range slots {
		if d := FormatDay(s.StartTime); d != day {
			day = d
			fmt.Fprintf(&sb, "\n%s\n", day)
		}
		display := SlotStatus(s.Status)
		fmt.Fprintf(&sb, "%s %s %s\n", display.Emoji, FormatTimeRange(s.StartTime, s.EndTime), display.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Schedule подтверждённые и идущие приёмы врача по дням
func Schedule(visits []*model.Visit) string {
	if len(visits) == 0 {
		return "📭 Подтверждённых приёмов нет."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 В расписании %d %s\n", len(visits), PluralizeVisits(len(visits)))

	var day string
	for _, v := range visits {
		display := VisitStatus(v.Status)
		if v.Slot == nil {
			fmt.Fprintf(&sb, "\n%s %s %s, %s\n", display.Emoji, shortID(v.ID.String()), Category(v.Category), display.Text)
			continue
		}
		if d := FormatDay(v.Slot.StartTime); d != day {
			day = d
			fmt.Fprintf(&sb, "\n%s\n", day)
		}
		fmt.Fprintf(&sb, "%s %s %s, %s\n", display.Emoji, FormatTimeRange(v.Slot.StartTime, v.Slot.EndTime), Category(v.Category), display.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}
	return "#" + id
}
