package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window полуоткрытый интервал [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow создаёт окно по началу и длительности
func NewWindow(start time.Time, d time.Duration) Window {
	return Window{Start: start, End: start.Add(d)}
}

// Valid проверяет что начало строго раньше конца
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps проверяет пересечение двух окон.
// Окна, стыкующиеся концами, не пересекаются.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func (w Window) String() string {
	if w.Start.YearDay() == w.End.YearDay() && w.Start.Year() == w.End.Year() {
		return fmt.Sprintf("%s-%s", w.Start.Format("2006-01-02 15:04"), w.End.Format("15:04"))
	}
	return fmt.Sprintf("%s-%s", w.Start.Format("2006-01-02 15:04"), w.End.Format("2006-01-02 15:04"))
}

// TimeOfDay смещение от полуночи
type TimeOfDay time.Duration

// NewTimeOfDay создаёт время суток из часов и минут
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// TimeOfDayOf возвращает время суток момента t в его собственной зоне
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// TimeOfDayFromMinutes восстанавливает время суток из минут от полуночи (формат хранения)
func TimeOfDayFromMinutes(minutes int) TimeOfDay {
	return TimeOfDay(time.Duration(minutes) * time.Minute)
}

// ParseTimeOfDay разбирает "HH:MM"; "24:00" допустим как конец дня
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("time of day %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("time of day %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Minutes() int {
	return int(time.Duration(t) / time.Minute)
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d)
}

func (t TimeOfDay) String() string {
	m := t.Minutes()
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// TimeOfDayRange диапазон времени суток для еженедельных окон
type TimeOfDayRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (r TimeOfDayRange) Valid() bool {
	return r.Start >= 0 && r.Start < r.End && r.End <= TimeOfDay(24*time.Hour)
}

// Contains включает обе границы
func (r TimeOfDayRange) Contains(t TimeOfDay) bool {
	return t >= r.Start && t <= r.End
}

// Covers проверяет что [start, end] целиком внутри диапазона
func (r TimeOfDayRange) Covers(start, end TimeOfDay) bool {
	return start >= r.Start && end <= r.End
}

// Overlaps строгая проверка пересечения
func (r TimeOfDayRange) Overlaps(o TimeOfDayRange) bool {
	return r.Start < o.End && o.Start < r.End
}

func (r TimeOfDayRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}
