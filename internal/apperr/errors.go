// Package apperr описывает типизированные ошибки движка записи.
// Каждая ошибка несёт вид, стабильный код и сообщение для клиента.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindInvalidState Kind = "INVALID_STATE"
	KindExpired      Kind = "EXPIRED"
)

// Коды ошибок
const (
	CodeInvalidWindow         = "INVALID_WINDOW"
	CodeWindowInPast          = "WINDOW_IN_PAST"
	CodeDurationOutOfBounds   = "DURATION_OUT_OF_BOUNDS"
	CodeUnknownEnum           = "UNKNOWN_ENUM"
	CodeDateRequired          = "DATE_REQUIRED"
	CodeNoAvailabilityWindow  = "NO_AVAILABILITY_WINDOW"
	CodeSlotOutsideRecurring  = "SLOT_OUTSIDE_RECURRING_WINDOW"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeSlotNotFound          = "SLOT_NOT_FOUND"
	CodeVisitNotFound         = "VISIT_NOT_FOUND"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeRecurringNotFound     = "RECURRING_SLOT_NOT_FOUND"
	CodeRequestNotFound       = "SPONTANEOUS_REQUEST_NOT_FOUND"
	CodeProviderSlotConflict  = "PROVIDER_SLOT_CONFLICT"
	CodeProviderVisitConflict = "PROVIDER_VISIT_CONFLICT"
	CodeRequesterConflict     = "REQUESTER_VISIT_CONFLICT"
	CodeRecurringOverlap      = "RECURRING_SLOT_OVERLAP"
	CodeSlotAlreadyBooked     = "SLOT_ALREADY_BOOKED"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeIllegalState          = "ILLEGAL_STATE"
	CodeForbidden             = "FORBIDDEN"
	CodeRoleMismatch          = "ROLE_MISMATCH"
	CodeUserArchived          = "USER_ARCHIVED"
	CodeSlotExpired           = "SLOT_EXPIRED"
	CodeLockExpired           = "LOCK_EXPIRED"
)

// ConflictingWindow окно, с которым пересёкся кандидат
type ConflictingWindow struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

func (w ConflictingWindow) String() string {
	return fmt.Sprintf("%s-%s (%s)", w.Start.Format("2006-01-02 15:04"), w.End.Format("15:04"), w.Status)
}

type Error struct {
	Kind      Kind                `json:"kind"`
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Conflicts []ConflictingWindow `json:"conflicts,omitempty"`
	Err       error               `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает по виду и коду, чтобы работали errors.Is с шаблонами
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, format, args...)
}

func InvalidState(code, format string, args ...any) *Error {
	return newError(KindInvalidState, code, format, args...)
}

func Expired(code, format string, args ...any) *Error {
	return newError(KindExpired, code, format, args...)
}

// Conflict перечисляет пересекающиеся окна прямо в сообщении
func Conflict(code, subject string, conflicts []ConflictingWindow) *Error {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, c.String())
	}
	msg := subject
	if len(parts) > 0 {
		msg = fmt.Sprintf("%s: %s", subject, strings.Join(parts, ", "))
	}
	return &Error{Kind: KindConflict, Code: code, Message: msg, Conflicts: conflicts}
}

// Wrap прикрепляет причину к доменной ошибке
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// As достаёт *Error из цепочки
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf возвращает вид ошибки или пустую строку для нетипизированных
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// Шаблоны для errors.Is
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrExpired      = &Error{Kind: KindExpired}
)
