package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleCoordinator Role = "COORDINATOR" // планирует визиты за сотрудников
	RoleProvider    Role = "PROVIDER"    // врач
	RoleRequester   Role = "REQUESTER"   // сотрудник
)

// ParseRole разбирает роль из справочника пользователей
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleCoordinator, RoleProvider, RoleRequester:
		return r, true
	}
	return "", false
}

// CanManageOwnSlots врач управляет своими слотами и окнами
func (r Role) CanManageOwnSlots() bool {
	return r == RoleProvider
}

// CanOverrideAnyVisit может менять чужие слоты и отменять любые визиты
func (r Role) CanOverrideAnyVisit() bool {
	return r == RoleAdmin
}

// CanSchedule может записывать сотрудников и разбирать спонтанные запросы
func (r Role) CanSchedule() bool {
	return r == RoleCoordinator || r == RoleAdmin
}

// CanSubmitRequests может подавать спонтанные запросы
func (r Role) CanSubmitRequests() bool {
	return r == RoleRequester
}

// User запись внешнего справочника пользователей
type User struct {
	ID         uuid.UUID `json:"id"`
	TelegramID *int64    `json:"telegram_id,omitempty"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       Role      `json:"role"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
