package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
)

// Clock источник текущего времени
type Clock func() time.Time

// Transactor выполняет единицу работы атомарно.
// Хранилища, вызванные внутри fn с переданным ctx, работают в той же транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockParty сериализует писателей одного участника до конца транзакции.
	// Порядок: сначала врач, затем сотрудник.
	LockParty(ctx context.Context, partyID uuid.UUID) error
}

// SlotStore хранилище слотов. Get* возвращают nil, nil если слота нет.
type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	ListAvailable(ctx context.Context, providerID uuid.UUID, after time.Time) ([]*model.Slot, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Slot, error)
	ListByStatus(ctx context.Context, providerID uuid.UUID, status model.SlotStatus) ([]*model.Slot, error)
	ListOverlapping(ctx context.Context, providerID uuid.UUID, w model.Window) ([]*model.Slot, error)
	ListExpiredLocks(ctx context.Context, startedBefore time.Time) ([]*model.Slot, error)
	// UpdateStatus меняет статус только если текущий равен from
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.SlotStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// VisitStore хранилище визитов. Визиты возвращаются вместе со слотом.
type VisitStore interface {
	Create(ctx context.Context, visit *model.Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Visit, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Visit, error)
	GetActiveBySlot(ctx context.Context, slotID uuid.UUID) (*model.Visit, error)
	CountBySlot(ctx context.Context, slotID uuid.UUID) (int, error)
	ListOverlappingForProvider(ctx context.Context, providerID uuid.UUID, w model.Window) ([]*model.Visit, error)
	ListOverlappingForRequester(ctx context.Context, requesterID uuid.UUID, w model.Window) ([]*model.Visit, error)
	ListPendingByProvider(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Visit, error)
	Search(ctx context.Context, f model.VisitFilter) ([]*model.Visit, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.VisitStatus) (bool, error)
}

// RecurringSlotStore хранилище еженедельных окон
type RecurringSlotStore interface {
	Create(ctx context.Context, rs *model.RecurringSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSlot, error)
	Update(ctx context.Context, rs *model.RecurringSlot) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*model.RecurringSlot, error)
	// ListByProviderAndWeekday упорядочено по началу окна
	ListByProviderAndWeekday(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]*model.RecurringSlot, error)
}

// SpontaneousRequestStore хранилище спонтанных запросов
type SpontaneousRequestStore interface {
	Create(ctx context.Context, req *model.SpontaneousRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.SpontaneousRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.SpontaneousRequest, error)
	Update(ctx context.Context, req *model.SpontaneousRequest) error
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.SpontaneousRequest, error)
	ListByStatus(ctx context.Context, statuses ...model.RequestStatus) ([]*model.SpontaneousRequest, error)
	CountByRequester(ctx context.Context, requesterID uuid.UUID) (*model.RequestStats, error)
}

// UserDirectory справочник пользователей внешнего сервиса идентификации
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

// AuditSink принимает записи журнала без ожидания доставки
type AuditSink interface {
	Emit(entry model.AuditEntry)
}
