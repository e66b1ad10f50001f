package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProviderDirectory interface {
	IdentifyProvider(ctx context.Context, telegramID int64) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type VisitActions interface {
	ListPendingForProvider(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error)
	ConfirmVisit(ctx context.Context, visitID, providerID uuid.UUID) (*model.Visit, error)
	RejectVisit(ctx context.Context, visitID, providerID uuid.UUID) (*model.Visit, error)
	ListProviderSchedule(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error)
}

type SlotLister interface {
	ListProviderSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Slot, error)
}

// Handlers содержит все зависимости для обработки команд врача
type Handlers struct {
	users  ProviderDirectory
	visits VisitActions
	slots  SlotLister
	clock  func() time.Time
	logger *zap.Logger
}

func NewHandlers(users ProviderDirectory, visits VisitActions, slots SlotLister, logger *zap.Logger) *Handlers {
	return &Handlers{
		users:  users,
		visits: visits,
		slots:  slots,
		clock:  time.Now,
		logger: logger,
	}
}
