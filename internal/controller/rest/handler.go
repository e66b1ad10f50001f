// Package rest публикует операции движка записи по HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/Freeeeeet/mediwork_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ActorHeader ID пользователя, проставленный шлюзом авторизации
const ActorHeader = "X-User-ID"

type SlotService interface {
	ListAvailableSlots(ctx context.Context, providerID uuid.UUID) ([]*model.Slot, error)
	ListProviderSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Slot, error)
	ListSlotsByStatus(ctx context.Context, providerID uuid.UUID, status model.SlotStatus) ([]*model.Slot, error)
	CreateSlot(ctx context.Context, actorID, providerID uuid.UUID, w model.Window) (*model.Slot, error)
	SetSlotAvailability(ctx context.Context, actorID, slotID uuid.UUID, target model.SlotStatus) (*model.Slot, error)
	DeleteSlot(ctx context.Context, actorID, slotID uuid.UUID) error
	ReclaimExpiredLocks(ctx context.Context) (int, error)
}

type VisitService interface {
	BookExistingSlot(ctx context.Context, actorID uuid.UUID, in service.BookExistingSlotInput) (*model.Visit, error)
	BookWithFreshSlot(ctx context.Context, actorID uuid.UUID, in service.BookFreshSlotInput) (*model.Visit, *model.Slot, error)
	ConfirmVisit(ctx context.Context, visitID, providerID uuid.UUID) (*model.Visit, error)
	RejectVisit(ctx context.Context, visitID, providerID uuid.UUID) (*model.Visit, error)
	CancelVisit(ctx context.Context, visitID, actorID uuid.UUID) (*model.Visit, error)
	AdvanceVisitStatus(ctx context.Context, visitID, providerID uuid.UUID, target model.VisitStatus) (*model.Visit, error)
	GetVisit(ctx context.Context, visitID, actorID uuid.UUID) (*model.Visit, error)
	ListPendingForProvider(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error)
	ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Visit, error)
	ListProviderSchedule(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error)
	SearchVisits(ctx context.Context, actorID uuid.UUID, f model.VisitFilter) ([]*model.Visit, error)
}

type RecurringService interface {
	ListRecurringSlots(ctx context.Context, providerID uuid.UUID) ([]*model.RecurringSlot, error)
	CreateRecurringSlot(ctx context.Context, actorID, providerID uuid.UUID, in service.RecurringSlotInput) (*model.RecurringSlot, error)
	UpdateRecurringSlot(ctx context.Context, actorID, id uuid.UUID, in service.RecurringSlotInput) (*model.RecurringSlot, error)
	DeleteRecurringSlot(ctx context.Context, actorID, id uuid.UUID) error
}

type RequestService interface {
	SubmitRequest(ctx context.Context, requesterID uuid.UUID, in service.RequestInput) (*model.SpontaneousRequest, error)
	UpdateRequest(ctx context.Context, requesterID, requestID uuid.UUID, in service.RequestInput) (*model.SpontaneousRequest, error)
	CancelByRequester(ctx context.Context, requesterID, requestID uuid.UUID) (*model.SpontaneousRequest, error)
	CancelByCoordinator(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error)
	RejectRequest(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error)
	MarkNeedsRescheduling(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error)
	ConfirmRequest(ctx context.Context, actorID uuid.UUID, in service.ConfirmRequestInput) (*model.Visit, error)
	ListMine(ctx context.Context, requesterID uuid.UUID) ([]*model.SpontaneousRequest, error)
	RequestStats(ctx context.Context, requesterID uuid.UUID) (*model.RequestStats, error)
	ListOpen(ctx context.Context, actorID uuid.UUID) ([]*model.SpontaneousRequest, error)
}

type Handler struct {
	slots     SlotService
	visits    VisitService
	recurring RecurringService
	requests  RequestService
	logger    *zap.Logger
}

func NewHandler(slots SlotService, visits VisitService, recurring RecurringService, requests RequestService, logger *zap.Logger) *Handler {
	return &Handler{
		slots:     slots,
		visits:    visits,
		recurring: recurring,
		requests:  requests,
		logger:    logger,
	}
}

// RegisterRoutes регистрирует маршруты API в группе /api/v1
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/providers/:id/slots", h.ListProviderSlots)
	g.GET("/providers/:id/slots/available", h.ListAvailableSlots)
	g.GET("/providers/:id/slots/status/:status", h.ListSlotsByStatus)
	g.POST("/providers/:id/slots", h.CreateSlot)
	g.PATCH("/slots/:id/status", h.SetSlotStatus)
	g.DELETE("/slots/:id", h.DeleteSlot)
	g.POST("/slots/reclaim", h.ReclaimExpiredLocks)

	g.POST("/visits", h.BookExistingSlot)
	g.POST("/visits/fresh-slot", h.BookWithFreshSlot)
	g.GET("/visits", h.SearchVisits)
	g.GET("/visits/mine", h.ListMyVisits)
	g.GET("/visits/:id", h.GetVisit)
	g.POST("/visits/:id/confirm", h.ConfirmVisit)
	g.POST("/visits/:id/reject", h.RejectVisit)
	g.POST("/visits/:id/cancel", h.CancelVisit)
	g.PATCH("/visits/:id/status", h.AdvanceVisitStatus)
	g.GET("/providers/:id/visits/pending", h.ListPendingVisits)
	g.GET("/providers/:id/visits/schedule", h.ListProviderSchedule)

	g.GET("/providers/:id/recurring-slots", h.ListRecurringSlots)
	g.POST("/providers/:id/recurring-slots", h.CreateRecurringSlot)
	g.PUT("/recurring-slots/:id", h.UpdateRecurringSlot)
	g.DELETE("/recurring-slots/:id", h.DeleteRecurringSlot)

	g.POST("/spontaneous-requests", h.SubmitRequest)
	g.GET("/spontaneous-requests", h.ListOpenRequests)
	g.GET("/spontaneous-requests/mine", h.ListMyRequests)
	g.GET("/spontaneous-requests/mine/stats", h.MyRequestStats)
	g.PUT("/spontaneous-requests/:id", h.UpdateRequest)
	g.POST("/spontaneous-requests/:id/cancel", h.CancelRequest)
	g.POST("/spontaneous-requests/:id/close", h.CloseRequest)
	g.POST("/spontaneous-requests/:id/reject", h.RejectRequest)
	g.POST("/spontaneous-requests/:id/reschedule", h.MarkNeedsRescheduling)
	g.POST("/spontaneous-requests/:id/confirm", h.ConfirmRequest)
}

func actorID(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(ActorHeader)
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, ActorHeader+" header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, ActorHeader+" must be a UUID")
	}
	return id, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id "+c.Param("id"))
	}
	return id, nil
}

// actorAndPath общий разбор для маршрутов вида /resource/:id
func actorAndPath(c echo.Context) (actor, id uuid.UUID, err error) {
	if actor, err = actorID(c); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if id, err = pathID(c); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actor, id, nil
}
