package rest

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/Freeeeeet/mediwork_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (b spontaneousRequestBody) input() service.RequestInput {
	return service.RequestInput{Reason: b.Reason, Notes: b.Notes, PreferredAt: b.PreferredAt}
}

// SubmitRequest POST /spontaneous-requests
func (h *Handler) SubmitRequest(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var body spontaneousRequestBody
	if err := bind(c, &body); err != nil {
		return err
	}

	req, err := h.requests.SubmitRequest(c.Request().Context(), actor, body.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, req)
}

// UpdateRequest PUT /spontaneous-requests/:id
func (h *Handler) UpdateRequest(c echo.Context) error {
	actor, id, err := actorAndPath(c)
	if err != nil {
		return err
	}
	var body spontaneousRequestBody
	if err := bind(c, &body); err != nil {
		return err
	}

	req, err := h.requests.UpdateRequest(c.Request().Context(), actor, id, body.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// ListMyRequests GET /spontaneous-requests/mine
func (h *Handler) ListMyRequests(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	reqs, err := h.requests.ListMine(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reqs)
}

// MyRequestStats GET /spontaneous-requests/mine/stats
func (h *Handler) MyRequestStats(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	stats, err := h.requests.RequestStats(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// ListOpenRequests GET /spontaneous-requests
func (h *Handler) ListOpenRequests(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	reqs, err := h.requests.ListOpen(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reqs)
}

type requestAction func(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error)

func (h *Handler) requestAction(c echo.Context, action requestAction) error {
	actor, id, err := actorAndPath(c)
	if err != nil {
		return err
	}
	req, err := action(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// CancelRequest POST /spontaneous-requests/:id/cancel, отзыв сотрудником
func (h *Handler) CancelRequest(c echo.Context) error {
	return h.requestAction(c, h.requests.CancelByRequester)
}

// CloseRequest POST /spontaneous-requests/:id/close, отмена координатором
func (h *Handler) CloseRequest(c echo.Context) error {
	return h.requestAction(c, h.requests.CancelByCoordinator)
}

// RejectRequest POST /spontaneous-requests/:id/reject
func (h *Handler) RejectRequest(c echo.Context) error {
	return h.requestAction(c, h.requests.RejectRequest)
}

// MarkNeedsRescheduling POST /spontaneous-requests/:id/reschedule
func (h *Handler) MarkNeedsRescheduling(c echo.Context) error {
	return h.requestAction(c, h.requests.MarkNeedsRescheduling)
}

// ConfirmRequest POST /spontaneous-requests/:id/confirm
func (h *Handler) ConfirmRequest(c echo.Context) error {
	actor, id, err := actorAndPath(c)
	if err != nil {
		return err
	}
	var body confirmRequestBody
	if err := bind(c, &body); err != nil {
		return err
	}

	in := service.ConfirmRequestInput{
		RequestID:  id,
		ProviderID: body.ProviderID,
		Override:   body.Override,
	}
	if body.Category != nil {
		category := model.VisitCategory(*body.Category)
		in.Category = &category
	}

	visit, err := h.requests.ConfirmRequest(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, visit)
}
