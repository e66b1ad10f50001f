package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/Freeeeeet/mediwork_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// BookExistingSlot POST /visits
func (h *Handler) BookExistingSlot(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req bookExistingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	visit, err := h.visits.BookExistingSlot(c.Request().Context(), actor, service.BookExistingSlotInput{
		RequesterID: req.RequesterID,
		ProviderID:  req.ProviderID,
		SlotID:      req.SlotID,
		Category:    model.VisitCategory(req.Category),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, visit)
}

// BookWithFreshSlot POST /visits/fresh-slot
func (h *Handler) BookWithFreshSlot(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req bookFreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	visit, slot, err := h.visits.BookWithFreshSlot(c.Request().Context(), actor, service.BookFreshSlotInput{
		RequesterID: req.RequesterID,
		ProviderID:  req.ProviderID,
		Window:      model.Window{Start: req.Start, End: req.End},
		Category:    model.VisitCategory(req.Category),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, freshBookingResponse{Visit: visit, Slot: slot})
}

// GetVisit GET /visits/:id
func (h *Handler) GetVisit(c echo.Context) error {
	actor, visitID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	visit, err := h.visits.GetVisit(c.Request().Context(), visitID, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visit)
}

// ListMyVisits GET /visits/mine
func (h *Handler) ListMyVisits(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	visits, err := h.visits.ListForRequester(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visits)
}

// ListProviderSchedule GET /providers/:id/visits/schedule
func (h *Handler) ListProviderSchedule(c echo.Context) error {
	providerID, err := pathID(c)
	if err != nil {
		return err
	}
	visits, err := h.visits.ListProviderSchedule(c.Request().Context(), providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visits)
}

// SearchVisits GET /visits?status=A,B&from=&to=&provider_id=&requester_id=
func (h *Handler) SearchVisits(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	f, err := visitFilter(c)
	if err != nil {
		return err
	}
	visits, err := h.visits.SearchVisits(c.Request().Context(), actor, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visits)
}

func visitFilter(c echo.Context) (model.VisitFilter, error) {
	var f model.VisitFilter
	if v := c.QueryParam("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			f.Statuses = append(f.Statuses, model.VisitStatus(strings.TrimSpace(st)))
		}
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, name+" must be RFC3339")
		}
		*dst = &t
	}
	for name, dst := range map[string]**uuid.UUID{"provider_id": &f.ProviderID, "requester_id": &f.RequesterID} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, name+" must be a UUID")
		}
		*dst = &id
	}
	return f, nil
}

// ListPendingVisits GET /providers/:id/visits/pending
func (h *Handler) ListPendingVisits(c echo.Context) error {
	providerID, err := pathID(c)
	if err != nil {
		return err
	}
	visits, err := h.visits.ListPendingForProvider(c.Request().Context(), providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visits)
}

// ConfirmVisit POST /visits/:id/confirm
func (h *Handler) ConfirmVisit(c echo.Context) error {
	actor, visitID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	visit, err := h.visits.ConfirmVisit(c.Request().Context(), visitID, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visit)
}

// RejectVisit POST /visits/:id/reject
func (h *Handler) RejectVisit(c echo.Context) error {
	actor, visitID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	visit, err := h.visits.RejectVisit(c.Request().Context(), visitID, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visit)
}

// CancelVisit POST /visits/:id/cancel
func (h *Handler) CancelVisit(c echo.Context) error {
	actor, visitID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	visit, err := h.visits.CancelVisit(c.Request().Context(), visitID, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visit)
}

// AdvanceVisitStatus PATCH /visits/:id/status
func (h *Handler) AdvanceVisitStatus(c echo.Context) error {
	actor, visitID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	var req visitStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	visit, err := h.visits.AdvanceVisitStatus(c.Request().Context(), visitID, actor, model.VisitStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visit)
}
