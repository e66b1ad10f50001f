package rest

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/service"
	"github.com/labstack/echo/v4"
)

// ListRecurringSlots GET /providers/:id/recurring-slots
func (h *Handler) ListRecurringSlots(c echo.Context) error {
	providerID, err := pathID(c)
	if err != nil {
		return err
	}
	slots, err := h.recurring.ListRecurringSlots(c.Request().Context(), providerID)
	if err != nil {
		return err
	}

	out := make([]recurringSlotResponse, 0, len(slots))
	for _, rs := range slots {
		out = append(out, toRecurringResponse(rs))
	}
	return c.JSON(http.StatusOK, out)
}

func bindRecurring(c echo.Context) (service.RecurringSlotInput, error) {
	var req recurringSlotRequest
	if err := bind(c, &req); err != nil {
		return service.RecurringSlotInput{}, err
	}
	r, err := req.input()
	if err != nil {
		return service.RecurringSlotInput{}, err
	}
	return service.RecurringSlotInput{Weekday: time.Weekday(req.Weekday), Range: r}, nil
}

// CreateRecurringSlot POST /providers/:id/recurring-slots
func (h *Handler) CreateRecurringSlot(c echo.Context) error {
	actor, providerID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	in, err := bindRecurring(c)
	if err != nil {
		return err
	}

	rs, err := h.recurring.CreateRecurringSlot(c.Request().Context(), actor, providerID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toRecurringResponse(rs))
}

// UpdateRecurringSlot PUT /recurring-slots/:id
func (h *Handler) UpdateRecurringSlot(c echo.Context) error {
	actor, id, err := actorAndPath(c)
	if err != nil {
		return err
	}
	in, err := bindRecurring(c)
	if err != nil {
		return err
	}

	rs, err := h.recurring.UpdateRecurringSlot(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRecurringResponse(rs))
}

// DeleteRecurringSlot DELETE /recurring-slots/:id
func (h *Handler) DeleteRecurringSlot(c echo.Context) error {
	actor, id, err := actorAndPath(c)
	if err != nil {
		return err
	}
	if err := h.recurring.DeleteRecurringSlot(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
