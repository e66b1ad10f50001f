package rest

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/labstack/echo/v4"
)

// ListAvailableSlots GET /providers/:id/slots/available
func (h *Handler) ListAvailableSlots(c echo.Context) error {
	providerID, err := pathID(c)
	if err != nil {
		return err
	}
	slots, err := h.slots.ListAvailableSlots(c.Request().Context(), providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

// ListSlotsByStatus GET /providers/:id/slots/status/:status
func (h *Handler) ListSlotsByStatus(c echo.Context) error {
	providerID, err := pathID(c)
	if err != nil {
		return err
	}
	slots, err := h.slots.ListSlotsByStatus(c.Request().Context(), providerID, model.SlotStatus(c.Param("status")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

// ListProviderSlots GET /providers/:id/slots?from=&to= (RFC3339, по умолчанию неделя вперёд)
func (h *Handler) ListProviderSlots(c echo.Context) error {
	providerID, err := pathID(c)
	if err != nil {
		return err
	}

	from := time.Now()
	to := from.AddDate(0, 0, 7)
	if v := c.QueryParam("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339")
		}
	}

	slots, err := h.slots.ListProviderSlots(c.Request().Context(), providerID, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

// CreateSlot POST /providers/:id/slots
func (h *Handler) CreateSlot(c echo.Context) error {
	actor, providerID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	var req windowRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	slot, err := h.slots.CreateSlot(c.Request().Context(), actor, providerID, req.window())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, slot)
}

// SetSlotStatus PATCH /slots/:id/status
func (h *Handler) SetSlotStatus(c echo.Context) error {
	actor, slotID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	var req slotStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	slot, err := h.slots.SetSlotAvailability(c.Request().Context(), actor, slotID, model.SlotStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slot)
}

// DeleteSlot DELETE /slots/:id
func (h *Handler) DeleteSlot(c echo.Context) error {
	actor, slotID, err := actorAndPath(c)
	if err != nil {
		return err
	}
	if err := h.slots.DeleteSlot(c.Request().Context(), actor, slotID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ReclaimExpiredLocks POST /slots/reclaim запускает проход очистки вне расписания
func (h *Handler) ReclaimExpiredLocks(c echo.Context) error {
	if _, err := actorID(c); err != nil {
		return err
	}
	n, err := h.slots.ReclaimExpiredLocks(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reclaimResponse{Reclaimed: n})
}
