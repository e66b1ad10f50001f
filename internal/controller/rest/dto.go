package rest

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// bind разбирает тело запроса и проверяет теги validate
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type windowRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

func (r windowRequest) window() model.Window {
	return model.Window{Start: r.Start, End: r.End}
}

type slotStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=AVAILABLE UNAVAILABLE"`
}

type bookExistingRequest struct {
	RequesterID uuid.UUID `json:"requester_id" validate:"required"`
	ProviderID  uuid.UUID `json:"provider_id" validate:"required"`
	SlotID      uuid.UUID `json:"slot_id" validate:"required"`
	Category    string    `json:"category" validate:"required"`
}

type bookFreshRequest struct {
	RequesterID uuid.UUID `json:"requester_id" validate:"required"`
	ProviderID  uuid.UUID `json:"provider_id" validate:"required"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	Category    string    `json:"category" validate:"required"`
}

type visitStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type recurringSlotRequest struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

func (r recurringSlotRequest) input() (model.TimeOfDayRange, error) {
	start, err := model.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return model.TimeOfDayRange{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := model.ParseTimeOfDay(r.EndTime)
	if err != nil {
		return model.TimeOfDayRange{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return model.TimeOfDayRange{Start: start, End: end}, nil
}

type spontaneousRequestBody struct {
	Reason      string     `json:"reason" validate:"required,max=500"`
	Notes       *string    `json:"notes" validate:"omitempty,max=2000"`
	PreferredAt *time.Time `json:"preferred_at"`
}

type confirmRequestBody struct {
	ProviderID uuid.UUID  `json:"provider_id" validate:"required"`
	Override   *time.Time `json:"override"`
	Category   *string    `json:"category"`
}

type recurringSlotResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Weekday    int       `json:"weekday"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
}

func toRecurringResponse(rs *model.RecurringSlot) recurringSlotResponse {
	return recurringSlotResponse{
		ID:         rs.ID,
		ProviderID: rs.ProviderID,
		Weekday:    int(rs.Weekday),
		StartTime:  rs.StartTime.String(),
		EndTime:    rs.EndTime.String(),
	}
}

type freshBookingResponse struct {
	Visit *model.Visit `json:"visit"`
	Slot  *model.Slot  `json:"slot"`
}

type reclaimResponse struct {
	Reclaimed int `json:"reclaimed"`
}
