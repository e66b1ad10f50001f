package model

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionScheduleVisit      ActionType = "SCHEDULE_VISIT"
	ActionValidateVisit      ActionType = "VALIDATE_VISIT"
	ActionRefuseVisit        ActionType = "REFUSE_VISIT"
	ActionCancelVisit        ActionType = "CANCEL_VISIT"
	ActionVisitStatusUpdated ActionType = "VISIT_STATUS_UPDATED"

	ActionSlotCreated       ActionType = "SLOT_CREATED"
	ActionSlotStatusUpdated ActionType = "SLOT_STATUS_UPDATED"
	ActionSlotDeleted       ActionType = "SLOT_DELETED"
	ActionLockReclaimed     ActionType = "LOCK_RECLAIMED"

	ActionRecurringSlotCreated ActionType = "RECURRING_SLOT_CREATED"
	ActionRecurringSlotUpdated ActionType = "RECURRING_SLOT_UPDATED"
	ActionRecurringSlotDeleted ActionType = "RECURRING_SLOT_DELETED"

	ActionSubmitSpontaneousRequest  ActionType = "SUBMIT_SPONTANEOUS_REQUEST"
	ActionUpdateSpontaneousRequest  ActionType = "UPDATE_SPONTANEOUS_REQUEST"
	ActionCancelSpontaneousRequest  ActionType = "CANCEL_SPONTANEOUS_REQUEST"
	ActionConfirmSpontaneousRequest ActionType = "CONFIRM_SPONTANEOUS_REQUEST"
)

// AuditEntry запись для внешнего журнала действий
type AuditEntry struct {
	ActorID     uuid.UUID  `json:"actor_id"`
	Action      ActionType `json:"action_type"`
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
}
