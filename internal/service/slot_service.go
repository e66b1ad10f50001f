package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlotService владеет переходами статусов слота и возвратом просроченных блокировок
type SlotService struct {
	tx     Transactor
	slots  SlotStore
	visits VisitStore
	users  UserDirectory
	audit  AuditSink
	clock  Clock
	policy Policy
	logger *zap.Logger
}

func NewSlotService(
	tx Transactor,
	slots SlotStore,
	visits VisitStore,
	users UserDirectory,
	audit AuditSink,
	clock Clock,
	policy Policy,
	logger *zap.Logger,
) *SlotService {
	return &SlotService{
		tx:     tx,
		slots:  slots,
		visits: visits,
		users:  users,
		audit:  audit,
		clock:  clock,
		policy: policy,
		logger: logger,
	}
}

// ListAvailableSlots свободные будущие слоты врача
func (s *SlotService) ListAvailableSlots(ctx context.Context, providerID uuid.UUID) ([]*model.Slot, error) {
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListAvailable(ctx, providerID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ListProviderSlots все слоты врача в диапазоне
func (s *SlotService) ListProviderSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	if !from.Before(to) {
		return nil, apperr.Validation(apperr.CodeInvalidWindow, "range start %s must be before end %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if _, err := loadUser(ctx, s.users, providerID); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByProvider(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list provider slots: %w", err)
	}
	return slots, nil
}

// ListSlotsByStatus слоты врача в одном статусе
func (s *SlotService) ListSlotsByStatus(ctx context.Context, providerID uuid.UUID, status model.SlotStatus) ([]*model.Slot, error) {
	if _, ok := model.ParseSlotStatus(string(status)); !ok {
		return nil, apperr.Validation(apperr.CodeUnknownEnum, "unknown slot status %q", status)
	}
	if _, err := loadUser(ctx, s.users, providerID); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByStatus(ctx, providerID, status)
	if err != nil {
		return nil, fmt.Errorf("list slots by status: %w", err)
	}
	return slots, nil
}

// CreateSlot создаёт свободный слот врача
func (s *SlotService) CreateSlot(ctx context.Context, actorID, providerID uuid.UUID, w model.Window) (*model.Slot, error) {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if !canManageSlotsOf(actor, providerID) {
		return nil, forbidden("user %s cannot create slots for provider %s", actorID, providerID)
	}
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}
	if err := s.validateWindow(w); err != nil {
		return nil, err
	}

	var slot *model.Slot
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, providerID); err != nil {
			return err
		}
		slot, err = s.insertSlot(ctx, providerID, w, model.SlotStatusAvailable)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("provider_id", providerID.String()),
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
	)
	emit(s.audit, s.clock, actorID, model.ActionSlotCreated, "slot %s created for provider %s at %s", slot.ID, providerID, w)

	return slot, nil
}

// SetSlotAvailability переключает слот между AVAILABLE и UNAVAILABLE
func (s *SlotService) SetSlotAvailability(ctx context.Context, actorID, slotID uuid.UUID, target model.SlotStatus) (*model.Slot, error) {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}

	current, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if current == nil {
		return nil, apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", slotID)
	}
	if !canManageSlotsOf(actor, current.ProviderID) {
		return nil, forbidden("user %s does not own slot %s", actorID, slotID)
	}

	var slot *model.Slot
	var from model.SlotStatus
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, current.ProviderID); err != nil {
			return err
		}
		slot, err = s.slots.GetByIDForUpdate(ctx, slotID)
		if err != nil {
			return fmt.Errorf("get slot for update: %w", err)
		}
		if slot == nil {
			return apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", slotID)
		}
		from = slot.Status

		toggle := (from == model.SlotStatusAvailable && target == model.SlotStatusUnavailable) ||
			(from == model.SlotStatusUnavailable && target == model.SlotStatusAvailable)
		if !toggle {
			return apperr.InvalidState(apperr.CodeInvalidTransition,
				"slot %s cannot be switched from %s to %s", slotID, from, target)
		}

		// Снятый слот мог быть перекрыт новым, пока был недоступен
		if target == model.SlotStatusAvailable {
			if err := s.ensureNoSlotConflict(ctx, slot.ProviderID, slot.Window(), slot.ID); err != nil {
				return err
			}
		}

		return s.transition(ctx, slot, target)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot availability changed",
		zap.String("slot_id", slotID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	emit(s.audit, s.clock, actorID, model.ActionSlotStatusUpdated, "slot %s switched from %s to %s", slotID, from, target)

	return slot, nil
}

// DeleteSlot удаляет слот без истории визитов
func (s *SlotService) DeleteSlot(ctx context.Context, actorID, slotID uuid.UUID) error {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return err
	}

	current, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	if current == nil {
		return apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", slotID)
	}
	if !canManageSlotsOf(actor, current.ProviderID) {
		return forbidden("user %s does not own slot %s", actorID, slotID)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, current.ProviderID); err != nil {
			return err
		}
		slot, err := s.slots.GetByIDForUpdate(ctx, slotID)
		if err != nil {
			return fmt.Errorf("get slot for update: %w", err)
		}
		if slot == nil {
			return apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", slotID)
		}
		if slot.Status == model.SlotStatusLocked || slot.Status == model.SlotStatusConfirmed {
			return apperr.InvalidState(apperr.CodeIllegalState, "slot %s is %s and cannot be deleted", slotID, slot.Status)
		}

		count, err := s.visits.CountBySlot(ctx, slotID)
		if err != nil {
			return fmt.Errorf("count visits: %w", err)
		}
		if count > 0 {
			return apperr.InvalidState(apperr.CodeIllegalState, "slot %s has visit history and cannot be deleted", slotID)
		}

		return s.slots.Delete(ctx, slotID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Slot deleted", zap.String("slot_id", slotID.String()))
	emit(s.audit, s.clock, actorID, model.ActionSlotDeleted, "slot %s deleted", slotID)

	return nil
}

// ReclaimExpiredLocks возвращает в AVAILABLE слоты, заблокированные дольше допустимого,
// и отменяет ожидающий визит в той же транзакции. Каждый слот обрабатывается отдельно.
func (s *SlotService) ReclaimExpiredLocks(ctx context.Context) (int, error) {
	now := s.clock()

	candidates, err := s.slots.ListExpiredLocks(ctx, now.Add(-s.policy.LockGracePeriod))
	if err != nil {
		return 0, fmt.Errorf("list expired locks: %w", err)
	}

	var (
		reclaimed int
		errs      []error
	)
	for _, candidate := range candidates {
		var visitID *uuid.UUID
		var ok bool
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			ok, visitID, err = s.reclaimLock(ctx, candidate, now)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to reclaim slot",
				zap.String("slot_id", candidate.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("reclaim slot %s: %w", candidate.ID, err))
			continue
		}
		if !ok {
			continue
		}

		reclaimed++
		fields := []zap.Field{
			zap.String("slot_id", candidate.ID.String()),
			zap.Time("start", candidate.StartTime),
		}
		if visitID != nil {
			fields = append(fields, zap.String("visit_id", visitID.String()))
		}
		s.logger.Info("Expired lock reclaimed", fields...)
		emit(s.audit, s.clock, uuid.Nil, model.ActionLockReclaimed, "lock on slot %s reclaimed, appointment started at %s",
			candidate.ID, candidate.StartTime.Format(time.RFC3339))
	}

	return reclaimed, errors.Join(errs...)
}

// reclaimLock перепроверяет слот под блокировкой: параллельное подтверждение могло успеть раньше
func (s *SlotService) reclaimLock(ctx context.Context, candidate *model.Slot, now time.Time) (bool, *uuid.UUID, error) {
	if err := s.tx.LockParty(ctx, candidate.ProviderID); err != nil {
		return false, nil, err
	}

	slot, err := s.slots.GetByIDForUpdate(ctx, candidate.ID)
	if err != nil {
		return false, nil, fmt.Errorf("get slot for update: %w", err)
	}
	if slot == nil || !IsLockExpired(slot, now, s.policy.LockGracePeriod) {
		return false, nil, nil
	}

	visit, err := s.visits.GetActiveBySlot(ctx, slot.ID)
	if err != nil {
		return false, nil, fmt.Errorf("get visit by slot: %w", err)
	}

	var visitID *uuid.UUID
	if visit != nil {
		if visit.Status != model.VisitStatusPending {
			s.logger.Warn("Locked slot has a non-pending visit, skipping",
				zap.String("slot_id", slot.ID.String()),
				zap.String("visit_id", visit.ID.String()),
				zap.String("visit_status", string(visit.Status)),
			)
			return false, nil, nil
		}
		ok, err := s.visits.UpdateStatus(ctx, visit.ID, model.VisitStatusPending, model.VisitStatusCancelled)
		if err != nil {
			return false, nil, fmt.Errorf("cancel visit: %w", err)
		}
		if !ok {
			return false, nil, apperr.InvalidState(apperr.CodeIllegalState, "visit %s changed while reclaiming", visit.ID)
		}
		visitID = &visit.ID
	}

	if err := s.transition(ctx, slot, model.SlotStatusAvailable); err != nil {
		return false, nil, err
	}
	return true, visitID, nil
}

func (s *SlotService) validateWindow(w model.Window) error {
	if !w.Valid() {
		return apperr.Validation(apperr.CodeInvalidWindow, "window start %s must be before end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	if !StartsInFuture(w.Start, s.clock(), s.policy.ClockSkewTolerance) {
		return apperr.Validation(apperr.CodeWindowInPast, "window %s starts in the past", w)
	}
	return nil
}

func (s *SlotService) ensureNoSlotConflict(ctx context.Context, providerID uuid.UUID, w model.Window, exclude uuid.UUID) error {
	existing, err := s.slots.ListOverlapping(ctx, providerID, w)
	if err != nil {
		return fmt.Errorf("list overlapping slots: %w", err)
	}
	if conflicts := SlotConflicts(w, existing, exclude); len(conflicts) > 0 {
		return providerSlotConflict(conflicts)
	}
	return nil
}

// insertSlot проверяет пересечения и сохраняет слот. Вызывается под LockParty врача.
func (s *SlotService) insertSlot(ctx context.Context, providerID uuid.UUID, w model.Window, status model.SlotStatus) (*model.Slot, error) {
	if err := s.ensureNoSlotConflict(ctx, providerID, w, uuid.Nil); err != nil {
		return nil, err
	}

	slot := &model.Slot{
		ID:         uuid.New(),
		ProviderID: providerID,
		StartTime:  w.Start,
		EndTime:    w.End,
		Status:     status,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// transition меняет статус слота по таблице переходов (compare-and-swap)
func (s *SlotService) transition(ctx context.Context, slot *model.Slot, to model.SlotStatus) error {
	if !SlotTransitionAllowed(slot.Status, to) {
		return apperr.InvalidState(apperr.CodeInvalidTransition, "slot %s cannot move from %s to %s", slot.ID, slot.Status, to)
	}

	ok, err := s.slots.UpdateStatus(ctx, slot.ID, slot.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidState(apperr.CodeIllegalState, "slot %s is no longer %s", slot.ID, slot.Status)
	}

	slot.Status = to
	slot.UpdatedAt = s.clock()
	return nil
}
