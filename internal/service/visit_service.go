package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookExistingSlotInput запись сотрудника в существующий свободный слот
type BookExistingSlotInput struct {
	RequesterID uuid.UUID
	ProviderID  uuid.UUID
	SlotID      uuid.UUID
	Category    model.VisitCategory
}

// BookFreshSlotInput запись сотрудника в новое окно
type BookFreshSlotInput struct {
	RequesterID uuid.UUID
	ProviderID  uuid.UUID
	Window      model.Window
	Category    model.VisitCategory
}

// VisitService владеет переходами статусов визита и согласует их со слотом
type VisitService struct {
	tx      Transactor
	slotSvc *SlotService
	slots   SlotStore
	visits  VisitStore
	users   UserDirectory
	audit   AuditSink
	clock   Clock
	policy  Policy
	logger  *zap.Logger
}

func NewVisitService(
	tx Transactor,
	slotSvc *SlotService,
	slots SlotStore,
	visits VisitStore,
	users UserDirectory,
	audit AuditSink,
	clock Clock,
	policy Policy,
	logger *zap.Logger,
) *VisitService {
	return &VisitService{
		tx:      tx,
		slotSvc: slotSvc,
		slots:   slots,
		visits:  visits,
		users:   users,
		audit:   audit,
		clock:   clock,
		policy:  policy,
		logger:  logger,
	}
}

// bookingParties участники записи, проверенные до открытия транзакции
type bookingParties struct {
	actor     *model.User
	requester *model.User
	provider  *model.User
}

func (s *VisitService) loadBookingParties(ctx context.Context, actorID, requesterID, providerID uuid.UUID, category model.VisitCategory) (*bookingParties, error) {
	if _, ok := model.ParseVisitCategory(string(category)); !ok {
		return nil, apperr.Validation(apperr.CodeUnknownEnum, "unknown visit category %q", category)
	}

	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Archived || !actor.Role.CanSchedule() {
		return nil, forbidden("user %s cannot schedule visits", actorID)
	}

	requester, err := loadParty(ctx, s.users, requesterID, model.RoleRequester)
	if err != nil {
		return nil, err
	}
	provider, err := loadParty(ctx, s.users, providerID, model.RoleProvider)
	if err != nil {
		return nil, err
	}

	return &bookingParties{actor: actor, requester: requester, provider: provider}, nil
}

// BookExistingSlot блокирует свободный слот и создаёт визит, ожидающий подтверждения врача
func (s *VisitService) BookExistingSlot(ctx context.Context, actorID uuid.UUID, in BookExistingSlotInput) (*model.Visit, error) {
	parties, err := s.loadBookingParties(ctx, actorID, in.RequesterID, in.ProviderID, in.Category)
	if err != nil {
		return nil, err
	}

	var visit *model.Visit
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lockParties(ctx, in.ProviderID, in.RequesterID); err != nil {
			return err
		}

		// Повторная проверка под блокировкой строки
		slot, err := s.slots.GetByIDForUpdate(ctx, in.SlotID)
		if err != nil {
			return fmt.Errorf("get slot for update: %w", err)
		}
		if slot == nil {
			return apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", in.SlotID)
		}
		if slot.ProviderID != in.ProviderID {
			return apperr.Validation(apperr.CodeInvalidInput, "slot %s does not belong to provider %s", in.SlotID, in.ProviderID)
		}
		if slot.Status != model.SlotStatusAvailable {
			return apperr.InvalidState(apperr.CodeIllegalState, "slot %s is %s, not AVAILABLE", slot.ID, slot.Status)
		}
		if IsSlotExpired(slot, s.clock()) {
			return apperr.Expired(apperr.CodeSlotExpired, "slot %s started at %s and can no longer be booked", slot.ID, slot.Window())
		}

		if err := s.ensureNoVisitConflicts(ctx, in.ProviderID, in.RequesterID, slot.Window()); err != nil {
			return err
		}
		if err := s.slotSvc.transition(ctx, slot, model.SlotStatusLocked); err != nil {
			return err
		}

		visit, err = s.createVisit(ctx, parties, slot, in.Category)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logBooked(visit)
	return visit, nil
}

// BookWithFreshSlot создаёт заблокированный слот из окна и визит в одной транзакции
func (s *VisitService) BookWithFreshSlot(ctx context.Context, actorID uuid.UUID, in BookFreshSlotInput) (*model.Visit, *model.Slot, error) {
	parties, err := s.loadBookingParties(ctx, actorID, in.RequesterID, in.ProviderID, in.Category)
	if err != nil {
		return nil, nil, err
	}
	if err := s.validateFreshWindow(in.Window); err != nil {
		return nil, nil, err
	}

	var visit *model.Visit
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		visit, err = s.bookFresh(ctx, parties, in.Window, in.Category)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logBooked(visit)
	return visit, visit.Slot, nil
}

// bookFresh выполняется внутри транзакции вызывающего
func (s *VisitService) bookFresh(ctx context.Context, parties *bookingParties, w model.Window, category model.VisitCategory) (*model.Visit, error) {
	if err := s.lockParties(ctx, parties.provider.ID, parties.requester.ID); err != nil {
		return nil, err
	}
	if err := s.ensureNoVisitConflicts(ctx, parties.provider.ID, parties.requester.ID, w); err != nil {
		return nil, err
	}

	slot, err := s.slotSvc.insertSlot(ctx, parties.provider.ID, w, model.SlotStatusLocked)
	if err != nil {
		return nil, err
	}
	return s.createVisit(ctx, parties, slot, category)
}

func (s *VisitService) validateFreshWindow(w model.Window) error {
	if err := s.slotSvc.validateWindow(w); err != nil {
		return err
	}
	if d := w.Duration(); d < s.policy.MinVisitDuration || d > s.policy.MaxVisitDuration {
		return apperr.Validation(apperr.CodeDurationOutOfBounds, "visit duration %s must be between %s and %s",
			d, s.policy.MinVisitDuration, s.policy.MaxVisitDuration)
	}
	return nil
}

func (s *VisitService) lockParties(ctx context.Context, providerID, requesterID uuid.UUID) error {
	if err := s.tx.LockParty(ctx, providerID); err != nil {
		return err
	}
	return s.tx.LockParty(ctx, requesterID)
}

// ensureNoVisitConflicts проверяет активные визиты врача и сотрудника в окне
func (s *VisitService) ensureNoVisitConflicts(ctx context.Context, providerID, requesterID uuid.UUID, w model.Window) error {
	requesterVisits, err := s.visits.ListOverlappingForRequester(ctx, requesterID, w)
	if err != nil {
		return fmt.Errorf("list requester visits: %w", err)
	}
	if conflicts := VisitConflicts(w, requesterVisits); len(conflicts) > 0 {
		return apperr.Conflict(apperr.CodeRequesterConflict, "requester already has visits in this window", visitWindows(conflicts))
	}

	providerVisits, err := s.visits.ListOverlappingForProvider(ctx, providerID, w)
	if err != nil {
		return fmt.Errorf("list provider visits: %w", err)
	}
	if conflicts := VisitConflicts(w, providerVisits); len(conflicts) > 0 {
		return apperr.Conflict(apperr.CodeProviderVisitConflict, "provider already has visits in this window", visitWindows(conflicts))
	}
	return nil
}

func (s *VisitService) createVisit(ctx context.Context, parties *bookingParties, slot *model.Slot, category model.VisitCategory) (*model.Visit, error) {
	slotID := slot.ID
	visit := &model.Visit{
		ID:          uuid.New(),
		RequesterID: parties.requester.ID,
		ProviderID:  parties.provider.ID,
		SlotID:      &slotID,
		Category:    category,
		Status:      model.VisitStatusPending,
		CreatedBy:   parties.actor.ID,
		Slot:        slot,
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		return nil, err
	}
	return visit, nil
}

func (s *VisitService) logBooked(visit *model.Visit) {
	s.logger.Info("Visit booked",
		zap.String("visit_id", visit.ID.String()),
		zap.String("slot_id", visit.Slot.ID.String()),
		zap.String("requester_id", visit.RequesterID.String()),
		zap.String("provider_id", visit.ProviderID.String()),
		zap.String("category", string(visit.Category)),
	)
	emit(s.audit, s.clock, visit.CreatedBy, model.ActionScheduleVisit, "visit %s scheduled for requester %s with provider %s at %s",
		visit.ID, visit.RequesterID, visit.ProviderID, visit.Slot.Window())
}

// ConfirmVisit врач подтверждает визит: слот становится CONFIRMED
func (s *VisitService) ConfirmVisit(ctx context.Context, visitID, providerID uuid.UUID) (*model.Visit, error) {
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}

	visit, err := s.changeStatus(ctx, visitID, model.VisitStatusScheduled, func(v *model.Visit) error {
		if v.ProviderID != providerID {
			return forbidden("visit %s is not assigned to provider %s", visitID, providerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Visit confirmed", zap.String("visit_id", visitID.String()), zap.String("provider_id", providerID.String()))
	emit(s.audit, s.clock, providerID, model.ActionValidateVisit, "visit %s confirmed by provider", visitID)
	return visit, nil
}

// RejectVisit врач отклоняет ожидающий визит: слот снова свободен
func (s *VisitService) RejectVisit(ctx context.Context, visitID, providerID uuid.UUID) (*model.Visit, error) {
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}

	visit, err := s.changeStatus(ctx, visitID, model.VisitStatusCancelled, func(v *model.Visit) error {
		if v.ProviderID != providerID {
			return forbidden("visit %s is not assigned to provider %s", visitID, providerID)
		}
		if v.Status != model.VisitStatusPending {
			return apperr.InvalidState(apperr.CodeIllegalState, "visit %s is %s and cannot be rejected", visitID, v.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Visit rejected", zap.String("visit_id", visitID.String()), zap.String("provider_id", providerID.String()))
	emit(s.audit, s.clock, providerID, model.ActionRefuseVisit, "visit %s rejected by provider", visitID)
	return visit, nil
}

// CancelVisit отмена врачом, автором записи или администратором
func (s *VisitService) CancelVisit(ctx context.Context, visitID, actorID uuid.UUID) (*model.Visit, error) {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}

	visit, err := s.changeStatus(ctx, visitID, model.VisitStatusCancelled, func(v *model.Visit) error {
		allowed := actor.ID == v.ProviderID || actor.ID == v.CreatedBy || actor.Role.CanOverrideAnyVisit()
		if !allowed || actor.Archived {
			return forbidden("user %s cannot cancel visit %s", actorID, visitID)
		}
		if !CanCancelVisit(v) {
			return apperr.InvalidState(apperr.CodeIllegalState, "visit %s is %s and cannot be cancelled", visitID, v.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Visit cancelled", zap.String("visit_id", visitID.String()), zap.String("actor_id", actorID.String()))
	emit(s.audit, s.clock, actorID, model.ActionCancelVisit, "visit %s cancelled", visitID)
	return visit, nil
}

// AdvanceVisitStatus отметки хода приёма: IN_PROGRESS, затем COMPLETED
func (s *VisitService) AdvanceVisitStatus(ctx context.Context, visitID, providerID uuid.UUID, target model.VisitStatus) (*model.Visit, error) {
	if _, ok := model.ParseVisitStatus(string(target)); !ok {
		return nil, apperr.Validation(apperr.CodeUnknownEnum, "unknown visit status %q", target)
	}
	if target != model.VisitStatusInProgress && target != model.VisitStatusCompleted {
		return nil, apperr.InvalidState(apperr.CodeInvalidTransition, "visit status %s cannot be set as progress", target)
	}
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}

	var from model.VisitStatus
	visit, err := s.changeStatus(ctx, visitID, target, func(v *model.Visit) error {
		if v.ProviderID != providerID {
			return forbidden("visit %s is not assigned to provider %s", visitID, providerID)
		}
		from = v.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Visit status updated",
		zap.String("visit_id", visitID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	emit(s.audit, s.clock, providerID, model.ActionVisitStatusUpdated, "visit %s moved from %s to %s", visitID, from, target)
	return visit, nil
}

// changeStatus общий путь перехода: блокировки, проверка права, переход визита и слота
func (s *VisitService) changeStatus(ctx context.Context, visitID uuid.UUID, to model.VisitStatus, authorize func(v *model.Visit) error) (*model.Visit, error) {
	current, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if current == nil {
		return nil, apperr.NotFound(apperr.CodeVisitNotFound, "visit %s not found", visitID)
	}

	var visit *model.Visit
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, current.ProviderID); err != nil {
			return err
		}
		visit, err = s.visits.GetByIDForUpdate(ctx, visitID)
		if err != nil {
			return fmt.Errorf("get visit for update: %w", err)
		}
		if visit == nil {
			return apperr.NotFound(apperr.CodeVisitNotFound, "visit %s not found", visitID)
		}
		if err := authorize(visit); err != nil {
			return err
		}
		return s.applyTransition(ctx, visit, to)
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// applyTransition переводит визит и парный слот; любая ошибка откатывает оба
func (s *VisitService) applyTransition(ctx context.Context, visit *model.Visit, to model.VisitStatus) error {
	if !VisitTransitionAllowed(visit.Status, to) {
		return apperr.InvalidState(apperr.CodeIllegalState, "visit %s cannot move from %s to %s", visit.ID, visit.Status, to)
	}

	if slotFrom, slotTo, paired := PairedSlotTransition(visit.Status, to); paired && visit.SlotID != nil {
		slot, err := s.slots.GetByIDForUpdate(ctx, *visit.SlotID)
		if err != nil {
			return fmt.Errorf("get slot for update: %w", err)
		}
		if slot == nil {
			return apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", *visit.SlotID)
		}
		if slot.Status != slotFrom {
			return apperr.InvalidState(apperr.CodeIllegalState, "slot %s is %s, expected %s", slot.ID, slot.Status, slotFrom)
		}
		if to == model.VisitStatusScheduled && IsLockExpired(slot, s.clock(), s.policy.LockGracePeriod) {
			return apperr.Expired(apperr.CodeLockExpired, "lock on slot %s expired, appointment started at %s", slot.ID, slot.Window())
		}
		if err := s.slotSvc.transition(ctx, slot, slotTo); err != nil {
			return err
		}
		visit.Slot = slot
	}

	ok, err := s.visits.UpdateStatus(ctx, visit.ID, visit.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidState(apperr.CodeIllegalState, "visit %s is no longer %s", visit.ID, visit.Status)
	}

	visit.Status = to
	visit.UpdatedAt = s.clock()
	return nil
}

// releaseLinked отменяет визит, созданный для спонтанного запроса, внутри транзакции вызывающего.
// Уже отменённый визит пропускается; начатый или завершённый перепланировать нельзя.
func (s *VisitService) releaseLinked(ctx context.Context, visitID uuid.UUID) (*model.Visit, bool, error) {
	visit, err := s.visits.GetByIDForUpdate(ctx, visitID)
	if err != nil {
		return nil, false, fmt.Errorf("get visit for update: %w", err)
	}
	if visit == nil {
		return nil, false, apperr.NotFound(apperr.CodeVisitNotFound, "visit %s not found", visitID)
	}

	switch visit.Status {
	case model.VisitStatusCancelled:
		return visit, false, nil
	case model.VisitStatusPending, model.VisitStatusScheduled:
		if err := s.applyTransition(ctx, visit, model.VisitStatusCancelled); err != nil {
			return nil, false, err
		}
		return visit, true, nil
	}
	return nil, false, apperr.InvalidState(apperr.CodeIllegalState, "visit %s is %s and cannot be rescheduled", visitID, visit.Status)
}

// GetVisit визит виден участникам, автору и планирующим ролям
func (s *VisitService) GetVisit(ctx context.Context, visitID, actorID uuid.UUID) (*model.Visit, error) {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}

	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if visit == nil {
		return nil, apperr.NotFound(apperr.CodeVisitNotFound, "visit %s not found", visitID)
	}

	involved := actor.ID == visit.RequesterID || actor.ID == visit.ProviderID || actor.ID == visit.CreatedBy
	if !involved && !actor.Role.CanSchedule() {
		return nil, forbidden("user %s cannot view visit %s", actorID, visitID)
	}
	return visit, nil
}

// ListPendingForProvider визиты врача, ожидающие его решения
func (s *VisitService) ListPendingForProvider(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error) {
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}
	visits, err := s.visits.ListPendingByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list pending visits: %w", err)
	}
	return visits, nil
}

// ListForRequester визиты сотрудника
func (s *VisitService) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Visit, error) {
	if _, err := loadUser(ctx, s.users, requesterID); err != nil {
		return nil, err
	}
	visits, err := s.visits.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list visits by requester: %w", err)
	}
	return visits, nil
}

// ListProviderSchedule подтверждённые и идущие приёмы врача
func (s *VisitService) ListProviderSchedule(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error) {
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}
	visits, err := s.visits.Search(ctx, model.VisitFilter{
		ProviderID: &providerID,
		Statuses:   []model.VisitStatus{model.VisitStatusScheduled, model.VisitStatusInProgress},
	})
	if err != nil {
		return nil, fmt.Errorf("list provider schedule: %w", err)
	}
	return visits, nil
}

// SearchVisits выборка по статусу и диапазону дат для координаторов
func (s *VisitService) SearchVisits(ctx context.Context, actorID uuid.UUID, f model.VisitFilter) ([]*model.Visit, error) {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Archived || !actor.Role.CanSchedule() {
		return nil, forbidden("user %s cannot search visits", actorID)
	}
	for _, st := range f.Statuses {
		if _, ok := model.ParseVisitStatus(string(st)); !ok {
			return nil, apperr.Validation(apperr.CodeUnknownEnum, "unknown visit status %q", st)
		}
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, apperr.Validation(apperr.CodeInvalidWindow, "range start %s must be before end %s",
			f.From.Format(time.RFC3339), f.To.Format(time.RFC3339))
	}

	visits, err := s.visits.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search visits: %w", err)
	}
	return visits, nil
}
