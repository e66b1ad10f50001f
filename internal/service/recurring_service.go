package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecurringSlotInput день недели и время еженедельного окна
type RecurringSlotInput struct {
	Weekday time.Weekday
	Range   model.TimeOfDayRange
}

// RecurringService ведёт еженедельные окна врача и сопоставляет с ними желаемое время
type RecurringService struct {
	tx        Transactor
	recurring RecurringSlotStore
	slots     SlotStore
	users     UserDirectory
	audit     AuditSink
	clock     Clock
	loc       *time.Location
	logger    *zap.Logger
}

func NewRecurringService(
	tx Transactor,
	recurring RecurringSlotStore,
	slots SlotStore,
	users UserDirectory,
	audit AuditSink,
	clock Clock,
	loc *time.Location,
	logger *zap.Logger,
) *RecurringService {
	if loc == nil {
		loc = time.Local
	}
	return &RecurringService{
		tx:        tx,
		recurring: recurring,
		slots:     slots,
		users:     users,
		audit:     audit,
		clock:     clock,
		loc:       loc,
		logger:    logger,
	}
}

// ListRecurringSlots окна врача по дням недели
func (s *RecurringService) ListRecurringSlots(ctx context.Context, providerID uuid.UUID) ([]*model.RecurringSlot, error) {
	if _, err := loadParty(ctx, s.users, providerID, model.RoleProvider); err != nil {
		return nil, err
	}
	slots, err := s.recurring.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring slots: %w", err)
	}
	return slots, nil
}

// CreateRecurringSlot добавляет окно, не пересекающееся с другими окнами того же дня
func (s *RecurringService) CreateRecurringSlot(ctx context.Context, actorID, providerID uuid.UUID, in RecurringSlotInput) (*model.RecurringSlot, error) {
	if err := s.authorize(ctx, actorID, providerID); err != nil {
		return nil, err
	}
	if err := validateRecurringInput(in); err != nil {
		return nil, err
	}

	rs := &model.RecurringSlot{
		ID:         uuid.New(),
		ProviderID: providerID,
		Weekday:    in.Weekday,
		StartTime:  in.Range.Start,
		EndTime:    in.Range.End,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, providerID); err != nil {
			return err
		}
		if err := s.ensureNoOverlap(ctx, providerID, in, uuid.Nil); err != nil {
			return err
		}
		return s.recurring.Create(ctx, rs)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recurring slot created",
		zap.String("recurring_slot_id", rs.ID.String()),
		zap.String("provider_id", providerID.String()),
		zap.String("weekday", in.Weekday.String()),
		zap.String("range", in.Range.String()),
	)
	emit(s.audit, s.clock, actorID, model.ActionRecurringSlotCreated, "recurring slot %s %s created for provider %s",
		in.Weekday, in.Range, providerID)

	return rs, nil
}

// UpdateRecurringSlot меняет день или время окна; само окно при проверке пересечений не учитывается
func (s *RecurringService) UpdateRecurringSlot(ctx context.Context, actorID, id uuid.UUID, in RecurringSlotInput) (*model.RecurringSlot, error) {
	rs, err := s.recurring.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get recurring slot: %w", err)
	}
	if rs == nil {
		return nil, apperr.NotFound(apperr.CodeRecurringNotFound, "recurring slot %s not found", id)
	}
	if err := s.authorize(ctx, actorID, rs.ProviderID); err != nil {
		return nil, err
	}
	if err := validateRecurringInput(in); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, rs.ProviderID); err != nil {
			return err
		}
		if err := s.ensureNoOverlap(ctx, rs.ProviderID, in, rs.ID); err != nil {
			return err
		}
		rs.Weekday = in.Weekday
		rs.StartTime = in.Range.Start
		rs.EndTime = in.Range.End
		return s.recurring.Update(ctx, rs)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recurring slot updated",
		zap.String("recurring_slot_id", id.String()),
		zap.String("weekday", in.Weekday.String()),
		zap.String("range", in.Range.String()),
	)
	emit(s.audit, s.clock, actorID, model.ActionRecurringSlotUpdated, "recurring slot %s changed to %s %s", id, in.Weekday, in.Range)

	return rs, nil
}

// DeleteRecurringSlot удаляет окно; существующие слоты не затрагиваются
func (s *RecurringService) DeleteRecurringSlot(ctx context.Context, actorID, id uuid.UUID) error {
	rs, err := s.recurring.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get recurring slot: %w", err)
	}
	if rs == nil {
		return apperr.NotFound(apperr.CodeRecurringNotFound, "recurring slot %s not found", id)
	}
	if err := s.authorize(ctx, actorID, rs.ProviderID); err != nil {
		return err
	}

	if err := s.recurring.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Recurring slot deleted", zap.String("recurring_slot_id", id.String()))
	emit(s.audit, s.clock, actorID, model.ActionRecurringSlotDeleted, "recurring slot %s %s deleted", rs.Weekday, rs.Range())
	return nil
}

// ResolveWindow выводит часовой слот из еженедельных окон врача и проверяет пересечения.
// Вызывается внутри транзакции под LockParty врача.
func (s *RecurringService) ResolveWindow(ctx context.Context, providerID uuid.UUID, target time.Time) (model.Window, error) {
	target = target.In(s.loc)

	windows, err := s.recurring.ListByProviderAndWeekday(ctx, providerID, target.Weekday())
	if err != nil {
		return model.Window{}, fmt.Errorf("list recurring slots: %w", err)
	}

	w, matched, err := MatchRecurringWindow(windows, target)
	if err != nil {
		return model.Window{}, err
	}

	existing, err := s.slots.ListOverlapping(ctx, providerID, w)
	if err != nil {
		return model.Window{}, fmt.Errorf("list overlapping slots: %w", err)
	}
	if conflicts := SlotConflicts(w, existing, uuid.Nil); len(conflicts) > 0 {
		return model.Window{}, providerSlotConflict(conflicts)
	}

	s.logger.Debug("Recurring window matched",
		zap.String("provider_id", providerID.String()),
		zap.String("recurring_slot_id", matched.ID.String()),
		zap.String("window", w.String()),
	)
	return w, nil
}

// MatchRecurringWindow чистая часть сопоставления: окна одного дня недели, упорядоченные по началу.
// Время суток цели входит в окно включительно с обеих сторон; слот длится час и не выходит за окно.
func MatchRecurringWindow(windows []*model.RecurringSlot, target time.Time) (model.Window, *model.RecurringSlot, error) {
	tod := model.TimeOfDayOf(target)

	var matched *model.RecurringSlot
	for _, rs := range windows {
		if rs.Weekday == target.Weekday() && rs.Range().Contains(tod) {
			matched = rs
			break
		}
	}
	if matched == nil {
		return model.Window{}, nil, noAvailabilityWindow(windows, target)
	}

	start := time.Date(target.Year(), target.Month(), target.Day(), target.Hour(), target.Minute(), 0, 0, target.Location())
	w := model.NewWindow(start, MatchedSlotDuration)

	startTOD := model.TimeOfDayOf(start)
	endTOD := startTOD.Add(MatchedSlotDuration)
	if !matched.Range().Covers(startTOD, endTOD) {
		return model.Window{}, nil, apperr.Validation(apperr.CodeSlotOutsideRecurring,
			"slot %s-%s does not fit in the %s window %s", startTOD, endTOD, target.Weekday(), matched.Range())
	}

	return w, matched, nil
}

func noAvailabilityWindow(windows []*model.RecurringSlot, target time.Time) *apperr.Error {
	at := model.TimeOfDayOf(target)
	if len(windows) == 0 {
		return apperr.Validation(apperr.CodeNoAvailabilityWindow,
			"provider has no availability on %s (requested %s)", target.Weekday(), at)
	}

	ranges := make([]string, 0, len(windows))
	for _, rs := range windows {
		ranges = append(ranges, rs.Range().String())
	}
	return apperr.Validation(apperr.CodeNoAvailabilityWindow,
		"no availability window on %s at %s; available: %s", target.Weekday(), at, strings.Join(ranges, ", "))
}

func (s *RecurringService) authorize(ctx context.Context, actorID, providerID uuid.UUID) error {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return err
	}
	if !canManageSlotsOf(actor, providerID) {
		return forbidden("user %s cannot manage recurring slots of provider %s", actorID, providerID)
	}
	_, err = loadParty(ctx, s.users, providerID, model.RoleProvider)
	return err
}

func (s *RecurringService) ensureNoOverlap(ctx context.Context, providerID uuid.UUID, in RecurringSlotInput, exclude uuid.UUID) error {
	sameDay, err := s.recurring.ListByProviderAndWeekday(ctx, providerID, in.Weekday)
	if err != nil {
		return fmt.Errorf("list recurring slots by weekday: %w", err)
	}

	var overlapping []string
	for _, rs := range sameDay {
		if rs.ID != exclude && rs.Range().Overlaps(in.Range) {
			overlapping = append(overlapping, rs.Range().String())
		}
	}
	if len(overlapping) > 0 {
		return apperr.Conflict(apperr.CodeRecurringOverlap,
			fmt.Sprintf("%s %s overlaps existing windows: %s", in.Weekday, in.Range, strings.Join(overlapping, ", ")), nil)
	}
	return nil
}

func validateRecurringInput(in RecurringSlotInput) error {
	if in.Weekday < time.Sunday || in.Weekday > time.Saturday {
		return apperr.Validation(apperr.CodeUnknownEnum, "unknown weekday %d", int(in.Weekday))
	}
	if !in.Range.Valid() {
		return apperr.Validation(apperr.CodeInvalidWindow, "recurring window %s is not a valid time range", in.Range)
	}
	return nil
}
