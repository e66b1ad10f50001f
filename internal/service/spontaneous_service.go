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

// RequestInput редактируемые поля спонтанного запроса
type RequestInput struct {
	Reason      string
	Notes       *string
	PreferredAt *time.Time
}

// ConfirmRequestInput подтверждение запроса координатором
type ConfirmRequestInput struct {
	RequestID  uuid.UUID
	ProviderID uuid.UUID
	// Override заменяет желаемое время сотрудника
	Override *time.Time
	Category *model.VisitCategory
}

// SpontaneousService превращает спонтанные запросы в визиты
type SpontaneousService struct {
	tx        Transactor
	requests  SpontaneousRequestStore
	recurring *RecurringService
	visits    *VisitService
	users     UserDirectory
	audit     AuditSink
	clock     Clock
	policy    Policy
	logger    *zap.Logger
}

func NewSpontaneousService(
	tx Transactor,
	requests SpontaneousRequestStore,
	recurring *RecurringService,
	visits *VisitService,
	users UserDirectory,
	audit AuditSink,
	clock Clock,
	policy Policy,
	logger *zap.Logger,
) *SpontaneousService {
	return &SpontaneousService{
		tx:        tx,
		requests:  requests,
		recurring: recurring,
		visits:    visits,
		users:     users,
		audit:     audit,
		clock:     clock,
		policy:    policy,
		logger:    logger,
	}
}

func (s *SpontaneousService) validateInput(in RequestInput) error {
	if strings.TrimSpace(in.Reason) == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "reason is required")
	}
	if in.PreferredAt != nil && !StartsInFuture(*in.PreferredAt, s.clock(), s.policy.ClockSkewTolerance) {
		return apperr.Validation(apperr.CodeWindowInPast, "preferred time %s is in the past", in.PreferredAt.Format(time.RFC3339))
	}
	return nil
}

// SubmitRequest сотрудник подаёт запрос на визит
func (s *SpontaneousService) SubmitRequest(ctx context.Context, requesterID uuid.UUID, in RequestInput) (*model.SpontaneousRequest, error) {
	requester, err := loadUser(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}
	if requester.Archived || !requester.Role.CanSubmitRequests() {
		return nil, forbidden("user %s cannot submit spontaneous requests", requesterID)
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	req := &model.SpontaneousRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Reason:      strings.TrimSpace(in.Reason),
		Notes:       in.Notes,
		PreferredAt: in.PreferredAt,
		Status:      model.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Spontaneous request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("requester_id", requesterID.String()),
	)
	emit(s.audit, s.clock, requesterID, model.ActionSubmitSpontaneousRequest, "spontaneous request %s submitted", req.ID)

	return req, nil
}

// UpdateRequest правка своего запроса, пока он PENDING
func (s *SpontaneousService) UpdateRequest(ctx context.Context, requesterID, requestID uuid.UUID, in RequestInput) (*model.SpontaneousRequest, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	req, err := s.mutate(ctx, requestID, func(req *model.SpontaneousRequest) error {
		if req.RequesterID != requesterID {
			return forbidden("request %s belongs to another requester", requestID)
		}
		if !IsRequestEditable(req) {
			return apperr.InvalidState(apperr.CodeIllegalState, "request %s is %s and can no longer be edited", requestID, req.Status)
		}
		req.Reason = strings.TrimSpace(in.Reason)
		req.Notes = in.Notes
		req.PreferredAt = in.PreferredAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	emit(s.audit, s.clock, requesterID, model.ActionUpdateSpontaneousRequest, "spontaneous request %s updated", requestID)
	return req, nil
}

// CancelByRequester сотрудник отзывает свой запрос, пока он PENDING
func (s *SpontaneousService) CancelByRequester(ctx context.Context, requesterID, requestID uuid.UUID) (*model.SpontaneousRequest, error) {
	req, err := s.mutate(ctx, requestID, func(req *model.SpontaneousRequest) error {
		if req.RequesterID != requesterID {
			return forbidden("request %s belongs to another requester", requestID)
		}
		if req.Status != model.RequestStatusPending {
			return apperr.InvalidState(apperr.CodeIllegalState, "request %s is %s and cannot be cancelled", requestID, req.Status)
		}
		req.Status = model.RequestStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Spontaneous request cancelled by requester", zap.String("request_id", requestID.String()))
	emit(s.audit, s.clock, requesterID, model.ActionCancelSpontaneousRequest, "spontaneous request %s cancelled by requester", requestID)
	return req, nil
}

// CancelByCoordinator отмена координатором; повторная отмена ничего не меняет
func (s *SpontaneousService) CancelByCoordinator(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error) {
	if err := s.requireScheduler(ctx, actorID); err != nil {
		return nil, err
	}

	changed := false
	req, err := s.mutate(ctx, requestID, func(req *model.SpontaneousRequest) error {
		switch req.Status {
		case model.RequestStatusCancelled:
			return nil
		case model.RequestStatusScheduled:
			return apperr.InvalidState(apperr.CodeIllegalState, "request %s is already scheduled", requestID)
		}
		req.Status = model.RequestStatusCancelled
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Spontaneous request cancelled by coordinator", zap.String("request_id", requestID.String()))
		emit(s.audit, s.clock, actorID, model.ActionCancelSpontaneousRequest, "spontaneous request %s cancelled by coordinator", requestID)
	}
	return req, nil
}

// RejectRequest координатор отклоняет необработанный запрос
func (s *SpontaneousService) RejectRequest(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error) {
	if err := s.requireScheduler(ctx, actorID); err != nil {
		return nil, err
	}

	req, err := s.mutate(ctx, requestID, func(req *model.SpontaneousRequest) error {
		if req.Status != model.RequestStatusPending && req.Status != model.RequestStatusNeedsRescheduling {
			return apperr.InvalidState(apperr.CodeIllegalState, "request %s is %s and cannot be rejected", requestID, req.Status)
		}
		req.Status = model.RequestStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Spontaneous request rejected", zap.String("request_id", requestID.String()))
	emit(s.audit, s.clock, actorID, model.ActionCancelSpontaneousRequest, "spontaneous request %s rejected", requestID)
	return req, nil
}

// MarkNeedsRescheduling возвращает запланированный запрос на повторное планирование.
// Визит прошлого подтверждения отменяется в той же транзакции, его слот освобождается.
func (s *SpontaneousService) MarkNeedsRescheduling(ctx context.Context, actorID, requestID uuid.UUID) (*model.SpontaneousRequest, error) {
	if err := s.requireScheduler(ctx, actorID); err != nil {
		return nil, err
	}

	current, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get spontaneous request: %w", err)
	}
	if current == nil {
		return nil, apperr.NotFound(apperr.CodeRequestNotFound, "spontaneous request %s not found", requestID)
	}

	// Врач блокируется раньше строки запроса, как в ConfirmRequest
	var providerID *uuid.UUID
	if current.VisitID != nil {
		linked, err := s.visits.visits.GetByID(ctx, *current.VisitID)
		if err != nil {
			return nil, fmt.Errorf("get linked visit: %w", err)
		}
		if linked != nil {
			providerID = &linked.ProviderID
		}
	}

	var (
		req       *model.SpontaneousRequest
		released  *model.Visit
		cancelled bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if providerID != nil {
			if err := s.tx.LockParty(ctx, *providerID); err != nil {
				return err
			}
		}

		req, err = s.requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("get spontaneous request for update: %w", err)
		}
		if req == nil {
			return apperr.NotFound(apperr.CodeRequestNotFound, "spontaneous request %s not found", requestID)
		}
		if req.Status != model.RequestStatusScheduled {
			return apperr.InvalidState(apperr.CodeIllegalState, "request %s is %s, only scheduled requests can be rescheduled", requestID, req.Status)
		}

		if req.VisitID != nil {
			released, cancelled, err = s.visits.releaseLinked(ctx, *req.VisitID)
			if err != nil {
				return err
			}
		}

		req.Status = model.RequestStatusNeedsRescheduling
		return s.requests.Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("request_id", requestID.String())}
	if cancelled {
		fields = append(fields, zap.String("cancelled_visit_id", released.ID.String()))
		emit(s.audit, s.clock, actorID, model.ActionCancelVisit, "visit %s cancelled to reschedule request %s", released.ID, requestID)
	}
	s.logger.Info("Spontaneous request needs rescheduling", fields...)
	emit(s.audit, s.clock, actorID, model.ActionUpdateSpontaneousRequest, "spontaneous request %s marked for rescheduling", requestID)
	return req, nil
}

// ConfirmRequest сопоставляет время с окнами врача, создаёт слот и визит и помечает запрос SCHEDULED.
// Всё выполняется в одной транзакции.
func (s *SpontaneousService) ConfirmRequest(ctx context.Context, actorID uuid.UUID, in ConfirmRequestInput) (*model.Visit, error) {
	category := model.VisitCategorySpontaneous
	if in.Category != nil {
		category = *in.Category
	}

	current, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get spontaneous request: %w", err)
	}
	if current == nil {
		return nil, apperr.NotFound(apperr.CodeRequestNotFound, "spontaneous request %s not found", in.RequestID)
	}

	parties, err := s.visits.loadBookingParties(ctx, actorID, current.RequesterID, in.ProviderID, category)
	if err != nil {
		return nil, err
	}

	var visit *model.Visit
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockParty(ctx, in.ProviderID); err != nil {
			return err
		}

		req, err := s.requests.GetByIDForUpdate(ctx, in.RequestID)
		if err != nil {
			return fmt.Errorf("get spontaneous request for update: %w", err)
		}
		if req == nil {
			return apperr.NotFound(apperr.CodeRequestNotFound, "spontaneous request %s not found", in.RequestID)
		}
		if req.Status != model.RequestStatusPending && req.Status != model.RequestStatusNeedsRescheduling {
			return apperr.InvalidState(apperr.CodeIllegalState, "request %s is %s and cannot be confirmed", req.ID, req.Status)
		}
		if err := s.ensurePreviousVisitReleased(ctx, req); err != nil {
			return err
		}

		target := req.PreferredAt
		if in.Override != nil {
			target = in.Override
		}
		if target == nil {
			return apperr.Validation(apperr.CodeDateRequired, "request %s has no preferred time and no override was given", req.ID)
		}
		if !StartsInFuture(*target, s.clock(), s.policy.ClockSkewTolerance) {
			return apperr.Validation(apperr.CodeWindowInPast, "target time %s is in the past", target.Format(time.RFC3339))
		}

		w, err := s.recurring.ResolveWindow(ctx, in.ProviderID, *target)
		if err != nil {
			return err
		}
		if err := s.visits.validateFreshWindow(w); err != nil {
			return err
		}

		visit, err = s.visits.bookFresh(ctx, parties, w, category)
		if err != nil {
			return err
		}

		req.Status = model.RequestStatusScheduled
		req.VisitID = &visit.ID
		return s.requests.Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.visits.logBooked(visit)
	s.logger.Info("Spontaneous request confirmed",
		zap.String("request_id", in.RequestID.String()),
		zap.String("visit_id", visit.ID.String()),
	)
	emit(s.audit, s.clock, actorID, model.ActionConfirmSpontaneousRequest, "spontaneous request %s confirmed as visit %s at %s",
		in.RequestID, visit.ID, visit.Slot.Window())

	return visit, nil
}

// ensurePreviousVisitReleased у запроса не бывает двух активных визитов
func (s *SpontaneousService) ensurePreviousVisitReleased(ctx context.Context, req *model.SpontaneousRequest) error {
	if req.VisitID == nil {
		return nil
	}
	previous, err := s.visits.visits.GetByID(ctx, *req.VisitID)
	if err != nil {
		return fmt.Errorf("get previous visit: %w", err)
	}
	if previous != nil && previous.Status != model.VisitStatusCancelled {
		return apperr.InvalidState(apperr.CodeIllegalState, "request %s still has visit %s in status %s", req.ID, previous.ID, previous.Status)
	}
	return nil
}

// ListMine запросы сотрудника
func (s *SpontaneousService) ListMine(ctx context.Context, requesterID uuid.UUID) ([]*model.SpontaneousRequest, error) {
	if _, err := loadUser(ctx, s.users, requesterID); err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list spontaneous requests: %w", err)
	}
	return requests, nil
}

// RequestStats количество запросов сотрудника по статусам
func (s *SpontaneousService) RequestStats(ctx context.Context, requesterID uuid.UUID) (*model.RequestStats, error) {
	if _, err := loadUser(ctx, s.users, requesterID); err != nil {
		return nil, err
	}
	stats, err := s.requests.CountByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("count spontaneous requests: %w", err)
	}
	return stats, nil
}

// ListOpen необработанные запросы для координатора
func (s *SpontaneousService) ListOpen(ctx context.Context, actorID uuid.UUID) ([]*model.SpontaneousRequest, error) {
	if err := s.requireScheduler(ctx, actorID); err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByStatus(ctx, model.RequestStatusPending, model.RequestStatusNeedsRescheduling)
	if err != nil {
		return nil, fmt.Errorf("list open spontaneous requests: %w", err)
	}
	return requests, nil
}

func (s *SpontaneousService) requireScheduler(ctx context.Context, actorID uuid.UUID) error {
	actor, err := loadUser(ctx, s.users, actorID)
	if err != nil {
		return err
	}
	if actor.Archived || !actor.Role.CanSchedule() {
		return forbidden("user %s cannot manage spontaneous requests", actorID)
	}
	return nil
}

// mutate читает запрос под блокировкой, применяет fn и сохраняет
func (s *SpontaneousService) mutate(ctx context.Context, requestID uuid.UUID, fn func(req *model.SpontaneousRequest) error) (*model.SpontaneousRequest, error) {
	var req *model.SpontaneousRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("get spontaneous request for update: %w", err)
		}
		if req == nil {
			return apperr.NotFound(apperr.CodeRequestNotFound, "spontaneous request %s not found", requestID)
		}
		before := *req
		if err := fn(req); err != nil {
			return err
		}
		if *req == before {
			return nil
		}
		return s.requests.Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
