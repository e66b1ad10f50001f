package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService читает справочник пользователей и проверяет роли участников
type UserService struct {
	users  UserDirectory
	logger *zap.Logger
}

func NewUserService(users UserDirectory, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// IdentifyProvider находит врача по Telegram ID
func (s *UserService) IdentifyProvider(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "no user linked to telegram account %d", telegramID)
	}
	if err := ensureActive(user, model.RoleProvider); err != nil {
		return nil, err
	}

	s.logger.Debug("Provider identified",
		zap.Int64("telegram_id", telegramID),
		zap.String("provider_id", user.ID.String()),
	)

	return user, nil
}

// GetUser получает пользователя по ID
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return loadUser(ctx, s.users, id)
}

func loadUser(ctx context.Context, users UserDirectory, id uuid.UUID) (*model.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "user %s not found", id)
	}
	return user, nil
}

// loadParty загружает участника и проверяет роль и что он не в архиве
func loadParty(ctx context.Context, users UserDirectory, id uuid.UUID, role model.Role) (*model.User, error) {
	user, err := loadUser(ctx, users, id)
	if err != nil {
		return nil, err
	}
	if err := ensureActive(user, role); err != nil {
		return nil, err
	}
	return user, nil
}

func ensureActive(user *model.User, role model.Role) error {
	if user.Role != role {
		return apperr.Validation(apperr.CodeRoleMismatch, "user %s is %s, expected %s", user.ID, user.Role, role)
	}
	if user.Archived {
		return apperr.InvalidState(apperr.CodeUserArchived, "user %s is archived", user.ID)
	}
	return nil
}

// canManageSlotsOf врач управляет своими слотами, администратор любыми
func canManageSlotsOf(actor *model.User, providerID uuid.UUID) bool {
	if actor.Archived {
		return false
	}
	return actor.Role.CanOverrideAnyVisit() || (actor.Role.CanManageOwnSlots() && actor.ID == providerID)
}

func forbidden(format string, args ...any) *apperr.Error {
	return apperr.InvalidState(apperr.CodeForbidden, format, args...)
}

func emit(sink AuditSink, clock Clock, actor uuid.UUID, action model.ActionType, format string, args ...any) {
	if sink == nil {
		return
	}
	sink.Emit(model.AuditEntry{
		ActorID:     actor,
		Action:      action,
		Description: fmt.Sprintf(format, args...),
		Timestamp:   clock(),
	})
}
