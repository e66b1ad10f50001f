package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Callback data: visit:confirm:<uuid>, visit:reject:<uuid>
const (
	VisitCallbackPrefix = "visit:"

	actionConfirm = "confirm"
	actionReject  = "reject"
)

var errInvalidCallback = errors.New("invalid callback data")

func visitCallback(action string, visitID uuid.UUID) string {
	return VisitCallbackPrefix + action + ":" + visitID.String()
}

func visitKeyboard(visitID uuid.UUID) *models.InlineKeyboardMarkup {
	return formatting.NewKeyboard().
		Row(
			formatting.Button("✅ Подтвердить", visitCallback(actionConfirm, visitID)),
			formatting.Button("🚫 Отклонить", visitCallback(actionReject, visitID)),
		).
		Build()
}

// parseVisitCallback разбирает "visit:<action>:<uuid>"
func parseVisitCallback(data string) (string, uuid.UUID, error) {
	rest, ok := strings.CutPrefix(data, VisitCallbackPrefix)
	if !ok {
		return "", uuid.Nil, errInvalidCallback
	}
	action, rawID, ok := strings.Cut(rest, ":")
	if !ok || (action != actionConfirm && action != actionReject) {
		return "", uuid.Nil, errInvalidCallback
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %v", errInvalidCallback, err)
	}
	return action, id, nil
}

// HandleVisitCallback обрабатывает кнопки подтверждения и отказа
func (h *Handlers) HandleVisitCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	action, visitID, err := parseVisitCallback(callback.Data)
	if err != nil {
		h.logger.Warn("Malformed visit callback", zap.String("data", callback.Data), zap.Error(err))
		h.answerCallback(ctx, b, callback.ID, "❌ Неверный формат", true)
		return
	}

	provider, err := h.users.IdentifyProvider(ctx, callback.From.ID)
	if err != nil {
		h.answerCallback(ctx, b, callback.ID, ErrorMessage(err), true)
		return
	}

	var visit *model.Visit
	switch action {
	case actionConfirm:
		visit, err = h.visits.ConfirmVisit(ctx, visitID, provider.ID)
	case actionReject:
		visit, err = h.visits.RejectVisit(ctx, visitID, provider.ID)
	}
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			h.logger.Error("Visit callback failed",
				zap.String("action", action),
				zap.String("visit_id", visitID.String()),
				zap.Error(err),
			)
		}
		h.answerCallback(ctx, b, callback.ID, ErrorMessage(err), true)
		return
	}

	h.logger.Info("Visit decided via bot",
		zap.String("action", action),
		zap.String("visit_id", visitID.String()),
		zap.String("provider_id", provider.ID.String()),
	)

	answer := "✅ Визит подтверждён"
	if action == actionReject {
		answer = "🚫 Визит отклонён, слот снова свободен"
	}
	h.answerCallback(ctx, b, callback.ID, answer, false)

	// Убираем кнопки и показываем новый статус
	if msg := callback.Message.Message; msg != nil {
		_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			Text:      formatting.PendingVisit(visit, nil),
		})
		if err != nil {
			h.logger.Warn("Failed to update visit message", zap.Error(err))
		}
	}
}
