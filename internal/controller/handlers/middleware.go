package handlers

import (
	"context"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireProvider находит врача по отправителю сообщения.
// Возвращает user и true если OK, иначе отвечает пользователю сам.
func (h *Handlers) requireProvider(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.users.IdentifyProvider(ctx, telegramID)
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			h.logger.Error("Failed to identify provider", zap.Int64("telegram_id", telegramID), zap.Error(err))
		}
		h.sendMessage(ctx, b, update.Message.Chat.ID, ErrorMessage(err))
		return nil, false
	}
	return user, true
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

func (h *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}
