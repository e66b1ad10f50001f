package handlers

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mediwork_scheduler/internal/controller/formatting"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const slotsHorizonDays = 7

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"👋 Здравствуйте, %s!\n\n"+
			"Доступные команды:\n"+
			"/pending - Визиты, ожидающие подтверждения\n"+
			"/slots - Расписание на неделю\n"+
			"/schedule - Подтверждённые приёмы\n"+
			"/help - Справка",
		user.FullName(),
	))
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, "📚 Справка по командам:\n\n"+
		"/pending - Список визитов, ожидающих вашего решения. Под каждым есть кнопки подтверждения и отказа.\n"+
		"/slots - Ваши слоты на ближайшие 7 дней\n"+
		"/schedule - Подтверждённые и идущие приёмы\n\n"+
		"Неподтверждённая запись освобождается автоматически через 2 часа после начала приёма.")
}

// HandlePending обрабатывает команду /pending
func (h *Handlers) HandlePending(ctx context.Context, b *bot.Bot, update *models.Update) {
	provider, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	visits, err := h.visits.ListPendingForProvider(ctx, provider.ID)
	if err != nil {
		h.logger.Error("Failed to list pending visits", zap.String("provider_id", provider.ID.String()), zap.Error(err))
		h.sendMessage(ctx, b, chatID, ErrorMessage(err))
		return
	}

	if len(visits) == 0 {
		h.sendMessage(ctx, b, chatID, "✅ Нет визитов, ожидающих подтверждения.")
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf("⏳ Ожидают решения: %d %s", len(visits), formatting.PluralizeVisits(len(visits))))

	for _, v := range visits {
		requester, err := h.users.GetUser(ctx, v.RequesterID)
		if err != nil {
			h.logger.Warn("Failed to load requester", zap.String("visit_id", v.ID.String()), zap.Error(err))
			requester = nil
		}

		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        formatting.PendingVisit(v, requester),
			ReplyMarkup: visitKeyboard(v.ID),
		})
		if err != nil {
			h.logger.Error("Failed to send pending visit", zap.String("visit_id", v.ID.String()), zap.Error(err))
		}
	}
}

// HandleSlots обрабатывает команду /slots
func (h *Handlers) HandleSlots(ctx context.Context, b *bot.Bot, update *models.Update) {
	provider, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}

	from := h.clock()
	to := from.AddDate(0, 0, slotsHorizonDays)

	slots, err := h.slots.ListProviderSlots(ctx, provider.ID, from, to)
	if err != nil {
		h.logger.Error("Failed to list provider slots", zap.String("provider_id", provider.ID.String()), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, formatting.SlotList(slots, from, to))
}

// HandleSchedule обрабатывает команду /schedule
func (h *Handlers) HandleSchedule(ctx context.Context, b *bot.Bot, update *models.Update) {
	provider, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}

	visits, err := h.visits.ListProviderSchedule(ctx, provider.ID)
	if err != nil {
		h.logger.Error("Failed to list provider schedule", zap.String("provider_id", provider.ID.String()), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, formatting.Schedule(visits))
}
