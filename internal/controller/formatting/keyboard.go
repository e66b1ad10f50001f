package formatting

import "github.com/go-telegram/bot/models"

// Keyboard упрощает создание inline клавиатур
type Keyboard struct {
	rows [][]models.InlineKeyboardButton
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// Row добавляет новый ряд кнопок
func (k *Keyboard) Row(buttons ...models.InlineKeyboardButton) *Keyboard {
	if len(buttons) > 0 {
		k.rows = append(k.rows, buttons)
	}
	return k
}

func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

func (k *Keyboard) Build() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: k.rows}
}
