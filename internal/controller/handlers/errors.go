package handlers

import "github.com/Freeeeeet/mediwork_scheduler/internal/apperr"

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeUserNotFound:
		return "❌ Ваш Telegram не привязан к учётной записи врача. Обратитесь к администратору."
	case apperr.CodeRoleMismatch:
		return "❌ Эта команда доступна только врачам."
	case apperr.CodeUserArchived:
		return "❌ Учётная запись отключена."
	case apperr.CodeVisitNotFound:
		return "❌ Визит не найден"
	case apperr.CodeForbidden:
		return "❌ Этот визит назначен другому врачу"
	case apperr.CodeIllegalState, apperr.CodeInvalidTransition:
		return "⚠️ Визит уже обработан"
	case apperr.CodeLockExpired:
		return "⌛️ Время подтверждения истекло, слот освобождается"
	}
	return "❌ Произошла ошибка. Попробуйте позже."
}
