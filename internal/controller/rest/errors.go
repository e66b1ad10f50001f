package rest

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const codeInternal = "INTERNAL_ERROR"

type errorBody struct {
	Kind      string                     `json:"kind,omitempty"`
	Code      string                     `json:"code"`
	Message   string                     `json:"message"`
	Conflicts []apperr.ConflictingWindow `json:"conflicts,omitempty"`
}

// statusFor сопоставляет вид ошибки движка с HTTP-статусом
func statusFor(e *apperr.Error) int {
	if e.Code == apperr.CodeForbidden {
		return http.StatusForbidden
	}
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindExpired:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// ErrorHandler отдаёт ошибки в едином JSON-формате; внутренние детали только в лог
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"}

		var httpErr *echo.HTTPError
		if appErr, ok := apperr.As(err); ok {
			status = statusFor(appErr)
			body = errorBody{
				Kind:      string(appErr.Kind),
				Code:      appErr.Code,
				Message:   appErr.Message,
				Conflicts: appErr.Conflicts,
			}
			if appErr.Err != nil {
				logger.Warn("Request failed with wrapped cause", zap.Error(err), zap.String("path", c.Path()))
			}
		} else if errors.As(err, &httpErr) {
			status = httpErr.Code
			body = errorBody{Code: httpCode(httpErr.Code), Message: errMessage(httpErr)}
		} else {
			logger.Error("Unhandled request error",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}

func errMessage(e *echo.HTTPError) string {
	if s, ok := e.Message.(string); ok {
		return s
	}
	return http.StatusText(e.Code)
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeInvalidInput
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusNotFound:
		return "ROUTE_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	}
	return "HTTP_ERROR"
}
