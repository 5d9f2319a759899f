package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/fsdevblog/shortlinks/internal/services"
)

// Ошибки.
var (
	ErrRecordNotFound = errors.New("record not found") // Запись не найдена
	ErrInternal       = errors.New("internal error")   // Прочая ошибка
)

// errorStatus сопоставляет ошибку сервиса HTTP статусу.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidURL), errors.Is(err, services.ErrInvalidTTL):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage текст ошибки для клиента. Подробности серверных ошибок наружу не отдаются.
func errorMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}
