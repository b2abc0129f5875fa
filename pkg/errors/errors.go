package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrBadRequest          = errors.New("bad request")
	ErrInternalServer      = errors.New("internal server error")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrTimeout             = errors.New("timeout")
	ErrCanceled            = errors.New("request canceled")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("rate limit exceeded")
)

// Уточненные варианты NotFound: errors.Is(err, ErrNotFound) для них истинно
var (
	ErrPetNotFound          = fmt.Errorf("pet %w", ErrNotFound)
	ErrOwnerNotFound        = fmt.Errorf("pet owner %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

// Classify приводит ошибку хранилища к таксономии сервиса.
// Доменные ошибки проходят как есть, истекший дедлайн превращается в ErrTimeout,
// отмена вызывающим - в ErrCanceled, все остальное считается недоступностью хранилища.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	case isDomain(err):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func isDomain(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrForbidden, ErrBadRequest, ErrUnauthorized, ErrInvalidParticipants,
		ErrInvalidMessage, ErrStoreUnavailable, ErrTimeout, ErrCanceled, ErrConflict, ErrRateLimited,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Retryable сообщает, может ли вызывающий повторить операцию
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}

func HTTPStatusFromError(err error) int {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidParticipants), errors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrCanceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Code - короткий машинный код ошибки для клиентов и меток метрик
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidParticipants):
		return "invalid_participants"
	case errors.Is(err, ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}

// PublicMessage возвращает текст ошибки, который безопасно показать клиенту.
// Подробности драйвера хранилища наружу не попадают.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	case errors.Is(err, ErrStoreUnavailable):
		return ErrStoreUnavailable.Error()
	case errors.Is(err, ErrCanceled):
		return ErrCanceled.Error()
	case isDomain(err):
		return err.Error()
	default:
		return ErrInternalServer.Error()
	}
}
