package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

// HTTPStatus возвращает HTTP статус для ошибки, 500 по умолчанию.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

var (
	ErrOrderNotFound      = New(ErrCodeNotFound, "заказ не найден")
	ErrDeliveryNotFound   = New(ErrCodeNotFound, "сдача работы не найдена")
	ErrDisputeNotFound    = New(ErrCodeNotFound, "спор не найден")
	ErrWithdrawalNotFound = New(ErrCodeNotFound, "заявка на вывод не найдена")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden          = New(ErrCodeForbidden, "недостаточно прав")

	// Ошибки конечного автомата заказа и споров
	ErrInvalidTransition     = New(ErrCodeConflict, "переход статуса заказа недопустим")
	ErrRevisionLimitExceeded = New(ErrCodeConflict, "лимит доработок по заказу исчерпан")
	ErrDisputeAlreadyOpen    = New(ErrCodeConflict, "по заказу уже открыт спор")
	ErrDisputeBlocked        = New(ErrCodeConflict, "заказ заблокирован открытым спором")
	ErrInvalidFeedback       = New(ErrCodeValidation, "комментарий к доработке слишком короткий")

	// Ошибки приёма платёжных событий
	ErrInvalidSignature = New(ErrCodeUnauthorized, "подпись webhook недействительна")

	// Фатальная ошибка консистентности леджера: расчёт никогда не должен
	// уводить баланс в минус. Наружу уходит как 500, детали — в аудит-лог.
	ErrLedgerInconsistency = New(ErrCodeInternal, "нарушение консистентности леджера")
)
