package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrBadSignature подпись вебхука не прошла проверку
	ErrBadSignature = errors.New("webhook signature verification failed")

	// ErrMalformedSignatureHeader заголовок подписи не удалось разобрать
	ErrMalformedSignatureHeader = errors.New("malformed signature header")

	// ErrMalformedPayload тело вебхука не является корректным JSON
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrAccountNotFound аккаунт не найден
	ErrAccountNotFound = errors.New("account not found")

	// ErrStoreUnavailable хранилище аккаунтов недоступно
	ErrStoreUnavailable = errors.New("account store unavailable")

	// ErrUnknownPlan план не сконфигурирован
	ErrUnknownPlan = errors.New("unknown plan")
)

// DecodeError reports a webhook payload whose declared type requires a
// correlation field that is absent or has the wrong shape. Only the
// field name is safe to log; payload content never is.
type DecodeError struct {
	Field string
}

// Error реализует интерфейс error
func (e *DecodeError) Error() string {
	return fmt.Sprintf("webhook payload missing required field: %s", e.Field)
}

// Is makes DecodeError match ErrMalformedPayload in errors.Is chains.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// NewDecodeError создает новую ошибку декодирования
func NewDecodeError(field string) *DecodeError {
	return &DecodeError{Field: field}
}

// StoreError wraps a storage failure so the webhook pipeline can map it
// to a failed acknowledgment and let the provider redeliver.
type StoreError struct {
	Op          string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.OriginalErr)
}

// Unwrap возвращает оригинальную ошибку
func (e *StoreError) Unwrap() error {
	return e.OriginalErr
}

// Is makes StoreError match ErrStoreUnavailable in errors.Is chains.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError создает новую ошибку хранилища
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, OriginalErr: err}
}
