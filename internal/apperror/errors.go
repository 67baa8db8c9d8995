// Package apperror описывает таксономию ошибок, видимых клиенту API.
package apperror

import (
	"errors"
	"net/http"
)

// Kind задаёт стабильный код категории ошибки.
type Kind string

const (
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	InvalidArgument Kind = "invalid_argument"
	Internal        Kind = "internal"
)

// Error описывает ошибку приложения с кодом категории и сообщением для клиента.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is позволяет сравнивать ошибки одной категории с одинаковым сообщением через errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// New создаёт ошибку указанной категории.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Invalid создаёт ошибку некорректного аргумента.
func Invalid(message string) *Error {
	return New(InvalidArgument, message)
}

// KindOf возвращает категорию ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// HTTPStatus сопоставляет категорию ошибки с HTTP-статусом.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Public возвращает ошибку, безопасную для показа клиенту.
// Внутренние ошибки хранилища заменяются общим сообщением.
func Public(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != Internal {
		return appErr
	}
	return New(Internal, "internal error")
}
