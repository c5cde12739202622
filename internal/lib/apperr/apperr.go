// Package apperr содержит таксономию ошибок доменного слоя.
//
// Слои оборачивают ошибки через fmt.Errorf("%s: %w", op, err), а HTTP-обработчики
// сопоставляют их со статусами ответа с помощью errors.Is.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation некорректные или отсутствующие входные данные.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound запись с указанным идентификатором не найдена.
	ErrNotFound = errors.New("subscription not found")
	// ErrUnauthorized запись существует, но вызывающий не является владельцем.
	ErrUnauthorized = errors.New("not authorized")
	// ErrStorage сбой хранилища или файлового коллаборатора.
	ErrStorage = errors.New("storage failure")
	// ErrDelivery не удалось доставить уведомление.
	ErrDelivery = errors.New("notification delivery failed")
)

// ValidationError описывает нарушения по отдельным полям.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError создаёт ошибку с одним нарушением.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add добавляет нарушение для поля.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// Empty сообщает, что нарушений нет.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, "field "+k+" "+e.Fields[k])
	}
	return strings.Join(msgs, ", ")
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
