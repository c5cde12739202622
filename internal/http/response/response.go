// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков и сопоставления ошибок
// доменного слоя со статусами HTTP.
package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status статус запроса ("OK" или "Error").
// Поле Error текст ошибки (опционально, при неуспехе).
// Поле Data данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

// MessageResponse ответ с текстовым сообщением для Swagger-документации.
type MessageResponse struct {
	Message string `json:"message" example:"Subscription removed"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response на основе нарушений по полям.
// Сообщения имеют вид "field <имя> <нарушение>" и объединены через запятую.
func ValidationError(verr *apperr.ValidationError) Response {
	return Response{
		Status: StatusError,
		Error:  verr.Error(),
	}
}

// Fail пишет ответ с ошибкой и заданным статусом.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// ServiceError сопоставляет ошибку сервиса со статусом HTTP и пишет ответ.
// Для непредвиденных ошибок клиент получает fallback, а подробности остаются в логе.
func ServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, fallback string) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ValidationError(verr))
	case errors.Is(err, apperr.ErrNotFound):
		log.Info("subscription not found", sl.Err(err))
		Fail(w, r, http.StatusNotFound, apperr.ErrNotFound.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		log.Warn("access denied", sl.Err(err))
		Fail(w, r, http.StatusUnauthorized, apperr.ErrUnauthorized.Error())
	default:
		log.Error(fallback, sl.Err(err))
		Fail(w, r, http.StatusInternalServerError, fallback)
	}
}
