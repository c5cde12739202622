// Package update реализует HTTP-обработчик частичного обновления подписки.
package update

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/request"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Handler обрабатывает запросы на изменение подписки.
type Handler struct {
	log            *slog.Logger
	service        Service
	maxUploadBytes int64
}

// Service описывает частичное обновление подписки.
type Service interface {
	Update(ctx context.Context, id, callerID string, patch models.SubscriptionPatch, file *models.Upload) (*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, maxUploadBytes int64) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// ServeHTTP godoc
// @Summary Обновить подписку
// @Description Изменяет переданные поля подписки. Пустые поля и нулевая стоимость оставляют прежние значения. Новый файл invoice заменяет прежний счёт.
// @Tags Subscriptions
// @Accept  json
// @Accept  mpfd
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body models.SubscriptionPatch true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 400 {object} response.ErrorResponse "Некорректное тело запроса"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован или не владелец"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch models.SubscriptionPatch
	body, err := request.Decode(w, r, h.maxUploadBytes, &patch)
	if err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, request.ErrDecode.Error())
		return
	}
	defer body.Close()

	id := chi.URLParam(r, "id")
	sub, err := h.service.Update(r.Context(), id, userUID, patch, body.Upload)
	if err != nil {
		response.ServiceError(w, r, log, err, "could not update subscription")
		return
	}

	log.Info("subscription updated", slog.String("id", id))
	render.JSON(w, r, response.OKWithData(sub))
}
