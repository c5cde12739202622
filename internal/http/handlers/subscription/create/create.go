// Package create реализует HTTP-обработчик для создания новых подписок пользователя.
//
// Handler принимает JSON или multipart-форму с данными подписки и необязательным
// файлом счёта, берёт идентификатор пользователя из контекста и возвращает
// созданную подписку.
package create

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/request"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Handler управляет HTTP-запросами на создание новых подписок.
type Handler struct {
	log            *slog.Logger
	service        Service
	maxUploadBytes int64
}

// Service описывает интерфейс бизнес-логики создания подписки.
type Service interface {
	Create(ctx context.Context, ownerID string, req models.SubscriptionInput, file *models.Upload) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service, maxUploadBytes int64) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// ServeHTTP godoc
// @Summary Создать новую подписку
// @Description Создает подписку для текущего пользователя. Принимает JSON или multipart/form-data с файлом в поле invoice.
// @Tags Subscriptions
// @Accept  json
// @Accept  mpfd
// @Produce  json
// @Security BearerAuth
// @Param request body models.SubscriptionInput true "Данные новой подписки"
// @Success 201 {object} response.Response{data=models.Subscription} "Созданная подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело запроса"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании подписки"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
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

	var req models.SubscriptionInput
	body, err := request.Decode(w, r, h.maxUploadBytes, &req)
	if err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, request.ErrDecode.Error())
		return
	}
	defer body.Close()
	log.Info("request body decoded", slog.Bool("with_invoice", body.Upload != nil))

	sub, err := h.service.Create(r.Context(), userUID, req, body.Upload)
	if err != nil {
		response.ServiceError(w, r, log, err, "could not create subscription")
		return
	}

	log.Info("subscription created", slog.String("id", sub.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(sub))
}
