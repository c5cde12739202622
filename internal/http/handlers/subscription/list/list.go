// Package list реализует HTTP-обработчик списка подписок пользователя
// с фильтрацией и сортировкой по параметрам запроса.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/query"
)

// Handler обрабатывает запросы списка подписок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает выборку подписок владельца.
type Service interface {
	List(ctx context.Context, ownerID string, criteria query.Criteria, key query.SortKey, dir query.Direction) ([]*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список подписок
// @Description Возвращает подписки текущего пользователя. Значение "all" или отсутствие параметра отключает фильтр.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Param category query string false "Категория"
// @Param billing_frequency query string false "monthly или annually"
// @Param is_active query string false "paid или unpaid"
// @Param search query string false "Подстрока имени без учёта регистра"
// @Param start_from query string false "Дата начала не раньше, YYYY-MM-DD"
// @Param renewal_to query string false "Дата продления не позже, YYYY-MM-DD"
// @Param sort query string false "name, cost, start_date, renewal_date, category, billing_frequency, is_active"
// @Param order query string false "asc или desc"
// @Success 200 {object} response.Response{data=[]models.Subscription}
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры запроса"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"
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

	q := r.URL.Query()
	criteria, err := query.ParseCriteria(query.RawCriteria{
		Category:         q.Get("category"),
		BillingFrequency: q.Get("billing_frequency"),
		IsActive:         q.Get("is_active"),
		SearchTerm:       q.Get("search"),
		StartDateFloor:   q.Get("start_from"),
		RenewalDateCeil:  q.Get("renewal_to"),
	})
	if err != nil {
		log.Error("invalid filter", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	key, err := query.ParseSortKey(q.Get("sort"))
	if err != nil {
		log.Error("invalid sort key", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := query.ParseDirection(q.Get("order"))
	if err != nil {
		log.Error("invalid sort order", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := h.service.List(r.Context(), userUID, criteria, key, dir)
	if err != nil {
		response.ServiceError(w, r, log, err, "could not list subscriptions")
		return
	}

	log.Info("subscriptions listed", slog.Int("count", len(subs)))
	render.JSON(w, r, response.OKWithData(subs))
}
