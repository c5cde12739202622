// Package stats реализует HTTP-обработчик сводной статистики по подпискам.
package stats

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/query"
)

// Handler обрабатывает запросы статистики.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает расчёт статистики владельца.
type Service interface {
	Stats(ctx context.Context, ownerID string, horizonDays int) (query.Statistics, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Статистика подписок
// @Description Считает суммы по периодичности, оплате и категориям, а также подписки с близким продлением.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Param horizon_days query int false "Горизонт скорого продления в днях"
// @Success 200 {object} response.Response{data=query.Statistics}
// @Failure 400 {object} response.ErrorResponse "Некорректный горизонт"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.stats"
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

	var horizon int
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			log.Error("invalid horizon_days", slog.String("value", raw), sl.Err(err))
			response.Fail(w, r, http.StatusBadRequest, "horizon_days must be a positive integer")
			return
		}
		horizon = v
	}

	st, err := h.service.Stats(r.Context(), userUID, horizon)
	if err != nil {
		response.ServiceError(w, r, log, err, "could not calculate statistics")
		return
	}

	log.Info("statistics calculated", slog.Int("total_count", st.TotalCount))
	render.JSON(w, r, response.OKWithData(st))
}
