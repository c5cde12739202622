// Package metrics объявляет метрики Prometheus сервисов и middleware для HTTP.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	subscriptionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_operations_total",
			Help: "Subscription lifecycle operations by result",
		},
		[]string{"op", "result"},
	)

	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewal_reminders_total",
			Help: "Renewal reminders handled by the scheduler by result",
		},
		[]string{"result"},
	)

	reminderRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renewal_reminder_run_duration_seconds",
			Help:    "Duration of a renewal reminder scan",
			Buckets: prometheus.DefBuckets,
		},
	)

	emailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_deliveries_total",
			Help: "Reminder emails by delivery result",
		},
		[]string{"result"},
	)
)

// Результаты напоминаний планировщика.
const (
	ReminderSent    = "sent"
	ReminderSkipped = "skipped"
	ReminderFailed  = "failed"
)

// Result сводит ошибку к значению метки result.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

// ObserveOperation учитывает вызов операции сервиса подписок.
func ObserveOperation(op string, err error) {
	subscriptionOperations.WithLabelValues(op, Result(err)).Inc()
}

// RecordReminder учитывает обработку одного напоминания.
func RecordReminder(result string) {
	remindersTotal.WithLabelValues(result).Inc()
}

// ObserveReminderRun учитывает длительность прогона планировщика.
func ObserveReminderRun(d time.Duration) {
	reminderRunDuration.Observe(d.Seconds())
}

// RecordEmail учитывает попытку отправки письма.
func RecordEmail(err error) {
	emailDeliveries.WithLabelValues(Result(err)).Inc()
}

// HTTPMiddleware считает запросы и их длительность по шаблону маршрута chi.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
