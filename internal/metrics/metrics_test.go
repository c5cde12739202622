package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "ok"},
		{err: apperr.NewValidationError("name", "is required"), want: "invalid"},
		{err: fmt.Errorf("op: %w", apperr.ErrNotFound), want: "not_found"},
		{err: fmt.Errorf("op: %w", apperr.ErrUnauthorized), want: "unauthorized"},
		{err: errors.New("boom"), want: "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.err))
	}
}

func TestObserveOperation(t *testing.T) {
	before := counterValue(t, subscriptionOperations.WithLabelValues("create", "ok"))
	ObserveOperation("create", nil)
	after := counterValue(t, subscriptionOperations.WithLabelValues("create", "ok"))
	assert.Equal(t, before+1, after)
}

func TestRecordReminder(t *testing.T) {
	before := counterValue(t, remindersTotal.WithLabelValues(ReminderFailed))
	RecordReminder(ReminderFailed)
	assert.Equal(t, before+1, counterValue(t, remindersTotal.WithLabelValues(ReminderFailed)))
}

func TestHTTPMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	after := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418"))
	assert.Equal(t, before+1, after)
}
