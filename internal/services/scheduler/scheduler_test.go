package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindDueForReminder(ctx context.Context, before models.Date, status models.PaymentStatus) ([]*models.Subscription, error) {
	args := m.Called(ctx, before, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, reminder models.Reminder) error {
	return m.Called(ctx, reminder).Error(0)
}

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dueSub(id string, renewal models.Date) *models.Subscription {
	return &models.Subscription{
		ID:               id,
		OwnerID:          "owner-" + id,
		Name:             "Service " + id,
		Cost:             decimal.NewFromInt(10),
		BillingFrequency: models.Monthly,
		Category:         models.CategorySoftware,
		StartDate:        models.NewDate(2024, time.January, 1),
		RenewalDate:      renewal,
		IsActive:         models.Unpaid,
	}
}

func forReminder(id string) any {
	return mock.MatchedBy(func(r models.Reminder) bool { return r.SubscriptionID == id })
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyEveryRun, p)

	p, err = ParsePolicy("once_per_renewal")
	require.NoError(t, err)
	assert.Equal(t, PolicyOncePerRenewal, p)

	_, err = ParsePolicy("hourly")
	assert.Error(t, err)
}

func TestRunOnce_SelectsUnpaidWithinHorizon(t *testing.T) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger(), WithClock(func() time.Time { return now }))

	sub := dueSub("s1", models.DateOf(now).AddDays(2))
	repo.On("FindDueForReminder", mock.Anything, models.NewDate(2025, time.March, 18), models.Unpaid).
		Return([]*models.Subscription{sub}, nil).Once()
	notifier.On("Send", mock.Anything, models.Reminder{
		UserID:         "owner-s1",
		SubscriptionID: "s1",
		Name:           "Service s1",
		RenewalDate:    models.NewDate(2025, time.March, 12),
		Message:        `Your subscription "Service s1" is about to renew on 2025-03-12.`,
	}).Return(nil).Once()

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunReport{Found: 1, Sent: 1}, report)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

// dueRepo отбирает подписки так же, как хранилище: дата продления строго раньше before.
type dueRepo struct {
	subs []*models.Subscription
}

func (r *dueRepo) FindDueForReminder(_ context.Context, before models.Date, status models.PaymentStatus) ([]*models.Subscription, error) {
	var out []*models.Subscription
	for _, sub := range r.subs {
		if sub.RenewalDate.Before(before) && sub.IsActive == status {
			out = append(out, sub)
		}
	}
	return out, nil
}

func TestRunOnce_HorizonBoundary(t *testing.T) {
	today := models.DateOf(now)
	tests := []struct {
		name     string
		renewal  models.Date
		selected bool
	}{
		{name: "overdue", renewal: today.AddDays(-1), selected: true},
		{name: "today", renewal: today, selected: true},
		{name: "last day of horizon", renewal: today.AddDays(DefaultHorizonDays), selected: true},
		{name: "day after horizon", renewal: today.AddDays(DefaultHorizonDays + 1), selected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &dueRepo{subs: []*models.Subscription{dueSub("s1", tt.renewal)}}
			notifier := new(MockNotifier)
			if tt.selected {
				notifier.On("Send", mock.Anything, forReminder("s1")).Return(nil).Once()
			}
			svc := NewSchedulerService(repo, notifier, testLogger(), WithClock(func() time.Time { return now }))

			report, err := svc.RunOnce(context.Background())
			require.NoError(t, err)
			if tt.selected {
				assert.Equal(t, RunReport{Found: 1, Sent: 1}, report)
			} else {
				assert.Equal(t, RunReport{}, report)
			}
			notifier.AssertExpectations(t)
		})
	}
}

func TestRunOnce_FailureDoesNotStopOthers(t *testing.T) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger(),
		WithClock(func() time.Time { return now }), WithHorizon(3))

	today := models.DateOf(now)
	subs := []*models.Subscription{
		dueSub("a", today.AddDays(1)),
		dueSub("b", today),
		dueSub("c", today.AddDays(2)),
	}
	repo.On("FindDueForReminder", mock.Anything, today.AddDays(4), models.Unpaid).Return(subs, nil)
	notifier.On("Send", mock.Anything, forReminder("a")).Return(nil).Once()
	notifier.On("Send", mock.Anything, forReminder("b")).Return(errors.New("broker unavailable")).Once()
	notifier.On("Send", mock.Anything, forReminder("c")).Return(nil).Once()

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunReport{Found: 3, Sent: 2, Failed: 1}, report)
	notifier.AssertExpectations(t)
}

func TestRunOnce_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger())

	repo.On("FindDueForReminder", mock.Anything, mock.Anything, models.Unpaid).Return(nil, errors.New("db down"))

	_, err := svc.RunOnce(context.Background())
	assert.Error(t, err)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunOnce_NothingDue(t *testing.T) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger())
	repo.On("FindDueForReminder", mock.Anything, mock.Anything, models.Unpaid).Return([]*models.Subscription{}, nil)

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunReport{}, report)
}

func TestRunOnce_CancelledContext(t *testing.T) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger(), WithClock(func() time.Time { return now }))
	repo.On("FindDueForReminder", mock.Anything, mock.Anything, models.Unpaid).
		Return([]*models.Subscription{dueSub("a", models.DateOf(now))}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.RunOnce(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, report.Found)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunOnce_EveryRunRepeats(t *testing.T) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger(), WithClock(func() time.Time { return now }))

	repo.On("FindDueForReminder", mock.Anything, mock.Anything, models.Unpaid).
		Return([]*models.Subscription{dueSub("a", models.DateOf(now).AddDays(1))}, nil)
	notifier.On("Send", mock.Anything, forReminder("a")).Return(nil)

	for i := 0; i < 2; i++ {
		report, err := svc.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Sent)
	}
	notifier.AssertNumberOfCalls(t, "Send", 2)
}

func TestRunOnce_OncePerRenewalUsesLedger(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	ledger, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	repo := new(MockRepository)
	notifier := new(MockNotifier)
	svc := NewSchedulerService(repo, notifier, testLogger(),
		WithClock(func() time.Time { return now }),
		WithPolicy(PolicyOncePerRenewal, ledger))

	a := dueSub("a", models.DateOf(now).AddDays(1))
	b := dueSub("b", models.DateOf(now).AddDays(2))
	repo.On("FindDueForReminder", mock.Anything, mock.Anything, models.Unpaid).
		Return([]*models.Subscription{a, b}, nil)
	notifier.On("Send", mock.Anything, forReminder("a")).Return(nil)
	notifier.On("Send", mock.Anything, forReminder("b")).Return(errors.New("broker unavailable")).Once()

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunReport{Found: 2, Sent: 1, Failed: 1}, report)

	key := cache.ReminderKey("a", a.RenewalDate.String())
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 8*24*time.Hour, mr.TTL(key))
	assert.False(t, mr.Exists(cache.ReminderKey("b", b.RenewalDate.String())), "failed hand-off is not recorded")

	notifier.On("Send", mock.Anything, forReminder("b")).Return(nil).Once()
	report, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunReport{Found: 2, Sent: 1, Skipped: 1}, report)
	notifier.AssertNumberOfCalls(t, "Send", 3)
}

func TestNewSchedulerService_OncePerRenewalWithoutLedger(t *testing.T) {
	svc := NewSchedulerService(new(MockRepository), new(MockNotifier), testLogger(), WithPolicy(PolicyOncePerRenewal, nil))
	assert.Equal(t, PolicyEveryRun, svc.policy)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	svc := NewSchedulerService(new(MockRepository), new(MockNotifier), testLogger())
	err := svc.Start(context.Background(), "not a cron spec", time.UTC)
	assert.Error(t, err)
}

func TestStartAndStop(t *testing.T) {
	svc := NewSchedulerService(new(MockRepository), new(MockNotifier), testLogger())
	require.NoError(t, svc.Start(context.Background(), "0 9 * * *", time.UTC))

	select {
	case <-svc.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
