// Package services содержит планировщик ежедневных напоминаний о продлении подписок.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// DefaultHorizonDays за сколько дней до продления начинаются напоминания.
const DefaultHorizonDays = 7

// Policy определяет, как часто напоминать об одной и той же дате продления.
type Policy string

const (
	// PolicyEveryRun напоминает при каждом запуске, пока подписка не оплачена.
	PolicyEveryRun Policy = "every_run"
	// PolicyOncePerRenewal напоминает один раз на каждую дату продления.
	PolicyOncePerRenewal Policy = "once_per_renewal"
)

// ParsePolicy проверяет название политики. Пустая строка означает PolicyEveryRun.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return PolicyEveryRun, nil
	case PolicyEveryRun, PolicyOncePerRenewal:
		return p, nil
	}
	return "", fmt.Errorf("unknown reminder policy %q", s)
}

// SubscriptionRepository отбирает подписки для напоминаний.
type SubscriptionRepository interface {
	FindDueForReminder(ctx context.Context, before models.Date, status models.PaymentStatus) ([]*models.Subscription, error)
}

// Notifier передаёт напоминание дальше по конвейеру уведомлений.
type Notifier interface {
	Send(ctx context.Context, reminder models.Reminder) error
}

// Ledger хранит отметки об отправленных напоминаниях.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// RunReport итог одного прогона.
type RunReport struct {
	Found   int
	Sent    int
	Skipped int
	Failed  int
}

// SchedulerService находит неоплаченные подписки с близким продлением
// и передаёт напоминания в Notifier.
type SchedulerService struct {
	repo     SubscriptionRepository
	notifier Notifier
	ledger   Ledger
	policy   Policy
	horizon  int
	log      *slog.Logger
	now      func() time.Time
	cron     *cron.Cron
}

// Option настраивает SchedulerService.
type Option func(*SchedulerService)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *SchedulerService) { s.now = now }
}

// WithHorizon задаёт горизонт напоминаний в днях.
func WithHorizon(days int) Option {
	return func(s *SchedulerService) {
		if days > 0 {
			s.horizon = days
		}
	}
}

// WithPolicy задаёт политику повторных напоминаний. Для PolicyOncePerRenewal
// нужен ledger.
func WithPolicy(policy Policy, ledger Ledger) Option {
	return func(s *SchedulerService) {
		s.policy = policy
		s.ledger = ledger
	}
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, notifier Notifier, log *slog.Logger, opts ...Option) *SchedulerService {
	s := &SchedulerService{
		repo:     repo,
		notifier: notifier,
		policy:   PolicyEveryRun,
		horizon:  DefaultHorizonDays,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == PolicyOncePerRenewal && s.ledger == nil {
		log.Warn("reminder ledger is not configured, falling back to every_run policy")
		s.policy = PolicyEveryRun
	}
	return s
}

// RunOnce выполняет один прогон: ошибки отдельных подписок записываются в лог
// и не прерывают обработку остальных. Ошибка возвращается только при сбое выборки.
func (s *SchedulerService) RunOnce(ctx context.Context) (RunReport, error) {
	const op = "services.Scheduler.RunOnce"
	log := s.log.With(sl.Op(op))
	started := time.Now()
	defer func() { metrics.ObserveReminderRun(time.Since(started)) }()

	var report RunReport
	// Продление в последний день горизонта тоже попадает в выборку:
	// хранилище отбирает строго раньше before.
	before := models.DateOf(s.now()).AddDays(s.horizon + 1)
	log.Info("starting renewal reminder run", slog.String("before", before.String()), slog.String("policy", string(s.policy)))

	subs, err := s.repo.FindDueForReminder(ctx, before, models.Unpaid)
	if err != nil {
		log.Error("failed to find subscriptions due for reminder", sl.Err(err))
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.Found = len(subs)
	if len(subs) == 0 {
		log.Info("no subscriptions due for reminder")
		return report, nil
	}
	log.Info("found subscriptions due for reminder", slog.Int("count", len(subs)))

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			log.Warn("reminder run interrupted", sl.Err(ctx.Err()))
			return report, fmt.Errorf("%s: %w", op, ctx.Err())
		default:
		}

		switch s.remind(ctx, log, sub) {
		case metrics.ReminderSent:
			report.Sent++
		case metrics.ReminderSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	log.Info("renewal reminder run finished",
		slog.Int("found", report.Found),
		slog.Int("sent", report.Sent),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return report, nil
}

// remind обрабатывает одну подписку и возвращает итог для метрик.
func (s *SchedulerService) remind(ctx context.Context, log *slog.Logger, sub *models.Subscription) (result string) {
	defer func() { metrics.RecordReminder(result) }()
	log = log.With(slog.String("subscription_id", sub.ID))

	key := cache.ReminderKey(sub.ID, sub.RenewalDate.String())
	if s.policy == PolicyOncePerRenewal {
		seen, err := s.ledger.Seen(ctx, key)
		if err != nil {
			log.Error("failed to check reminder ledger", sl.Err(err))
			return metrics.ReminderFailed
		}
		if seen {
			return metrics.ReminderSkipped
		}
	}

	if err := s.notifier.Send(ctx, models.NewReminder(sub)); err != nil {
		log.Error("failed to send reminder", sl.Err(err))
		return metrics.ReminderFailed
	}

	if s.policy == PolicyOncePerRenewal {
		ttl := time.Duration(s.horizon+1) * 24 * time.Hour
		if err := s.ledger.Mark(ctx, key, ttl); err != nil {
			log.Warn("failed to mark reminder as sent", sl.Err(err))
		}
	}
	return metrics.ReminderSent
}

// Start регистрирует ежедневный прогон по расписанию spec в часовом поясе loc
// и запускает cron. Каждый прогон получает контекст ctx.
func (s *SchedulerService) Start(ctx context.Context, spec string, loc *time.Location) error {
	const op = "services.Scheduler.Start"
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelInfo))
	s.cron = cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger)))

	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("renewal reminder run failed", sl.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("scheduled renewal reminder job", slog.String("schedule", spec), slog.String("timezone", loc.String()))
	s.cron.Start()
	return nil
}

// Stop останавливает cron и возвращает контекст, который завершается
// после окончания выполняемого прогона.
func (s *SchedulerService) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}
