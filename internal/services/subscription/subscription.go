// Package services содержит бизнес-логику жизненного цикла подписок:
// создание, чтение, частичное обновление, смену статуса оплаты и удаление
// с проверкой владельца, а также списки и статистику поверх пакета query.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/query"
)

// SubscriptionRepository определяет методы хранилища подписок.
type SubscriptionRepository interface {
	// FindByID возвращает подписку или ошибку, оборачивающую apperr.ErrNotFound.
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
	// FindAllByOwner возвращает все подписки владельца.
	FindAllByOwner(ctx context.Context, ownerID string) ([]*models.Subscription, error)
	// Insert сохраняет новую подписку.
	Insert(ctx context.Context, sub *models.Subscription) error
	// Save перезаписывает изменяемые поля подписки.
	Save(ctx context.Context, sub *models.Subscription) error
	// Delete удаляет подписку.
	Delete(ctx context.Context, id string) error
}

// Cache описывает методы для кеширования подписок.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// FileStore хранит файлы счетов.
type FileStore interface {
	Store(ctx context.Context, filename string, content io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// SubscriptionService реализует операции над подписками пользователя.
type SubscriptionService struct {
	repo     SubscriptionRepository
	cache    Cache
	files    FileStore
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	horizon  int
}

// Option настраивает SubscriptionService.
type Option func(*SubscriptionService)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *SubscriptionService) { s.now = now }
}

// WithExpiringHorizon задаёт горизонт "скоро продление" для статистики по умолчанию.
func WithExpiringHorizon(days int) Option {
	return func(s *SubscriptionService) { s.horizon = days }
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
// cache может быть nil, тогда чтение идёт напрямую в хранилище.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, files FileStore, log *slog.Logger, opts ...Option) *SubscriptionService {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &SubscriptionService{
		repo:     repo,
		cache:    cache,
		files:    files,
		log:      log,
		validate: validate,
		now:      time.Now,
		horizon:  query.DefaultExpiringHorizon,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create проверяет данные, сохраняет файл счёта, если он передан, и создаёт
// подписку от имени ownerID. Владелец никогда не берётся из входных данных.
func (s *SubscriptionService) Create(ctx context.Context, ownerID string, req models.SubscriptionInput, file *models.Upload) (sub *models.Subscription, err error) {
	const op = "services.Subscription.Create"
	log := s.log.With(sl.Op(op))
	defer func() { metrics.ObserveOperation("create", err) }()

	if ownerID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}

	sub, err = s.fromInput(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = uuid.NewString()
	sub.OwnerID = ownerID

	if file != nil {
		ref, err := s.storeFile(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.InvoiceRef = &ref
	}

	if err := s.repo.Insert(ctx, sub); err != nil {
		if sub.HasInvoice() {
			s.removeFile(ctx, log, *sub.InvoiceRef)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("created new subscription", slog.String("id", sub.ID))
	s.cacheSet(ctx, log, sub)
	return sub, nil
}

// GetByID возвращает подписку, если callerID является её владельцем.
func (s *SubscriptionService) GetByID(ctx context.Context, id, callerID string) (sub *models.Subscription, err error) {
	const op = "services.Subscription.GetByID"
	log := s.log.With(sl.Op(op))
	defer func() { metrics.ObserveOperation("get", err) }()

	sub = s.cacheGet(ctx, log, id)
	if sub == nil {
		sub, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.cacheSet(ctx, log, sub)
	}

	if sub.OwnerID != callerID {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	sub.NormalizeDates()
	return sub, nil
}

// ListForOwner возвращает все подписки владельца без гарантии порядка.
func (s *SubscriptionService) ListForOwner(ctx context.Context, ownerID string) ([]*models.Subscription, error) {
	const op = "services.Subscription.ListForOwner"

	subs, err := s.repo.FindAllByOwner(ctx, ownerID)
	metrics.ObserveOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, sub := range subs {
		sub.NormalizeDates()
	}
	return subs, nil
}

// List возвращает подписки владельца, отобранные по criteria и упорядоченные по key.
func (s *SubscriptionService) List(ctx context.Context, ownerID string, criteria query.Criteria, key query.SortKey, dir query.Direction) ([]*models.Subscription, error) {
	subs, err := s.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return query.Sort(query.Filter(subs, criteria), key, dir), nil
}

// Stats возвращает сводку по подпискам владельца на текущий момент.
// Неположительный horizonDays заменяется горизонтом из настроек сервиса.
func (s *SubscriptionService) Stats(ctx context.Context, ownerID string, horizonDays int) (query.Statistics, error) {
	subs, err := s.ListForOwner(ctx, ownerID)
	if err != nil {
		return query.Statistics{}, err
	}
	if horizonDays <= 0 {
		horizonDays = s.horizon
	}
	return query.Aggregate(subs, s.now(), horizonDays), nil
}

// Update частично обновляет подписку: непустые поля patch перезаписывают значения,
// пустые и нулевые оставляют прежние. Новый файл заменяет прежний счёт,
// прежний файл удаляется без влияния на результат.
func (s *SubscriptionService) Update(ctx context.Context, id, callerID string, patch models.SubscriptionPatch, file *models.Upload) (sub *models.Subscription, err error) {
	const op = "services.Subscription.Update"
	log := s.log.With(sl.Op(op))
	defer func() { metrics.ObserveOperation("update", err) }()

	sub, err = s.loadOwned(ctx, id, callerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := applyPatch(sub, patch); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var previous string
	if file != nil {
		ref, err := s.storeFile(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if sub.HasInvoice() {
			previous = *sub.InvoiceRef
		}
		sub.InvoiceRef = &ref
	}

	if err := s.repo.Save(ctx, sub); err != nil {
		if file != nil {
			s.removeFile(ctx, log, *sub.InvoiceRef)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if previous != "" {
		s.removeFile(ctx, log, previous)
	}

	log.Info("updated subscription", slog.String("id", sub.ID))
	s.cacheSet(ctx, log, sub)
	return sub, nil
}

// ToggleStatus меняет статус оплаты на противоположный.
func (s *SubscriptionService) ToggleStatus(ctx context.Context, id, callerID string) (sub *models.Subscription, err error) {
	const op = "services.Subscription.ToggleStatus"
	log := s.log.With(sl.Op(op))
	defer func() { metrics.ObserveOperation("toggle_status", err) }()

	sub, err = s.loadOwned(ctx, id, callerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.IsActive = sub.IsActive.Toggle()

	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("toggled payment status", slog.String("id", sub.ID), slog.String("is_active", string(sub.IsActive)))
	s.cacheSet(ctx, log, sub)
	return sub, nil
}

// Delete удаляет подписку и затем файл счёта. Ошибка удаления файла
// записывается в лог и не отменяет удаление записи.
func (s *SubscriptionService) Delete(ctx context.Context, id, callerID string) (err error) {
	const op = "services.Subscription.Delete"
	log := s.log.With(sl.Op(op))
	defer func() { metrics.ObserveOperation("delete", err) }()

	sub, err := s.loadOwned(ctx, id, callerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.SubscriptionKey(id)); err != nil {
			log.Warn("failed to remove from cache", slog.String("id", id), sl.Err(err))
		}
	}
	if sub.HasInvoice() {
		s.removeFile(ctx, log, *sub.InvoiceRef)
	}

	log.Info("deleted subscription", slog.String("id", id))
	return nil
}

// loadOwned читает подписку из хранилища, минуя кеш, и проверяет владельца.
func (s *SubscriptionService) loadOwned(ctx context.Context, id, callerID string) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.OwnerID != callerID {
		return nil, apperr.ErrUnauthorized
	}
	sub.NormalizeDates()
	return sub, nil
}

func (s *SubscriptionService) storeFile(ctx context.Context, file *models.Upload) (string, error) {
	if s.files == nil {
		return "", fmt.Errorf("%w: file storage is not configured", apperr.ErrStorage)
	}
	ref, err := s.files.Store(ctx, file.Filename, file.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	return ref, nil
}

func (s *SubscriptionService) removeFile(ctx context.Context, log *slog.Logger, ref string) {
	if s.files == nil {
		return
	}
	if err := s.files.Remove(ctx, ref); err != nil {
		log.Warn("failed to remove invoice file", slog.String("ref", ref), sl.Err(err))
	}
}

func (s *SubscriptionService) cacheGet(ctx context.Context, log *slog.Logger, id string) *models.Subscription {
	if s.cache == nil {
		return nil
	}
	var sub models.Subscription
	found, err := s.cache.Get(ctx, cache.SubscriptionKey(id), &sub)
	if err != nil {
		log.Warn("failed to read from cache", slog.String("id", id), sl.Err(err))
		return nil
	}
	if !found {
		return nil
	}
	return &sub
}

func (s *SubscriptionService) cacheSet(ctx context.Context, log *slog.Logger, sub *models.Subscription) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.SubscriptionKey(sub.ID), sub, cache.SubscriptionTTL); err != nil {
		log.Warn("failed to cache subscription", slog.String("id", sub.ID), sl.Err(err))
	}
}

// fromInput проверяет входные данные и собирает из них подписку без id и владельца.
func (s *SubscriptionService) fromInput(req models.SubscriptionInput) (*models.Subscription, error) {
	verr := &apperr.ValidationError{}

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), "is a required field")
		}
	}

	sub := &models.Subscription{Name: strings.TrimSpace(req.Name)}
	if req.Name != "" && sub.Name == "" {
		verr.Add("name", "must not be blank")
	}
	if req.Cost != nil {
		checkCost(verr, *req.Cost)
		sub.Cost = *req.Cost
	}
	parseField(verr, "billing_frequency", req.BillingFrequency, models.ParseBillingFrequency, &sub.BillingFrequency)
	parseField(verr, "category", req.Category, models.ParseCategory, &sub.Category)
	parseField(verr, "is_active", req.IsActive, models.ParsePaymentStatus, &sub.IsActive)
	parseField(verr, "start_date", req.StartDate, models.ParseDate, &sub.StartDate)
	parseField(verr, "renewal_date", req.RenewalDate, models.ParseDate, &sub.RenewalDate)

	if !verr.Empty() {
		return nil, verr
	}
	return sub, nil
}

// applyPatch переносит в sub только заполненные поля patch.
// При любой ошибке sub остаётся неизменной.
func applyPatch(sub *models.Subscription, patch models.SubscriptionPatch) error {
	verr := &apperr.ValidationError{}
	next := *sub

	if name := strings.TrimSpace(patch.Name); name != "" {
		next.Name = name
	}
	if patch.Cost != nil && !patch.Cost.IsZero() {
		checkCost(verr, *patch.Cost)
		next.Cost = *patch.Cost
	}
	parseField(verr, "billing_frequency", patch.BillingFrequency, models.ParseBillingFrequency, &next.BillingFrequency)
	parseField(verr, "category", patch.Category, models.ParseCategory, &next.Category)
	parseField(verr, "is_active", patch.IsActive, models.ParsePaymentStatus, &next.IsActive)
	parseField(verr, "start_date", patch.StartDate, models.ParseDate, &next.StartDate)
	parseField(verr, "renewal_date", patch.RenewalDate, models.ParseDate, &next.RenewalDate)

	if !verr.Empty() {
		return verr
	}
	*sub = next
	return nil
}

// Ограничения колонки cost NUMERIC(12, 2).
const (
	costScale  = 2
	costDigits = 12
)

var maxCost = decimal.New(1, costDigits-costScale)

// checkCost отклоняет стоимость, которую хранилище не сохранит без изменений.
func checkCost(verr *apperr.ValidationError, cost decimal.Decimal) {
	switch {
	case cost.IsNegative():
		verr.Add("cost", "must not be negative")
	case !cost.Equal(cost.Round(costScale)):
		verr.Add("cost", "must have at most 2 decimal places")
	case cost.GreaterThanOrEqual(maxCost):
		verr.Add("cost", "must be less than "+maxCost.String())
	}
}

// parseField разбирает непустое значение raw в dst. Пустое значение пропускается:
// его отсутствие при создании уже отмечено валидатором.
func parseField[T any](verr *apperr.ValidationError, field, raw string, parse func(string) (T, error), dst *T) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	v, err := parse(raw)
	if err != nil {
		verr.Add(field, err.Error())
		return
	}
	*dst = v
}
