package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const subscriptionColumns = `id, owner_id, name, cost, billing_frequency, category,
	start_date, renewal_date, is_active, invoice_ref`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub     models.Subscription
		invoice sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Name, &sub.Cost, &sub.BillingFrequency,
		&sub.Category, &sub.StartDate, &sub.RenewalDate, &sub.IsActive, &invoice); err != nil {
		return nil, err
	}
	if invoice.Valid {
		sub.InvoiceRef = &invoice.String
	}
	return &sub, nil
}

func nullableRef(ref *string) sql.NullString {
	if ref == nil || *ref == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *ref, Valid: true}
}

// FindByID возвращает подписку по идентификатору.
func (s *Storage) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.FindByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrap(op, err)
	}
	return sub, nil
}

// FindAllByOwner возвращает все подписки владельца в порядке создания.
func (s *Storage) FindAllByOwner(ctx context.Context, ownerID string) ([]*models.Subscription, error) {
	const op = "storage.FindAllByOwner"
	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE owner_id = $1
			  ORDER BY created_at, id`
	return s.list(ctx, op, query, ownerID)
}

// FindDueForReminder возвращает подписки всех владельцев с датой продления
// строго раньше before и заданным статусом оплаты.
func (s *Storage) FindDueForReminder(ctx context.Context, before models.Date, status models.PaymentStatus) ([]*models.Subscription, error) {
	const op = "storage.FindDueForReminder"
	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE renewal_date < $1::date
			    AND is_active = $2
			  ORDER BY renewal_date, id`
	return s.list(ctx, op, query, before.String(), string(status))
}

func (s *Storage) list(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// Insert сохраняет новую подписку. Идентификатор назначается вызывающим.
func (s *Storage) Insert(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.Insert"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (id, owner_id, name, cost, billing_frequency, category,
			      start_date, renewal_date, is_active, invoice_ref)
			  VALUES ($1, $2, $3, $4::numeric, $5, $6, $7::date, $8::date, $9, $10)`
	_, err := s.DB.ExecContext(ctx, query,
		sub.ID, sub.OwnerID, sub.Name, sub.Cost.String(), string(sub.BillingFrequency), string(sub.Category),
		sub.StartDate.String(), sub.RenewalDate.String(), string(sub.IsActive), nullableRef(sub.InvoiceRef))
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrStorage, err)
	}
	return nil
}

// Save перезаписывает изменяемые поля подписки. Владелец не меняется.
func (s *Storage) Save(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.Save"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET name = $1, cost = $2::numeric, billing_frequency = $3, category = $4,
			      start_date = $5::date, renewal_date = $6::date, is_active = $7, invoice_ref = $8
			  WHERE id = $9`
	result, err := s.DB.ExecContext(ctx, query,
		sub.Name, sub.Cost.String(), string(sub.BillingFrequency), string(sub.Category),
		sub.StartDate.String(), sub.RenewalDate.String(), string(sub.IsActive), nullableRef(sub.InvoiceRef), sub.ID)
	if err != nil {
		return wrap(op, err)
	}
	return expectOne(op, result)
}

// Delete удаляет подписку по идентификатору.
func (s *Storage) Delete(ctx context.Context, id string) error {
	const op = "storage.Delete"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return wrap(op, err)
	}
	return expectOne(op, result)
}

func expectOne(op string, result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrStorage, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return nil
}
