package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// ErrUserNotFound пользователя с таким UID нет.
var ErrUserNotFound = errors.New("user not found")

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		u     models.User
		email sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `SELECT uid, email FROM users WHERE uid = $1`, userUID).
		Scan(&u.UUID, &email)
	if err != nil {
		wrapped := wrap(op, err)
		if errors.Is(wrapped, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, wrapped
	}
	u.Email = email.String
	return &u, nil
}

// UserEmail возвращает адрес почты пользователя для отправки напоминаний.
func (s *Storage) UserEmail(ctx context.Context, userUID string) (string, error) {
	u, err := s.GetUser(ctx, userUID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}
