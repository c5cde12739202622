// Package services содержит обработчик очереди напоминаний, который
// превращает напоминание о продлении в письмо владельцу подписки.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/repository"
)

// ReminderSubject тема письма-напоминания.
const ReminderSubject = "Subscription Renewal Reminder"

// UserDirectory возвращает адрес почты пользователя.
type UserDirectory interface {
	UserEmail(ctx context.Context, userUID string) (string, error)
}

// Mailer отправляет письмо.
type Mailer interface {
	Send(ctx context.Context, msg smtp.Message) error
}

// SenderService обрабатывает сообщения из очереди напоминаний.
type SenderService struct {
	users  UserDirectory
	mailer Mailer
	log    *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(users UserDirectory, mailer Mailer, log *slog.Logger) *SenderService {
	return &SenderService{
		users:  users,
		mailer: mailer,
		log:    log,
	}
}

// Handle обрабатывает тело сообщения. Возвращаемая ошибка определяет судьбу
// сообщения: nil подтверждает его, ошибка с rabbitmq.ErrReject отбрасывает,
// любая другая возвращает в очередь.
func (s *SenderService) Handle(ctx context.Context, body []byte) error {
	const op = "services.Sender.Handle"
	log := s.log.With(sl.Op(op))

	var reminder models.Reminder
	if err := json.Unmarshal(body, &reminder); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrReject, err)
	}
	log = log.With(slog.String("subscription_id", reminder.SubscriptionID), slog.String("user_id", reminder.UserID))

	email, err := s.users.UserEmail(ctx, reminder.UserID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		log.Warn("reminder recipient not found, dropping message")
		return nil
	case err != nil:
		log.Error("failed to look up recipient", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	case email == "":
		log.Warn("reminder recipient has no email, dropping message")
		return nil
	}

	err = s.mailer.Send(ctx, smtp.Message{
		To:      email,
		Subject: ReminderSubject,
		Body:    reminder.Message,
	})
	metrics.RecordEmail(err)
	if err != nil {
		log.Error("failed to send reminder email", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrDelivery, err)
	}

	log.Info("reminder email sent")
	return nil
}
