// Package sender собирает процесс отправки писем-напоминаний из очереди.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-tracker/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/subscription-tracker/internal/services/sender"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/repository"
)

// App представляет приложение отправки писем.
type App struct {
	db            *repository.Storage
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	mailer := smtp.NewMailer(transport, smtp.BreakerSettings{
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerTimeout,
	}, logger)

	return &App{
		db:            db,
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(db, mailer, logger),
		logger:        logger,
	}, nil
}

// Run потребляет очередь напоминаний до отмены ctx и дожидается
// завершения начатых обработчиков.
func (a *App) Run(ctx context.Context) error {
	done, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.RenewalQueue, a.logger, a.senderService.Handle)
	if err != nil {
		a.logger.Error("failed to start renewal queue consumer", sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("consuming renewal reminders", slog.String("queue", rabbitmq.RenewalQueue))

	err = awaitConsumer(ctx, done, a.logger)
	a.close()
	return err
}

// ErrConsumerStopped возвращается, если потребитель очереди завершился
// без отмены контекста, например после разрыва соединения с брокером.
var ErrConsumerStopped = errors.New("renewal queue consumer stopped")

// awaitConsumer ждёт отмены ctx и завершения начатых обработчиков.
// Самостоятельная остановка потребителя считается ошибкой процесса.
func awaitConsumer(ctx context.Context, done <-chan struct{}, logger *slog.Logger) error {
	select {
	case <-ctx.Done():
		logger.Info("sender service shutting down gracefully")
		<-done
		return nil
	case <-done:
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("renewal queue consumer stopped unexpectedly")
		return ErrConsumerStopped
	}
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
