// Package scheduler собирает процесс планировщика напоминаний о продлении.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/rabbitmq"
	schedulerservice "github.com/magabrotheeeer/subscription-tracker/internal/services/scheduler"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	db               *repository.Storage
	ledger           *cache.Cache
	conn             *amqp.Connection
	ch               *amqp.Channel
	schedule         string
	location         *time.Location
	logger           *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	policy, err := schedulerservice.ParsePolicy(cfg.ReminderPolicy)
	if err != nil {
		return nil, err
	}
	location, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	app := &App{
		db:       db,
		conn:     conn,
		ch:       ch,
		schedule: cfg.ReminderSchedule,
		location: location,
		logger:   logger,
	}

	opts := []schedulerservice.Option{
		schedulerservice.WithHorizon(cfg.ReminderHorizonDays),
		schedulerservice.WithClock(func() time.Time { return time.Now().In(location) }),
	}
	if policy == schedulerservice.PolicyOncePerRenewal {
		ledger, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("reminder ledger not initialized: %w", err)
		}
		app.ledger = ledger
		opts = append(opts, schedulerservice.WithPolicy(policy, ledger))
	}

	app.schedulerService = schedulerservice.NewSchedulerService(db, rabbitmq.NewPublisher(ch), logger, opts...)
	return app, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

func (a *App) close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Error("failed to close reminder ledger", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	closeResources(a.ch, a.conn, a.logger)
}

// Run запускает cron и ждёт отмены ctx. При остановке дожидается
// завершения текущего прогона.
func (a *App) Run(ctx context.Context) error {
	if err := a.schedulerService.Start(ctx, a.schedule, a.location); err != nil {
		a.close()
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down scheduler service")

	<-a.schedulerService.Stop().Done()
	a.close()
	return nil
}
