package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// MaxInFlight сколько сообщений обрабатывается одновременно.
const MaxInFlight = 10

// ErrReject сообщает потребителю, что сообщение нельзя обработать никогда
// и его нужно отклонить без возврата в очередь.
var ErrReject = errors.New("message rejected")

// Handler обрабатывает тело сообщения. Ошибка приводит к возврату сообщения
// в очередь, кроме ошибок, оборачивающих ErrReject.
type Handler func(ctx context.Context, body []byte) error

// Acknowledger подтверждение доставки, реализуется amqp.Delivery.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ConsumerMessage подписывается на очередь и обрабатывает сообщения до отмены ctx.
// Возвращает канал, который закрывается, когда все обработчики завершились.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, handler Handler) (<-chan struct{}, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		Dispatch(ctx, delivery, log, handler)
	}()
	return done, nil
}

// Dispatch раздаёт доставки обработчикам, держа не более MaxInFlight одновременно,
// и дожидается завершения начатых обработчиков.
func Dispatch(ctx context.Context, delivery <-chan amqp.Delivery, log *slog.Logger, handler Handler) {
	sem := make(chan struct{}, MaxInFlight)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				settle(d, log, ctx.Err())
				return
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				settle(d, log, handler(ctx, d.Body))
			}(d)
		case <-ctx.Done():
			return
		}
	}
}

func settle(d Acknowledger, log *slog.Logger, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrReject):
		log.Warn("message rejected", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Warn("message processing failed, requeue", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
