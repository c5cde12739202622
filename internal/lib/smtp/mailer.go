package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// Message письмо в виде простого текста.
type Message struct {
	To      string
	Subject string
	Body    string
}

// BreakerSettings задаёт поведение предохранителя вокруг SMTP.
type BreakerSettings struct {
	// FailureThreshold число подряд неудачных отправок, после которого цепь размыкается.
	FailureThreshold uint32
	// Timeout сколько цепь остаётся разомкнутой.
	Timeout time.Duration
}

// Mailer отправляет письма через транспорт, защищённый предохранителем.
// Пока цепь разомкнута, отправка сразу возвращает ошибку gobreaker.ErrOpenState.
type Mailer struct {
	transport TransportInterface
	breaker   *gobreaker.CircuitBreaker[any]
	log       *slog.Logger
}

// NewMailer создаёт Mailer.
func NewMailer(transport TransportInterface, settings BreakerSettings, log *slog.Logger) *Mailer {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &Mailer{transport: transport, breaker: breaker, log: log}
}

// State возвращает текущее состояние предохранителя.
func (m *Mailer) State() gobreaker.State {
	return m.breaker.State()
}

// Send отправляет письмо.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	const op = "smtp.Send"
	_, err := m.breaker.Execute(func() (any, error) {
		return nil, m.deliver(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	from := m.transport.Sender()
	raw := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.Body,
	}, "\r\n")

	client, err := m.transport.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM %s: %w", from, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", msg.To, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := wc.Write([]byte(raw)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	if err := client.Quit(); err != nil {
		m.log.Warn("failed to quit SMTP client", sl.Err(err))
	}
	return nil
}
