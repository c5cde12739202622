package rabbitmq

// ExchangeName direct-обменник, через который ходят уведомления.
const ExchangeName = "notifications"

// Очередь и ключ маршрутизации напоминаний о продлении.
const (
	RenewalQueue      = "notifications.renewal"
	RenewalRoutingKey = "renewal"
)

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, объявляемые при старте.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: RenewalQueue, RoutingKey: RenewalRoutingKey},
	}
}
