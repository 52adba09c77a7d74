package rabbitmq

// Топология очередей биллинга.
const (
	// BillingExchange прямой exchange всех сообщений биллинга.
	BillingExchange = "billing"
	// RetentionQueue очередь задач синхронизатора хранения.
	RetentionQueue = "retention.resync"
	// RetentionRoutingKey ключ маршрутизации задач синхронизатора.
	RetentionRoutingKey = "resync"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает конфигурацию очередей биллинга.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: RetentionQueue, RoutingKey: RetentionRoutingKey},
	}
}
