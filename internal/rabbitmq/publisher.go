package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"

	libmq "github.com/homebiyori/billing-service/internal/lib/rabbitmq"
	"github.com/homebiyori/billing-service/internal/models"
)

// RetentionPublisher публикует задачи синхронизатора хранения
// в очередь биллинга.
type RetentionPublisher struct {
	ch *amqp.Channel
}

// NewRetentionPublisher создает новый экземпляр RetentionPublisher.
func NewRetentionPublisher(ch *amqp.Channel) *RetentionPublisher {
	return &RetentionPublisher{ch: ch}
}

// PublishRetentionTask ставит задачу ресинка хранения в очередь.
func (p *RetentionPublisher) PublishRetentionTask(task models.RetentionTask) error {
	const op = "rabbitmq.PublishRetentionTask"
	if err := libmq.PublishMessage(p.ch, libmq.BillingExchange, libmq.RetentionRoutingKey, task); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
