package models

// RetentionTask сообщение очереди для синхронизатора хранения.
// Публикуется webhook-сервисом после смены тарифа и обрабатывается
// воркером асинхронно. EventID нужен для идемпотентности: повторная
// доставка задачи с тем же EventID не должна сдвигать TTL второй раз.
type RetentionTask struct {
	UserUID string `json:"user_uid"`
	OldPlan Plan   `json:"old_plan"`
	NewPlan Plan   `json:"new_plan"`
	EventID string `json:"event_id"`
}
