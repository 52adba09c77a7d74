package models

import "time"

// EventKind закрытый набор видов событий платёжного провайдера,
// которые обрабатывает биллинг. Остальные события игнорируются.
type EventKind string

// Виды обрабатываемых событий.
const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventPaymentFailed       EventKind = "invoice.payment_failed"
	EventPaymentSucceeded    EventKind = "invoice.payment_succeeded"
)

// BillingEvent нормализованное событие платёжного провайдера после проверки
// подписи и разбора полезной нагрузки. Поля заполняются по виду события:
// Plan и границы периода приходят только с событиями подписки.
type BillingEvent struct {
	ID                   string    // Идентификатор события у провайдера, используется для дедупликации
	Kind                 EventKind // Вид события
	UserUID              string    // Идентификатор пользователя из metadata события
	StripeCustomerID     string    // Идентификатор покупателя
	StripeSubscriptionID string    // Идентификатор подписки
	Plan                 Plan      // Тариф из price события (пусто, если события без тарифа)
	CancelAtPeriodEnd    bool      // Флаг отложенной отмены из customer.subscription.updated
	CurrentPeriodStart   time.Time // Начало периода из события подписки
	CurrentPeriodEnd     time.Time // Конец периода из события подписки
}
