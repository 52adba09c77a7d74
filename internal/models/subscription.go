// Package models содержит доменные структуры биллинга Homebiyori:
// запись подписки пользователя, события платёжного провайдера,
// сообщения чата с TTL и внутриигровые уведомления.
package models

import "time"

// Plan представляет тариф подписки.
type Plan string

// Возможные тарифы. Free — пользователь без оплаченной подписки.
const (
	PlanFree    Plan = "free"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// IsPaid сообщает, является ли тариф оплаченным.
func (p Plan) IsPaid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// Status представляет состояние жизненного цикла оплаченной подписки,
// зеркалируемое из платёжного провайдера.
type Status string

// Возможные статусы подписки.
const (
	StatusActive          Status = "active"
	StatusCancelScheduled Status = "cancel_scheduled"
	StatusCanceled        Status = "canceled"
	StatusPastDue         Status = "past_due"
	StatusUnpaid          Status = "unpaid"
)

// Subscription представляет запись подписки пользователя (одна на пользователя).
// StripeCustomerID и StripeSubscriptionID пусты до первого оплаченного checkout.
type Subscription struct {
	UserUID              string    `json:"user_uid"`               // Идентификатор пользователя (subject внешнего IdP)
	Plan                 Plan      `json:"plan"`                   // Текущий тариф
	Status               Status    `json:"status"`                 // Статус жизненного цикла подписки
	StripeCustomerID     string    `json:"stripe_customer_id"`     // Идентификатор покупателя у провайдера
	StripeSubscriptionID string    `json:"stripe_subscription_id"` // Идентификатор подписки у провайдера
	CurrentPeriodStart   time.Time `json:"current_period_start"`   // Начало текущего платёжного периода
	CurrentPeriodEnd     time.Time `json:"current_period_end"`     // Конец текущего платёжного периода
	PremiumAccess        bool      `json:"premium_access"`         // Кэшированный флаг доступа к премиум-функциям
	UpdatedAt            time.Time `json:"updated_at"`             // Время последней записи
}

// HasPaidRelationship сообщает, был ли у пользователя оплаченный checkout.
func (s *Subscription) HasPaidRelationship() bool {
	return s != nil && s.StripeSubscriptionID != ""
}

// AccessReason причина результата проверки доступа.
type AccessReason string

// Возможные причины результата проверки доступа к премиум-функциям.
const (
	ReasonNoSubscription      AccessReason = "no_subscription"
	ReasonActive              AccessReason = "active"
	ReasonCancelScheduled     AccessReason = "cancel_scheduled"
	ReasonSubscriptionExpired AccessReason = "subscription_expired"
	ReasonCanceled            AccessReason = "canceled"
	ReasonPastDue             AccessReason = "past_due"
	ReasonUnpaid              AccessReason = "unpaid"
)

// AccessResult результат проверки доступа к премиум-функциям.
// ExpiresAt заполняется только для статуса cancel_scheduled.
type AccessResult struct {
	HasAccess bool         `json:"has_access"`
	Reason    AccessReason `json:"reason"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}
