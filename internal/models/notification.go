package models

import "time"

// NotificationType вид бизнес-события, о котором уведомляется пользователь.
type NotificationType string

// Виды уведомлений.
const (
	NotificationSubscriptionCanceled    NotificationType = "subscription_canceled"
	NotificationSubscriptionReactivated NotificationType = "subscription_reactivated"
	NotificationSubscriptionDeleted     NotificationType = "subscription_deleted"
	NotificationPaymentFailed           NotificationType = "payment_failed"
	NotificationPaymentSucceeded        NotificationType = "payment_succeeded"
)

// NotificationPriority приоритет уведомления, влияет на порядок выдачи.
type NotificationPriority string

// Приоритеты уведомлений.
const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification представляет внутриигровое уведомление пользователя.
// Записи хранятся фиксированное окно (90 дней) и удаляются внешним TTL.
type Notification struct {
	ID        string               `json:"id"`
	UserUID   string               `json:"-"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"-"`
}
