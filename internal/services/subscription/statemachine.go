// Package subscription реализует машину состояний подписки и проверку
// доступа к премиум-функциям. Переходы — чистая функция от (запись, событие):
// повторное применение того же события из того же состояния даёт тот же
// результат, что требуется при доставке webhook как минимум один раз.
package subscription

import (
	"time"

	"github.com/homebiyori/billing-service/internal/models"
)

// NotificationSpec описывает уведомление, которое нужно создать после перехода.
type NotificationSpec struct {
	Type     models.NotificationType
	Priority models.NotificationPriority
}

// Outcome результат применения события к записи подписки.
// Changed=false означает no-op: запись не перезаписывается,
// уведомление не создаётся.
type Outcome struct {
	Record       models.Subscription
	Changed      bool
	PlanChanged  bool
	OldPlan      models.Plan
	Notification *NotificationSpec
}

// Apply применяет событие платёжного провайдера к текущей записи подписки.
// current == nil означает отсутствие записи (пользователь на free без
// оплаченных отношений); в этом случае создать запись может только
// checkout.session.completed, остальные события — no-op.
func Apply(current *models.Subscription, ev models.BillingEvent, now time.Time) Outcome {
	switch ev.Kind {
	case models.EventCheckoutCompleted:
		return applyCheckout(current, ev, now)
	case models.EventSubscriptionUpdated:
		return applySubscriptionUpdated(current, ev, now)
	case models.EventSubscriptionDeleted:
		return applySubscriptionDeleted(current, ev, now)
	case models.EventPaymentFailed:
		return applyPaymentFailed(current, ev, now)
	case models.EventPaymentSucceeded:
		return applyPaymentSucceeded(current, ev, now)
	default:
		return noop(current)
	}
}

func applyCheckout(current *models.Subscription, ev models.BillingEvent, now time.Time) Outcome {
	oldPlan := models.PlanFree
	if current != nil {
		oldPlan = current.Plan
	}
	// Повторная доставка завершённого checkout: запись уже активна
	// с той же подпиской, менять нечего.
	if current != nil && current.Status == models.StatusActive &&
		current.StripeSubscriptionID == ev.StripeSubscriptionID {
		return noop(current)
	}

	rec := models.Subscription{
		UserUID:              ev.UserUID,
		Plan:                 ev.Plan,
		Status:               models.StatusActive,
		StripeCustomerID:     ev.StripeCustomerID,
		StripeSubscriptionID: ev.StripeSubscriptionID,
		CurrentPeriodStart:   ev.CurrentPeriodStart,
		CurrentPeriodEnd:     ev.CurrentPeriodEnd,
		UpdatedAt:            now,
	}
	if current != nil && rec.UserUID == "" {
		rec.UserUID = current.UserUID
	}
	finalize(&rec, now)
	return Outcome{
		Record:      rec,
		Changed:     true,
		PlanChanged: rec.Plan != oldPlan,
		OldPlan:     oldPlan,
	}
}

func applySubscriptionUpdated(current *models.Subscription, ev models.BillingEvent, now time.Time) Outcome {
	if current == nil {
		return noop(current)
	}

	rec := *current
	rec.CurrentPeriodStart = pickTime(ev.CurrentPeriodStart, rec.CurrentPeriodStart)
	rec.CurrentPeriodEnd = pickTime(ev.CurrentPeriodEnd, rec.CurrentPeriodEnd)
	if ev.Plan != "" {
		rec.Plan = ev.Plan
	}

	var spec *NotificationSpec
	if ev.CancelAtPeriodEnd {
		// Провайдер шлёт это событие сразу при запросе отмены, а не в конце
		// периода: доступ сохраняется, но пользователь уведомляется сразу.
		if current.Status == models.StatusActive {
			rec.Status = models.StatusCancelScheduled
			spec = &NotificationSpec{
				Type:     models.NotificationSubscriptionCanceled,
				Priority: models.PriorityNormal,
			}
		}
	} else {
		if current.Status == models.StatusCancelScheduled {
			rec.Status = models.StatusActive
			spec = &NotificationSpec{
				Type:     models.NotificationSubscriptionReactivated,
				Priority: models.PriorityNormal,
			}
		}
	}

	return diff(current, rec, spec, now)
}

func applySubscriptionDeleted(current *models.Subscription, _ models.BillingEvent, now time.Time) Outcome {
	if current == nil {
		return noop(current)
	}

	rec := *current
	rec.Status = models.StatusCanceled
	rec.Plan = models.PlanFree

	var spec *NotificationSpec
	if current.Status != models.StatusCanceled {
		spec = &NotificationSpec{
			Type:     models.NotificationSubscriptionDeleted,
			Priority: models.PriorityNormal,
		}
	}
	return diff(current, rec, spec, now)
}

func applyPaymentFailed(current *models.Subscription, _ models.BillingEvent, now time.Time) Outcome {
	if current == nil || current.Status == models.StatusPastDue {
		return noop(current)
	}

	rec := *current
	rec.Status = models.StatusPastDue
	spec := &NotificationSpec{
		Type:     models.NotificationPaymentFailed,
		Priority: models.PriorityHigh,
	}
	return diff(current, rec, spec, now)
}

func applyPaymentSucceeded(current *models.Subscription, _ models.BillingEvent, now time.Time) Outcome {
	// Интересен только выход из past_due; успешный платёж на активной
	// подписке — обычное продление, состояние не меняет.
	if current == nil || current.Status != models.StatusPastDue {
		return noop(current)
	}

	rec := *current
	rec.Status = models.StatusActive
	spec := &NotificationSpec{
		Type:     models.NotificationPaymentSucceeded,
		Priority: models.PriorityNormal,
	}
	return diff(current, rec, spec, now)
}

// PremiumAccessFor вычисляет флаг премиум-доступа из статуса и текущего
// времени. Инвариант записи: premium_access истинен только для active
// либо cancel_scheduled до конца оплаченного периода.
func PremiumAccessFor(status models.Status, periodEnd time.Time, now time.Time) bool {
	switch status {
	case models.StatusActive:
		return true
	case models.StatusCancelScheduled:
		return !now.After(periodEnd)
	default:
		return false
	}
}

func finalize(rec *models.Subscription, now time.Time) {
	rec.PremiumAccess = PremiumAccessFor(rec.Status, rec.CurrentPeriodEnd, now)
}

func diff(current *models.Subscription, rec models.Subscription, spec *NotificationSpec, now time.Time) Outcome {
	finalize(&rec, now)
	changed := rec.Status != current.Status ||
		rec.Plan != current.Plan ||
		rec.PremiumAccess != current.PremiumAccess ||
		!rec.CurrentPeriodStart.Equal(current.CurrentPeriodStart) ||
		!rec.CurrentPeriodEnd.Equal(current.CurrentPeriodEnd)
	if !changed {
		return noop(current)
	}
	rec.UpdatedAt = now
	return Outcome{
		Record:       rec,
		Changed:      true,
		PlanChanged:  rec.Plan != current.Plan,
		OldPlan:      current.Plan,
		Notification: spec,
	}
}

func noop(current *models.Subscription) Outcome {
	if current == nil {
		return Outcome{}
	}
	return Outcome{Record: *current}
}

func pickTime(v, fallback time.Time) time.Time {
	if v.IsZero() {
		return fallback
	}
	return v
}
