// Package stripewebhook реализует HTTP-обработчик webhook платёжного провайдера.
//
// Handler проверяет подпись Stripe-Signature, разбирает полезную нагрузку
// закрытого набора событий и передаёт нормализованное событие сервису.
// Необрабатываемые виды событий подтверждаются без обработки.
package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/homebiyori/billing-service/internal/config"
	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/models"
)

// Webhook провайдера не принимает тела больше 1 MiB.
const bodyLimit = 1024 * 1024

// Ошибки разбора checkout.session.completed: сессия без пользователя
// или тарифа не может быть привязана к записи подписки.
var (
	errMissingUserUID = errors.New("checkout session without user_uid metadata")
	errUnknownPlan    = errors.New("checkout session with unknown plan")
)

// Service описывает интерфейс обработки нормализованного события провайдера.
type Service interface {
	ProcessEvent(ctx context.Context, ev models.BillingEvent) error
}

// Handler управляет HTTP-запросами webhook платёжного провайдера.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
	priceToPlan   map[string]models.Plan
}

// New создает новый Handler с переданными логгером, сервисом и конфигурацией провайдера.
func New(log *slog.Logger, service Service, cfg config.Stripe) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: cfg.WebhookSecret,
		priceToPlan: map[string]models.Plan{
			cfg.MonthlyPriceID: models.PlanMonthly,
			cfg.YearlyPriceID:  models.PlanYearly,
		},
	}
}

// checkoutSession минимальная проекция checkout.session.completed.
type checkoutSession struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// subscriptionPayload минимальная проекция customer.subscription.*.
// Границы периода читаются и с корня, и с позиции: провайдер перенёс
// их в items в новых версиях API.
type subscriptionPayload struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// invoicePayload минимальная проекция invoice.payment_*.
type invoicePayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

// ServeHTTP godoc
// @Summary Webhook платёжного провайдера
// @Description Принимает события Stripe, проверяет подпись и применяет их к записи подписки.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Нечитаемая полезная нагрузка"
// @Failure 401 {object} response.ErrorResponse "Подпись отсутствует или неверна"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки события"
// @Router /webhook/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.stripewebhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"),
		h.webhookSecret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Error("invalid or missing webhook signature", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ev, handled, err := h.buildEvent(event.ID, string(event.Type), event.Data.Raw)
	if err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !handled {
		log.Info("ignored webhook event", slog.String("event", string(event.Type)))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.service.ProcessEvent(r.Context(), ev); err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed successfully",
		slog.String("event", string(event.Type)),
		slog.String("event_id", event.ID))
	w.WriteHeader(http.StatusOK)
}

// buildEvent нормализует полезную нагрузку провайдера в BillingEvent.
// Второй результат false означает событие вне закрытого набора.
func (h *Handler) buildEvent(id, kind string, raw json.RawMessage) (models.BillingEvent, bool, error) {
	ev := models.BillingEvent{ID: id, Kind: models.EventKind(kind)}

	switch ev.Kind {
	case models.EventCheckoutCompleted:
		var session checkoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return ev, false, err
		}
		ev.UserUID = session.Metadata["user_uid"]
		ev.StripeCustomerID = session.Customer
		ev.StripeSubscriptionID = session.Subscription
		ev.Plan = models.Plan(session.Metadata["plan"])
		if ev.UserUID == "" {
			return ev, false, errMissingUserUID
		}
		if !ev.Plan.IsPaid() {
			return ev, false, errUnknownPlan
		}
		return ev, true, nil

	case models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		var sub subscriptionPayload
		if err := json.Unmarshal(raw, &sub); err != nil {
			return ev, false, err
		}
		ev.StripeCustomerID = sub.Customer
		ev.StripeSubscriptionID = sub.ID
		ev.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		start, end := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
		if len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			if start == 0 {
				start = item.CurrentPeriodStart
			}
			if end == 0 {
				end = item.CurrentPeriodEnd
			}
			ev.Plan = h.priceToPlan[item.Price.ID]
		}
		if start != 0 {
			ev.CurrentPeriodStart = time.Unix(start, 0).UTC()
		}
		if end != 0 {
			ev.CurrentPeriodEnd = time.Unix(end, 0).UTC()
		}
		return ev, true, nil

	case models.EventPaymentFailed, models.EventPaymentSucceeded:
		var inv invoicePayload
		if err := json.Unmarshal(raw, &inv); err != nil {
			return ev, false, err
		}
		ev.StripeCustomerID = inv.Customer
		return ev, true, nil

	default:
		return ev, false, nil
	}
}
