// Package get реализует HTTP-обработчик экрана биллинга: текущая запись
// подписки вместе с результатом проверки доступа.
package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/homebiyori/billing-service/internal/http/middlewarectx"
	"github.com/homebiyori/billing-service/internal/http/response"
	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/models"
	"github.com/homebiyori/billing-service/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики подписок.
type Service interface {
	Get(ctx context.Context, userUID string) (*models.Subscription, error)
	CheckAccess(ctx context.Context, userUID string) (*models.AccessResult, error)
}

// Handler управляет HTTP-запросами на чтение записи подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// subscriptionView проекция записи подписки для ответа API:
// идентификаторы провайдера наружу не отдаются.
type subscriptionView struct {
	Plan               models.Plan   `json:"plan"`
	Status             models.Status `json:"status"`
	CurrentPeriodStart time.Time     `json:"current_period_start"`
	CurrentPeriodEnd   time.Time     `json:"current_period_end"`
	PremiumAccess      bool          `json:"premium_access"`
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить запись подписки
// @Description Возвращает запись подписки текущего пользователя и результат проверки доступа. Для пользователя без оплаченных отношений подписка отсутствует.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Запись подписки и доступ"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /billing/subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := middlewarectx.UserUIDFromContext(r.Context())
	if userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	access, err := h.service.CheckAccess(r.Context(), userUID)
	if err != nil {
		log.Error("failed to check access", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	}

	var sub *subscriptionView
	rec, err := h.service.Get(r.Context(), userUID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// Пользователь без оплаченных отношений: ответ по умолчанию.
	case err != nil:
		log.Error("failed to read subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	default:
		sub = &subscriptionView{
			Plan:               rec.Plan,
			Status:             rec.Status,
			CurrentPeriodStart: rec.CurrentPeriodStart,
			CurrentPeriodEnd:   rec.CurrentPeriodEnd,
			PremiumAccess:      rec.PremiumAccess,
		}
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
		"access":       access,
	}))
}
