// Package reactivate реализует HTTP-обработчик снятия отложенной отмены
// подписки до конца оплаченного периода.
package reactivate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/homebiyori/billing-service/internal/http/middlewarectx"
	"github.com/homebiyori/billing-service/internal/http/response"
	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/services/subscription"
)

// Service описывает интерфейс бизнес-логики возобновления подписки.
type Service interface {
	Reactivate(ctx context.Context, userUID string) error
}

// Handler управляет HTTP-запросами на возобновление подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Возобновить подписку
// @Description Снимает отложенную отмену подписки у провайдера до конца оплаченного периода.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Возобновление запрошено"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Оплаченная подписка отсутствует"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /billing/reactivate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.reactivate"
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

	if err := h.service.Reactivate(r.Context(), userUID); err != nil {
		if errors.Is(err, subscription.ErrNoPaidSubscription) {
			log.Info("reactivate without paid subscription", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("no paid subscription"))
			return
		}
		log.Error("failed to reactivate subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reactivate subscription"))
		return
	}

	log.Info("subscription reactivate requested", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "reactivate_requested",
	}))
}
