// Package portal реализует HTTP-обработчик получения URL сессии
// биллинг-портала платёжного провайдера.
package portal

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

// Service описывает интерфейс бизнес-логики биллинг-портала.
type Service interface {
	PortalURL(ctx context.Context, userUID, returnURL string) (string, error)
}

// Handler управляет HTTP-запросами на создание сессии биллинг-портала.
type Handler struct {
	log       *slog.Logger // Логгер для записи информации и ошибок
	service   Service
	returnURL string // URL возврата из портала в приложение
}

// New создает новый Handler с переданными логгером, сервисом и URL возврата.
func New(log *slog.Logger, service Service, returnURL string) *Handler {
	return &Handler{log: log, service: service, returnURL: returnURL}
}

// ServeHTTP godoc
// @Summary Получить URL биллинг-портала
// @Description Создает сессию биллинг-портала провайдера и возвращает её URL.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "URL сессии портала"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Оплаченная подписка отсутствует"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /billing/portal [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"
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

	url, err := h.service.PortalURL(r.Context(), userUID, h.returnURL)
	if err != nil {
		if errors.Is(err, subscription.ErrNoPaidSubscription) {
			log.Info("portal without paid subscription", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("no paid subscription"))
			return
		}
		log.Error("failed to create portal session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create portal session"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"url": url,
	}))
}
