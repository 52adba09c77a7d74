// Package list реализует HTTP-обработчик выдачи истории чата пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/homebiyori/billing-service/internal/http/middlewarectx"
	"github.com/homebiyori/billing-service/internal/http/response"
	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/models"
)

const defaultLimit = 100

// Service описывает интерфейс бизнес-логики чата.
type Service interface {
	List(ctx context.Context, userUID string, limit, offset int) ([]*models.ChatEntry, error)
}

// Handler управляет HTTP-запросами на чтение истории чата.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить историю чата
// @Description Возвращает реплики пользователя в порядке создания с пагинацией limit/offset.
// @Tags Chat
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Список реплик"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /chat [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.list"
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

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	items, err := h.service.List(r.Context(), userUID, limit, offset)
	if err != nil {
		log.Error("failed to list chat entries", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list chat entries"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"entries": items,
		"count":   len(items),
	}))
}
