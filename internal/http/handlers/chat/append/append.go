// Package append реализует HTTP-обработчик сохранения реплики чата.
//
// Handler принимает JSON-запрос с текстом и персонажем, валидирует его,
// извлекает идентификатор пользователя из контекста и вызывает бизнес-логику.
// Выбор премиум-персонажа без доступа завершается HTTP 403.
package append

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/homebiyori/billing-service/internal/http/middlewarectx"
	"github.com/homebiyori/billing-service/internal/http/response"
	"github.com/homebiyori/billing-service/internal/lib/sl"
	"github.com/homebiyori/billing-service/internal/models"
	"github.com/homebiyori/billing-service/internal/services/chat"
)

// Service описывает интерфейс бизнес-логики чата.
type Service interface {
	Append(ctx context.Context, userUID string, entry models.DummyChatEntry) (*models.ChatEntry, error)
}

// Handler управляет HTTP-запросами на сохранение реплики чата.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики чата
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сохранить реплику чата
// @Description Сохраняет реплику пользователя с рассчитанным сроком хранения. Премиум-персонаж требует активной подписки.
// @Tags Chat
// @Accept  json
// @Produce  json
// @Param request body models.DummyChatEntry true "Текст реплики и персонаж"
// @Success 200 {object} map[string]any "Реплика сохранена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Премиум-персонаж без доступа"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /chat [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.append"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyChatEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID := middlewarectx.UserUIDFromContext(r.Context())
	if userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	entry, err := h.service.Append(r.Context(), userUID, req)
	if err != nil {
		if errors.Is(err, chat.ErrPremiumRequired) {
			log.Info("premium persona rejected", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("premium access required"))
			return
		}
		log.Error("failed to append chat entry", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not append chat entry"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"created_at": entry.CreatedAt,
		"expires_at": entry.ExpiresAt,
	}))
}
