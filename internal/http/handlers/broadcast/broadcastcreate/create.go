// Package broadcastcreate ставит сообщение администратора в очередь рассылки.
//
// Обработчик только сохраняет сообщение и публикует задание в брокер;
// доставка идёт асинхронно, статус читается через GET /broadcasts/{id}.
package broadcastcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/channel-paywall/internal/http/response"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
	"github.com/magabrotheeeer/channel-paywall/internal/services/broadcast"
)

// Target адресаты в теле запроса.
type Target struct {
	Filter  string  `json:"filter" validate:"omitempty,oneof=all withSubscription withoutSubscription userIds"`
	UserID  int64   `json:"userId"`
	UserIDs []int64 `json:"userIds"`
}

// Request тело запроса на рассылку.
type Request struct {
	Type      string `json:"type" validate:"required,oneof=single broadcast"`
	Message   string `json:"message" validate:"required,max=4096"`
	ParseMode string `json:"parseMode" validate:"omitempty,oneof=HTML Markdown MarkdownV2"`
	Target    Target `json:"target"`
}

// Service очередь рассылок.
type Service interface {
	Enqueue(ctx context.Context, req broadcast.Request) (*models.BroadcastMessage, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
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

	filter := models.BroadcastFilter(req.Target.Filter)
	if filter == "" && req.Type == string(models.BroadcastAll) {
		filter = models.FilterAll
	}

	m, err := h.service.Enqueue(r.Context(), broadcast.Request{
		Type: models.BroadcastType(req.Type),
		Target: models.BroadcastTarget{
			Filter:  filter,
			UserID:  req.Target.UserID,
			UserIDs: req.Target.UserIDs,
		},
		Text:      req.Message,
		ParseMode: req.ParseMode,
	})
	if errors.Is(err, broadcast.ErrInvalidTarget) {
		log.Warn("broadcast target is empty", slog.String("type", req.Type))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("target is required for this message type"))
		return
	}
	if err != nil {
		log.Error("failed to enqueue broadcast", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not enqueue message"))
		return
	}

	log.Info("broadcast enqueued", slog.String("id", m.ID))
	w.WriteHeader(http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id":     m.ID,
		"status": m.Status,
	}))
}
