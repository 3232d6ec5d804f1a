// Package broadcastread отдаёт статус и статистику сообщения из очереди рассылки.
package broadcastread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/channel-paywall/internal/http/response"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

type Service interface {
	Get(ctx context.Context, id string) (*models.BroadcastMessage, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	m, err := h.service.Get(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("message not found"))
		return
	}
	if err != nil {
		log.Error("failed to read broadcast", slog.String("id", id), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read message"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": m,
	}))
}
