// Package reject реализует HTTP-обработчик отклонения оплаты администратором.
package reject

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/channel-paywall/internal/http/response"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Handler обрабатывает POST /payments/{key}/reject.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service отклонение оплаты.
type Service interface {
	Reject(ctx context.Context, key int64) (*models.Payment, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.reject"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	key, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil {
		log.Error("failed to decode key from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode key from url"))
		return
	}

	p, err := h.service.Reject(r.Context(), key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment not found"))
		return
	case errors.Is(err, models.ErrDecisionConflict):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("payment already decided"))
		return
	case err != nil:
		log.Error("failed to reject payment", sl.PaymentKey(key), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reject payment"))
		return
	}

	log.Info("payment rejected", sl.PaymentKey(key))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payment": p,
	}))
}
