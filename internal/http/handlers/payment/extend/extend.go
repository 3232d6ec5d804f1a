// Package extend реализует ручное продление оплаченной подписки.
package extend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/channel-paywall/internal/http/response"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Request тело запроса на продление.
type Request struct {
	Months int `json:"months" validate:"required,gt=0"`
}

// Handler обрабатывает POST /payments/{key}/extend.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service продление подписки.
type Service interface {
	Extend(ctx context.Context, key int64, months int) (time.Time, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.extend"

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

	end, err := h.service.Extend(r.Context(), key, req.Months)
	switch {
	case errors.Is(err, models.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment not found"))
		return
	case errors.Is(err, models.ErrDecisionConflict):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("payment is not active"))
		return
	case err != nil:
		log.Error("failed to extend subscription", sl.PaymentKey(key), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not extend subscription"))
		return
	}

	log.Info("subscription extended", sl.PaymentKey(key), slog.Time("subscription_end", end))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription_end": end,
	}))
}
