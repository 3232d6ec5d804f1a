// Package reissue реализует повторный выпуск пригласительной ссылки
// для оплаченной записи, которой ссылка не досталась.
package reissue

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
	"github.com/magabrotheeeer/channel-paywall/internal/services/invite"
)

// Handler обрабатывает POST /payments/{key}/invite.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service повторный выпуск ссылки.
type Service interface {
	ReissueInvite(ctx context.Context, key int64) (string, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.reissue"

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

	link, err := h.service.ReissueInvite(r.Context(), key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment not found"))
		return
	case errors.Is(err, models.ErrDecisionConflict):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("payment has no active subscription or already has a link"))
		return
	case errors.Is(err, models.ErrInviteIssue):
		log.Error("failed to issue invite link", sl.PaymentKey(key), sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error(invite.Diagnose(err)))
		return
	case err != nil:
		log.Error("failed to reissue invite link", sl.PaymentKey(key), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reissue invite link"))
		return
	}

	log.Info("invite link reissued", sl.PaymentKey(key))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"invite_link": link,
	}))
}
