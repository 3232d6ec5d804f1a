// Package approve реализует HTTP-обработчик подтверждения оплаты администратором.
//
// Повторное подтверждение уже решённой записи возвращает 409. Если решение
// записано, но ссылка в канал не выпущена, возвращается 502 с диагностикой,
// а запись остаётся оплаченной. Если продление подтверждено, но месяцы не
// начислены, ответ 500 называет запись и срок для POST /payments/{key}/extend.
package approve

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/magabrotheeeer/channel-paywall/internal/services/subscription"
)

// Handler обрабатывает POST /payments/{key}/approve.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service подтверждение оплаты.
type Service interface {
	Approve(ctx context.Context, key int64) (*subscription.ApprovalResult, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.approve"

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

	res, err := h.service.Approve(r.Context(), key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Warn("payment not found", sl.PaymentKey(key))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment not found"))
		return
	case errors.Is(err, models.ErrDecisionConflict):
		log.Warn("payment already decided", sl.PaymentKey(key))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("payment already decided"))
		return
	case errors.Is(err, models.ErrInviteIssue):
		log.Error("payment approved but invite link was not issued", sl.PaymentKey(key), sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error(invite.Diagnose(err)))
		return
	case errors.Is(err, models.ErrRenewalNotCredited):
		log.Error("renewal approved but not credited", sl.PaymentKey(key), sl.Err(err))
		msg := "renewal approved but subscription was not extended"
		var renewalErr *subscription.RenewalError
		if errors.As(err, &renewalErr) {
			msg = fmt.Sprintf("%s: extend payment %d by %d months via POST /api/v1/payments/%d/extend",
				msg, renewalErr.ActiveKey, renewalErr.Months, renewalErr.ActiveKey)
		}
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(msg))
		return
	case err != nil:
		log.Error("failed to approve payment", sl.PaymentKey(key), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not approve payment"))
		return
	}

	data := map[string]any{
		"kind":    res.Kind.String(),
		"payment": res.Payment,
	}
	if res.Extended != nil {
		data["extended"] = res.Extended
	}

	log.Info("payment approved", sl.PaymentKey(key), slog.String("kind", res.Kind.String()))
	render.JSON(w, r, response.StatusOKWithData(data))
}
