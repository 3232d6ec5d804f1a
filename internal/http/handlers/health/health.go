// Package health отвечает на проверку живости сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/channel-paywall/internal/http/response"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
)

// Pinger проверяет доступность одной зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc адаптер функции к Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	log    *slog.Logger
	checks map[string]Pinger
}

// New создает Handler. Ключ checks попадает в ответ как имя зависимости.
func New(log *slog.Logger, checks map[string]Pinger) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make(map[string]string, len(names))
	var failed []string
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.log.Error("dependency is unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			statuses[name] = "unavailable"
			failed = append(failed, name)
			continue
		}
		statuses[name] = "ok"
	}

	if len(failed) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  "unavailable: " + strings.Join(failed, ", "),
			Data:   statuses,
		})
		return
	}
	render.JSON(w, r, response.StatusOKWithData(statuses))
}

