// Package broadcast ставит сообщения администратора в очередь и доставляет их пользователям бота.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/civil"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/metrics"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// RoutingKey ключ маршрутизации заданий рассылки.
const RoutingKey = "send"

// ErrInvalidTarget адресаты не заданы для выбранного типа сообщения.
var ErrInvalidTarget = errors.New("invalid broadcast target")

// Store хранилище очереди сообщений и источник получателей.
type Store interface {
	CreateBroadcast(ctx context.Context, m *models.BroadcastMessage) error
	GetBroadcast(ctx context.Context, id string) (*models.BroadcastMessage, error)
	StartBroadcast(ctx context.Context, id string) (bool, error)
	FinishBroadcast(ctx context.Context, id string, status models.BroadcastStatus,
		stats *models.BroadcastStats, errText string, at time.Time) error
	DeleteFinishedBroadcasts(ctx context.Context, before time.Time) (int64, error)
	ListBotUsers(ctx context.Context) ([]*models.BotUser, error)
	ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error)
}

// Publisher отправляет задание в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Sender доставляет текст пользователю.
type Sender interface {
	SendFormatted(ctx context.Context, userID int64, text, parseMode string) error
}

// Request сообщение, которое администратор ставит в очередь.
type Request struct {
	Type      models.BroadcastType
	Target    models.BroadcastTarget
	Text      string
	ParseMode string
}

// Service очередь рассылок.
type Service struct {
	store     Store
	publisher Publisher
	sender    Sender
	clock     civil.Clock
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

// New создаёт Service.
func New(store Store, publisher Publisher, sender Sender, clock civil.Clock, cfg config.Broadcast, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		sender:    sender,
		clock:     clock,
		interval:  cfg.SendInterval,
		retention: cfg.Retention,
		log:       log,
	}
}

// Enqueue сохраняет сообщение в статусе pending и публикует его идентификатор.
func (s *Service) Enqueue(ctx context.Context, req Request) (*models.BroadcastMessage, error) {
	const op = "broadcast.Enqueue"

	if err := validateTarget(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := &models.BroadcastMessage{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Target:    req.Target,
		Text:      req.Text,
		ParseMode: req.ParseMode,
		Status:    models.BroadcastPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateBroadcast(ctx, m); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.publisher.Publish(RoutingKey, models.BroadcastJob{ID: m.ID}); err != nil {
		if ferr := s.store.FinishBroadcast(ctx, m.ID, models.BroadcastFailed, nil, err.Error(), s.clock.Now()); ferr != nil {
			s.log.Error("failed to mark unpublished broadcast", slog.String("id", m.ID), sl.Err(ferr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("broadcast enqueued", slog.String("id", m.ID), slog.String("type", string(m.Type)))
	return m, nil
}

func validateTarget(req Request) error {
	switch req.Type {
	case models.BroadcastSingle:
		if req.Target.UserID == 0 {
			return ErrInvalidTarget
		}
	case models.BroadcastAll:
		if req.Target.Filter == models.FilterUserIDs && len(req.Target.UserIDs) == 0 {
			return ErrInvalidTarget
		}
	}
	return nil
}

// Get возвращает сообщение со статусом и статистикой.
func (s *Service) Get(ctx context.Context, id string) (*models.BroadcastMessage, error) {
	const op = "broadcast.Get"
	m, err := s.store.GetBroadcast(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// Handle обрабатывает тело задания из очереди.
// Нечитаемые задания подтверждаются, чтобы не возвращаться в очередь бесконечно.
func (s *Service) Handle(ctx context.Context, body []byte) error {
	var job models.BroadcastJob
	if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
		s.log.Error("dropping malformed broadcast job", slog.String("body", string(body)), sl.Err(err))
		return nil
	}
	return s.Process(ctx, job.ID)
}

// Process доставляет одно сообщение из очереди.
func (s *Service) Process(ctx context.Context, id string) error {
	const op = "broadcast.Process"
	log := s.log.With(slog.String("op", op), slog.String("id", id))

	m, err := s.store.GetBroadcast(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("broadcast not found, dropping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	started, err := s.store.StartBroadcast(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !started {
		log.Info("broadcast already taken", slog.String("status", string(m.Status)))
		return nil
	}

	var (
		stats  *models.BroadcastStats
		status = models.BroadcastCompleted
		errMsg string
	)
	switch m.Type {
	case models.BroadcastSingle:
		stats = &models.BroadcastStats{Total: 1}
		if err := s.sender.SendFormatted(ctx, m.Target.UserID, m.Text, m.ParseMode); err != nil {
			stats.Failed = 1
			stats.Errors = append(stats.Errors, models.BroadcastError{UserID: m.Target.UserID, Error: err.Error()})
			status, errMsg = models.BroadcastFailed, err.Error()
			metrics.BroadcastMessages.WithLabelValues(metrics.ResultFailed).Inc()
		} else {
			stats.Sent = 1
			metrics.BroadcastMessages.WithLabelValues(metrics.ResultOK).Inc()
		}
	case models.BroadcastAll:
		recipients, err := s.recipients(ctx, m.Target)
		if err != nil {
			status, errMsg = models.BroadcastFailed, err.Error()
			break
		}
		stats, err = s.deliver(ctx, m, recipients)
		if err != nil {
			status, errMsg = models.BroadcastFailed, err.Error()
		}
	default:
		status = models.BroadcastFailed
		errMsg = fmt.Sprintf("%s: %q", models.ErrUnknownBroadcastType, m.Type)
	}

	// Итог сохраняется и после отмены контекста, иначе запись застрянет в processing.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.store.FinishBroadcast(finishCtx, id, status, stats, errMsg, s.clock.Now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("broadcast finished", slog.String("status", string(status)), slog.Any("stats", stats))
	return nil
}

type recipient struct {
	userID   int64
	username string
}

func (s *Service) recipients(ctx context.Context, target models.BroadcastTarget) ([]recipient, error) {
	users, err := s.store.ListBotUsers(ctx)
	if err != nil {
		return nil, err
	}

	filter := target.Filter
	if filter == "" {
		filter = models.FilterAll
	}

	var subscribed map[int64]bool
	if filter == models.FilterWithSubscription || filter == models.FilterWithoutSubscription {
		subscribed, err = s.subscribedUsers(ctx)
		if err != nil {
			return nil, err
		}
	}

	var result []recipient
	switch filter {
	case models.FilterAll:
		for _, u := range users {
			result = append(result, recipient{userID: u.UserID, username: u.Handle()})
		}
	case models.FilterWithSubscription, models.FilterWithoutSubscription:
		want := filter == models.FilterWithSubscription
		for _, u := range users {
			if subscribed[u.UserID] == want {
				result = append(result, recipient{userID: u.UserID, username: u.Handle()})
			}
		}
	case models.FilterUserIDs:
		names := make(map[int64]string, len(users))
		for _, u := range users {
			names[u.UserID] = u.Handle()
		}
		seen := make(map[int64]bool, len(target.UserIDs))
		for _, id := range target.UserIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			result = append(result, recipient{userID: id, username: names[id]})
		}
	default:
		return nil, fmt.Errorf("%w: filter %q", ErrInvalidTarget, filter)
	}
	return result, nil
}

func (s *Service) subscribedUsers(ctx context.Context) (map[int64]bool, error) {
	payments, err := s.store.ListPaymentsByStatus(ctx, models.StatusPayed)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	result := make(map[int64]bool)
	for _, p := range payments {
		if p.SubscriptionEnd != nil && p.SubscriptionEnd.After(now) {
			result[p.UserID] = true
		}
	}
	return result, nil
}

func (s *Service) deliver(ctx context.Context, m *models.BroadcastMessage, recipients []recipient) (*models.BroadcastStats, error) {
	stats := &models.BroadcastStats{Total: len(recipients)}
	limiter := rate.NewLimiter(rate.Every(s.interval), 1)

	for _, r := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			return stats, err
		}
		if err := s.sender.SendFormatted(ctx, r.userID, m.Text, m.ParseMode); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, models.BroadcastError{
				UserID:   r.userID,
				Username: r.username,
				Error:    err.Error(),
			})
			metrics.BroadcastMessages.WithLabelValues(metrics.ResultFailed).Inc()
			s.log.Warn("broadcast delivery failed", slog.String("id", m.ID), sl.UserID(r.userID), sl.Err(err))
			continue
		}
		stats.Sent++
		metrics.BroadcastMessages.WithLabelValues(metrics.ResultOK).Inc()
	}
	return stats, nil
}

// Cleanup удаляет завершённые сообщения старше срока хранения.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	const op = "broadcast.Cleanup"
	n, err := s.store.DeleteFinishedBroadcasts(ctx, s.clock.Now().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
