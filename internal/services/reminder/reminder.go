// Package reminder хранит обещания напомнить пользователю об открытии продаж тарифа.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/civil"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Repository хранилище напоминаний.
type Repository interface {
	CreateReminder(ctx context.Context, r *models.Reminder) (int64, error)
	ListUnsentRemindersByUser(ctx context.Context, userID int64, productID string) ([]*models.Reminder, error)
	ListDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	MarkReminderSent(ctx context.Context, key int64, at time.Time) error
}

// Window вычисляет момент отправки напоминания.
type Window interface {
	NextReminderAt() time.Time
}

// Service управляет напоминаниями.
type Service struct {
	repo   Repository
	window Window
	clock  civil.Clock
	log    *slog.Logger
}

// New создаёт Service.
func New(repo Repository, window Window, clock civil.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, window: window, clock: clock, log: log}
}

// Schedule создаёт напоминание о тарифе на ближайший момент напоминания.
// Если у пользователя уже есть неотправленное напоминание по этому тарифу,
// возвращает models.ErrAlreadyScheduled.
func (s *Service) Schedule(ctx context.Context, userID int64, product models.Product) (*models.Reminder, error) {
	const op = "reminder.Schedule"

	existing, err := s.repo.ListUnsentRemindersByUser(ctx, userID, product.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(existing) > 0 {
		return existing[0], fmt.Errorf("%s: %w", op, models.ErrAlreadyScheduled)
	}

	r := &models.Reminder{
		UserID:      userID,
		ProductID:   product.ID,
		ProductName: product.Name,
		FireAt:      s.window.NextReminderAt(),
		CreatedAt:   s.clock.Now(),
	}
	key, err := s.repo.CreateReminder(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.Key = key
	s.log.Info("reminder scheduled", sl.UserID(userID), slog.String("product", product.ID), slog.Time("fire_at", r.FireAt))
	return r, nil
}

// Due возвращает наступившие неотправленные напоминания.
func (s *Service) Due(ctx context.Context) ([]*models.Reminder, error) {
	const op = "reminder.Due"
	reminders, err := s.repo.ListDueReminders(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reminders, nil
}

// MarkSent помечает напоминание отправленным.
func (s *Service) MarkSent(ctx context.Context, key int64) error {
	const op = "reminder.MarkSent"
	if err := s.repo.MarkReminderSent(ctx, key, s.clock.Now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
