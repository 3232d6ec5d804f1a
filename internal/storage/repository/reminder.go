package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// CreateReminder сохраняет напоминание и возвращает его ключ.
func (s *Storage) CreateReminder(ctx context.Context, r *models.Reminder) (int64, error) {
	const op = "storage.CreateReminder"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `INSERT INTO reminders (user_id, product_id, product_name, fire_at, created_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var key int64
	if err := s.DB.QueryRowContext(ctx, query,
		r.UserID, r.ProductID, r.ProductName, r.FireAt, r.CreatedAt).Scan(&key); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}

// ListUnsentRemindersByUser возвращает неотправленные напоминания пользователя по тарифу.
func (s *Storage) ListUnsentRemindersByUser(ctx context.Context, userID int64, productID string) ([]*models.Reminder, error) {
	const op = "storage.ListUnsentRemindersByUser"
	query := `SELECT id, user_id, product_id, product_name, fire_at, created_at, sent, sent_at
			  FROM reminders
			  WHERE user_id = $1 AND product_id = $2 AND NOT sent
			  ORDER BY fire_at`
	return s.queryReminders(ctx, op, query, userID, productID)
}

// ListDueReminders возвращает неотправленные напоминания с fire_at <= now.
func (s *Storage) ListDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	const op = "storage.ListDueReminders"
	query := `SELECT id, user_id, product_id, product_name, fire_at, created_at, sent, sent_at
			  FROM reminders
			  WHERE NOT sent AND fire_at <= $1
			  ORDER BY fire_at`
	return s.queryReminders(ctx, op, query, now)
}

func (s *Storage) queryReminders(ctx context.Context, op, query string, args ...any) ([]*models.Reminder, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Reminder
	for rows.Next() {
		var (
			r      models.Reminder
			sentAt sql.NullTime
		)
		if err := rows.Scan(&r.Key, &r.UserID, &r.ProductID, &r.ProductName,
			&r.FireAt, &r.CreatedAt, &r.Sent, &sentAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.SentAt = nullTime(sentAt)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkReminderSent помечает напоминание отправленным.
func (s *Storage) MarkReminderSent(ctx context.Context, key int64, at time.Time) error {
	const op = "storage.MarkReminderSent"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE reminders SET sent = TRUE, sent_at = $1 WHERE id = $2`, at, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
