package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// CreateRevocationTimer сохраняет таймер отзыва ссылки.
func (s *Storage) CreateRevocationTimer(ctx context.Context, t *models.RevocationTimer) (int64, error) {
	const op = "storage.CreateRevocationTimer"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `INSERT INTO revocation_timers (payment_id, invite_link, fire_at, created_at)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var key int64
	if err := s.DB.QueryRowContext(ctx, query,
		t.PaymentKey, t.InviteLink, t.FireAt, t.CreatedAt).Scan(&key); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}

// ListDueRevocationTimers возвращает несработавшие таймеры с fire_at <= now.
func (s *Storage) ListDueRevocationTimers(ctx context.Context, now time.Time) ([]*models.RevocationTimer, error) {
	const op = "storage.ListDueRevocationTimers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, payment_id, invite_link, fire_at, created_at, done, done_at
			  FROM revocation_timers
			  WHERE NOT done AND fire_at <= $1
			  ORDER BY fire_at`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.RevocationTimer
	for rows.Next() {
		var (
			t      models.RevocationTimer
			doneAt sql.NullTime
		)
		if err := rows.Scan(&t.Key, &t.PaymentKey, &t.InviteLink, &t.FireAt,
			&t.CreatedAt, &t.Done, &doneAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		t.DoneAt = nullTime(doneAt)
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkRevocationTimerDone помечает таймер сработавшим.
func (s *Storage) MarkRevocationTimerDone(ctx context.Context, key int64, at time.Time) error {
	const op = "storage.MarkRevocationTimerDone"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE revocation_timers SET done = TRUE, done_at = $1 WHERE id = $2`, at, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
