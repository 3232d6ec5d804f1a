package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// CreateBroadcast ставит сообщение в очередь в статусе pending.
func (s *Storage) CreateBroadcast(ctx context.Context, m *models.BroadcastMessage) error {
	const op = "storage.CreateBroadcast"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	target, err := json.Marshal(m.Target)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO message_queue (id, type, target, text, parse_mode, status, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.DB.ExecContext(ctx, query,
		m.ID, string(m.Type), string(target), m.Text, m.ParseMode, string(m.Status), m.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetBroadcast возвращает сообщение по идентификатору.
func (s *Storage) GetBroadcast(ctx context.Context, id string) (*models.BroadcastMessage, error) {
	const op = "storage.GetBroadcast"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, type, target, text, parse_mode, status, stats, error, created_at, processed_at
			  FROM message_queue
			  WHERE id = $1`
	var (
		m           models.BroadcastMessage
		typ, status string
		target      []byte
		stats       []byte
		processedAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&m.ID, &typ, &target, &m.Text, &m.ParseMode,
		&status, &stats, &m.Error, &m.CreatedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.Type = models.BroadcastType(typ)
	m.Status = models.BroadcastStatus(status)
	m.ProcessedAt = nullTime(processedAt)
	if err := json.Unmarshal(target, &m.Target); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(stats) > 0 {
		m.Stats = &models.BroadcastStats{}
		if err := json.Unmarshal(stats, m.Stats); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &m, nil
}

// StartBroadcast переводит сообщение из pending в processing.
// Возвращает false, если сообщение уже взято в работу.
func (s *Storage) StartBroadcast(ctx context.Context, id string) (bool, error) {
	const op = "storage.StartBroadcast"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE message_queue SET status = $1 WHERE id = $2 AND status = $3`,
		string(models.BroadcastProcessing), id, string(models.BroadcastPending))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// FinishBroadcast сохраняет итог обработки сообщения.
func (s *Storage) FinishBroadcast(ctx context.Context, id string, status models.BroadcastStatus,
	stats *models.BroadcastStats, errText string, at time.Time) error {
	const op = "storage.FinishBroadcast"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	var raw sql.NullString
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		raw = sql.NullString{String: string(b), Valid: true}
	}
	query := `UPDATE message_queue SET status = $1, stats = $2, error = $3, processed_at = $4
			  WHERE id = $5`
	if _, err := s.DB.ExecContext(ctx, query, string(status), raw, errText, at, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteFinishedBroadcasts удаляет завершённые сообщения, созданные раньше before.
func (s *Storage) DeleteFinishedBroadcasts(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.DeleteFinishedBroadcasts"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM message_queue WHERE status IN ($1, $2) AND created_at < $3`,
		string(models.BroadcastCompleted), string(models.BroadcastFailed), before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
