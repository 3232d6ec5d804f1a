package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// UpsertBotUser сохраняет пользователя или обновляет его профиль и время последнего обращения.
func (s *Storage) UpsertBotUser(ctx context.Context, u *models.BotUser) error {
	const op = "storage.UpsertBotUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO bot_users (user_id, username, first_name, last_name, language_code,
			      last_interaction, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (user_id) DO UPDATE SET
			      username = EXCLUDED.username,
			      first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name,
			      language_code = EXCLUDED.language_code,
			      last_interaction = EXCLUDED.last_interaction,
			      updated_at = EXCLUDED.updated_at`
	if _, err := s.DB.ExecContext(ctx, query,
		u.UserID, u.Username, u.FirstName, u.LastName, u.LanguageCode,
		u.LastInteraction, u.CreatedAt, u.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetBotUser возвращает пользователя по Telegram ID.
func (s *Storage) GetBotUser(ctx context.Context, userID int64) (*models.BotUser, error) {
	const op = "storage.GetBotUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT user_id, username, first_name, last_name, language_code,
			      last_interaction, created_at, updated_at
			  FROM bot_users
			  WHERE user_id = $1`
	u, err := scanBotUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListBotUsers возвращает всех известных пользователей бота.
func (s *Storage) ListBotUsers(ctx context.Context) ([]*models.BotUser, error) {
	const op = "storage.ListBotUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT user_id, username, first_name, last_name, language_code,
			      last_interaction, created_at, updated_at
			  FROM bot_users
			  ORDER BY user_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.BotUser
	for rows.Next() {
		u, err := scanBotUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanBotUser(row rowScanner) (*models.BotUser, error) {
	var u models.BotUser
	if err := row.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode,
		&u.LastInteraction, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
