// Package session хранит состояние диалога покупки в Redis с ограниченным временем жизни.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Cache хранилище JSON-значений с TTL.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Store хранилище сессий пользователей бота.
type Store struct {
	cache Cache
	ttl   time.Duration
}

// New создаёт Store. Каждая запись живёт ttl с момента последнего Put.
func New(cache Cache, ttl time.Duration) *Store {
	return &Store{cache: cache, ttl: ttl}
}

func key(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10)
}

// Get возвращает сессию пользователя. Если сессии нет или она истекла, ok = false.
func (s *Store) Get(ctx context.Context, userID int64) (models.Session, bool, error) {
	const op = "session.Get"
	var sess models.Session
	found, err := s.cache.Get(ctx, key(userID), &sess)
	if err != nil {
		return models.Session{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return sess, found, nil
}

// Put сохраняет сессию и продлевает её время жизни.
func (s *Store) Put(ctx context.Context, userID int64, sess models.Session) error {
	const op = "session.Put"
	if err := s.cache.Set(ctx, key(userID), sess, s.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update читает сессию, применяет fn и сохраняет результат.
// Отсутствующая сессия передаётся в fn пустой.
func (s *Store) Update(ctx context.Context, userID int64, fn func(*models.Session)) (models.Session, error) {
	sess, _, err := s.Get(ctx, userID)
	if err != nil {
		return models.Session{}, err
	}
	fn(&sess)
	if err := s.Put(ctx, userID, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// Clear удаляет сессию.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	const op = "session.Clear"
	if err := s.cache.Invalidate(ctx, key(userID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
