// Package repository реализует хранилище на PostgreSQL для записей о платежах,
// напоминаний, таймеров отзыва ссылок, пользователей бота и очереди рассылок.
//
// Переходы статусов выполняются условным UPDATE ... WHERE status = $from,
// поэтому два конкурентных решения по одной записи не применяются дважды.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'payments'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage.CheckDatabaseReady: required table payments missing")
	}
	return nil
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// setBuilder собирает SET-часть UPDATE из необязательных полей.
type setBuilder struct {
	cols []string
	args []any
}

func (b *setBuilder) add(col string, val any) {
	b.args = append(b.args, val)
	b.cols = append(b.cols, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) clause() string {
	return strings.Join(b.cols, ", ")
}

// next возвращает номер следующего плейсхолдера и добавляет значение.
func (b *setBuilder) next(val any) string {
	b.args = append(b.args, val)
	return fmt.Sprintf("$%d", len(b.args))
}
