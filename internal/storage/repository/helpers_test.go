package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/channel-paywall/internal/migrations"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// TestDataFactory создаёт тестовые данные напрямую через SQL.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создаёт новую фабрику тестовых данных.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreatePayment создаёт запись о платеже в статусе status.
func (f *TestDataFactory) CreatePayment(t *testing.T, publicID string, userID int64, status models.PaymentStatus,
	createdAt time.Time, subscriptionEnd *time.Time) int64 {
	t.Helper()
	var key int64
	err := f.storage.DB.QueryRow(`INSERT INTO payments
		(public_id, product_id, product_name, months, price, currency_code, method_id, user_id, username,
		 status, created_at, updated_at, expires_at, subscription_end)
		VALUES ($1, 'club', 'Клуб', 1, 1000, '₽', 'card', $2, 'tester', $3, $4, $4, $5, $6)
		RETURNING id`,
		publicID, userID, string(status), createdAt, createdAt.Add(models.DecisionWindow), subscriptionEnd).Scan(&key)
	require.NoError(t, err)
	return key
}

// CreateBotUser создаёт пользователя бота.
func (f *TestDataFactory) CreateBotUser(t *testing.T, userID int64, username string) {
	t.Helper()
	now := time.Now()
	_, err := f.storage.DB.Exec(`INSERT INTO bot_users
		(user_id, username, last_interaction, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $3)`, userID, username, now)
	require.NoError(t, err)
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
