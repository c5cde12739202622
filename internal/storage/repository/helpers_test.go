package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-tracker/internal/migrations"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const postgresPort = nat.Port("5432/tcp")

// TestDataFactory создаёт тестовые данные напрямую в базе
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создаёт новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создаёт тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, email string) string {
	t.Helper()
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (email) VALUES ($1) RETURNING uid`, email).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// NewSubscription возвращает подписку со стандартными значениями
func NewSubscription(ownerID, name string) *models.Subscription {
	return &models.Subscription{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Name:             name,
		Cost:             decimal.RequireFromString("9.99"),
		BillingFrequency: models.Monthly,
		Category:         models.CategoryStreaming,
		StartDate:        models.NewDate(2024, time.January, 1),
		RenewalDate:      models.NewDate(2024, time.February, 1),
		IsActive:         models.Unpaid,
	}
}

// CreateSubscription сохраняет подписку через хранилище
func (f *TestDataFactory) CreateSubscription(t *testing.T, sub *models.Subscription) *models.Subscription {
	t.Helper()
	require.NoError(t, f.storage.Insert(context.Background(), sub))
	return sub
}

// CountSubscriptions возвращает количество строк с данным id
func (f *TestDataFactory) CountSubscriptions(t *testing.T, id string) int {
	t.Helper()
	var count int
	err := f.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE id = $1`, id).Scan(&count)
	require.NoError(t, err)
	return count
}

// setupTestDatabase поднимает контейнер PostgreSQL и применяет миграции
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3 * time.Minute),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, postgresPort)
	require.NoError(t, err, "failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(ctx, connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")
	t.Cleanup(func() { _ = storage.Close() })

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	return storage
}
