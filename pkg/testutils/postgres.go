// Package testutils starts throwaway infrastructure for integration tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	pgUser     = "bba_user"
	pgPassword = "bba_password"
	pgDatabase = "bba_orders"
)

// StartPostgres runs postgres:16-alpine, applies migrations and returns a connected DB.
// The container is terminated when the test finishes.
func StartPostgres(t *testing.T) *database.DB {
	t.Helper()
	dsn := StartPostgresDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := zap.NewNop()
	if err := database.RunMigrations(logger, dsn); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	db, closer, err := database.New(ctx, logger, database.Config{PrimaryDSN: dsn, MaxConns: 8, MinConns: 1})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(closer)
	return db
}

// StartPostgresDSN runs an empty postgres container and returns its DSN without the protocol prefix.
func StartPostgresDSN(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres test container: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = pgC.Terminate(ctx)
	})

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	// The app expects a DSN without protocol and adds it internally.
	return strings.TrimPrefix(fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgUser, pgPassword, host, port.Port(), pgDatabase), "postgres://")
}
