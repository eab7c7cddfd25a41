//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/totegamma/greenledger/internal/infra/database"
)

// NewPostgres starts a throwaway postgres, migrates it and returns a gorm handle.
func NewPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("greenledger"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := database.NewPostgres(dsn)
	if err != nil {
		t.Fatalf("failed to connect postgres: %v", err)
	}
	if err := database.MigratePostgres(db); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	return db
}
