package testdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"student-records/internal/config"
	"student-records/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

const (
	dbName     = "students"
	dbUser     = "postgres"
	dbPassword = "postgres"
)

var (
	sharedContainer *PostgresContainer
	sharedOnce      sync.Once
)

type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DB        *bun.DB
	DSN       string
	Config    config.DatabaseConfig
}

// SetupSharedPostgres starts one PostgreSQL container per test binary.
// Tests sharing it must not run in parallel.
//
// Usage:
//
//	pg := testdb.SetupSharedPostgres(t)
//	defer pg.Cleanup(t)
//	pg.EnsureSchema(t, (*student.Student)(nil))
//
//	t.Run("Case", func(t *testing.T) {
//	    testdb.CleanupTables(t, pg.DB, "school.student")
//	})
func SetupSharedPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	sharedOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase(dbName),
			postgres.WithUsername(dbUser),
			postgres.WithPassword(dbPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			),
		)
		require.NoError(t, err)

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err)

		database := db.NewWithDSN(connStr, 5*time.Second)
		require.NoError(t, database.PingContext(ctx))

		sharedContainer = &PostgresContainer{
			Container: pgContainer,
			DB:        database,
			DSN:       connStr,
			Config: config.DatabaseConfig{
				Host:           host,
				Port:           port.Int(),
				Name:           dbName,
				User:           dbUser,
				Password:       dbPassword,
				SSLMode:        "disable",
				ConnectTimeout: 5 * time.Second,
				QueryTimeout:   5 * time.Second,
				EnsureSchema:   true,
			},
		}
	})

	require.NotNil(t, sharedContainer, "shared postgres container failed to start")
	return sharedContainer
}

func (pc *PostgresContainer) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if pc.DB != nil {
		pc.DB.Close()
	}

	if pc.Container != nil {
		if err := pc.Container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}

// EnsureSchema creates the school schema and the tables for models.
func (pc *PostgresContainer) EnsureSchema(t *testing.T, models ...any) {
	t.Helper()
	require.NoError(t, db.EnsureSchema(context.Background(), pc.DB, "school", models...))
}

func CleanupTables(t *testing.T, database *bun.DB, tables ...string) {
	t.Helper()

	ctx := context.Background()

	for _, table := range tables {
		_, err := database.ExecContext(ctx, "TRUNCATE "+table+" RESTART IDENTITY CASCADE")
		require.NoError(t, err, "failed to truncate table: %s", table)
	}
}
