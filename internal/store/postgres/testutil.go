package pgstore

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB starts a disposable postgres container with all migrations applied.
// The test is skipped in -short mode or when no container runtime is available.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("tracker_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	var db *gorm.DB
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < 10; attempt++ {
		if db, err = Open(dsn, gormlogger.Silent); err == nil {
			err = ping(ctx, db)
		}
		if err == nil {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := Migrate(db, MigrationsDir()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// TruncateTables clears all rows between subtests sharing one container.
func TruncateTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec("TRUNCATE transactions, activity_snapshots, address_cursors RESTART IDENTITY").Error; err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// MigrationsDir locates migrations/schema relative to this source file.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", "schema")
}
