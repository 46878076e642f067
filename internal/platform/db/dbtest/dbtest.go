// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/membership/internal/platform/db"
)

// New returns a fresh sqlite database with every service table migrated.
// A single connection keeps the in-memory database alive for the test's lifetime.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(zap.NewNop().Sugar(), conn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}
