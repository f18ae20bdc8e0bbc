// Package dbtest opens throwaway sqlite databases migrated with every model.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
)

// New returns an isolated in-memory database. The pool is capped at one
// connection so concurrent transactions queue instead of failing with
// sqlite table locks.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:sokohub_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate models: %v", err)
	}
	return conn
}

// NewClient wraps New in a db.Client for services that need WithTx.
func NewClient(t testing.TB) *db.Client {
	t.Helper()
	return db.FromGorm(New(t))
}
