// Package testutil provides a migrated sqlite database and fixtures for
// package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/malwarebo/condopay/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private shared-cache in-memory database for t and applies
// the schema. A single connection keeps transactions serialized the way a
// row lock would on postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	gormDB, err := gorm.Open(sqlite.Open(dsn), db.GormConfig("error"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.CreateSchemaMigrator(gormDB).Up(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormDB
}
