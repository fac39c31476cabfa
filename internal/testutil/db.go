package testutil

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs3c/subscription_server/internal/database"
)

// SetupTestDB 创建测试数据库（SQLite 内存模式）
// 内存库只存在于单个连接上，这里固定一个连接，并发事务会在连接池上排队。
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close test database: %v", err)
	}
}

// TruncateTables 清空所有表数据
func TruncateTables(t *testing.T, db *gorm.DB) {
	t.Helper()

	tables := []string{
		"subscriptions",
		"plan_features",
		"plans",
		"features",
		"users",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}
}

// CountQueries 统计 fn 执行期间发出的查询语句数量
func CountQueries(t *testing.T, db *gorm.DB, fn func()) int {
	t.Helper()

	count := 0
	name := fmt.Sprintf("testutil:count_queries:%p", &count)
	if err := db.Callback().Query().After("gorm:query").Register(name, func(*gorm.DB) {
		count++
	}); err != nil {
		t.Fatalf("Failed to register query counter: %v", err)
	}
	defer func() {
		_ = db.Callback().Query().Remove(name)
	}()

	fn()
	return count
}
