package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
)

// TestPassword 测试用户的明文密码
const TestPassword = "password123"

var (
	seq          int64
	passwordHash string
)

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

func testPasswordHash(t *testing.T) string {
	t.Helper()
	if passwordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		passwordHash = string(hash)
	}
	return passwordHash
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	email := fmt.Sprintf("test_%d@example.com", n)
	hash := testPasswordHash(t)
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", n),
		Email:        &email,
		PasswordHash: &hash,
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithAdmin 设置为管理员
func WithAdmin() func(*model.User) {
	return func(u *model.User) {
		u.IsAdmin = true
	}
}

// TestFeature 创建测试功能项
func TestFeature(t *testing.T, db *gorm.DB, name string) *model.Feature {
	t.Helper()

	feature := &model.Feature{Name: name}
	if err := db.Create(feature).Error; err != nil {
		t.Fatalf("Failed to create test feature: %v", err)
	}

	return feature
}

// TestPlan 创建测试套餐并关联功能项
func TestPlan(t *testing.T, db *gorm.DB, name string, features ...*model.Feature) *model.Plan {
	t.Helper()

	plan := &model.Plan{Name: name, Features: features}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	return plan
}

// TestSubscription 直接写入一条订阅记录（不经过生命周期逻辑）
func TestSubscription(t *testing.T, db *gorm.DB, userID, planID int64, active bool) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		UserID:    userID,
		PlanID:    planID,
		StartDate: time.Now(),
		IsActive:  active,
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}
