package model

import (
	"time"
)

// Subscription 用户与套餐的订阅记录。
// 同一用户任意时刻最多只有一条 IsActive = true 的记录；切换套餐时旧记录置为失效并新建一条，
// 历史记录永不删除。UserID、PlanID、StartDate 创建后不可变。
type Subscription struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index:idx_subscriptions_user_active,priority:1" json:"user_id"`
	PlanID    int64     `gorm:"not null;index" json:"plan_id"`
	StartDate time.Time `gorm:"not null;index" json:"start_date"`
	IsActive  bool      `gorm:"not null;index:idx_subscriptions_user_active,priority:2" json:"is_active"`

	// 关联
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Plan *Plan `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"plan,omitempty"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
