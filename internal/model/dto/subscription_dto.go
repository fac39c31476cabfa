package dto

import "time"

// SubscribeRequest 订阅 / 切换套餐请求
type SubscribeRequest struct {
	PlanID int64 `json:"plan_id" binding:"required,gt=0"`
}

// ListSubscriptionsRequest 订阅历史分页参数
type ListSubscriptionsRequest struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// SubscriptionItem 订阅记录（含套餐与功能项）
type SubscriptionItem struct {
	ID        int64     `json:"id"`
	StartDate time.Time `json:"start_date"`
	IsActive  bool      `json:"is_active"`
	Plan      *PlanItem `json:"plan"`
}
