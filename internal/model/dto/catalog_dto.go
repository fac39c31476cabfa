package dto

// CreateFeatureRequest 创建功能项
type CreateFeatureRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreatePlanRequest 创建套餐
type CreatePlanRequest struct {
	Name       string  `json:"name" binding:"required,max=100"`
	FeatureIDs []int64 `json:"feature_ids"`
}

// FeatureItem 功能项
type FeatureItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PlanItem 套餐及其功能项
type PlanItem struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Features []*FeatureItem `json:"features"`
}
