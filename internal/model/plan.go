package model

// Plan 由若干 Feature 组成的套餐，多个套餐可以共享同一个 Feature
type Plan struct {
	ID       int64      `gorm:"primaryKey" json:"id"`
	Name     string     `gorm:"size:100;not null" json:"name"`
	Features []*Feature `gorm:"many2many:plan_features;constraint:OnDelete:CASCADE" json:"features"`
}

func (Plan) TableName() string {
	return "plans"
}
