package model

// Feature 套餐中包含的单项能力，创建后不再修改
type Feature struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`
}

func (Feature) TableName() string {
	return "features"
}
