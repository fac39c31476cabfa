package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
)

type FeatureRepository struct {
	db *gorm.DB
}

func NewFeatureRepository(db *gorm.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

func (r *FeatureRepository) Create(feature *model.Feature) error {
	return r.db.Create(feature).Error
}

func (r *FeatureRepository) List() ([]*model.Feature, error) {
	var features []*model.Feature
	err := r.db.Order("id ASC").Find(&features).Error
	return features, err
}

// GetByIDs 按 ID 批量查询，不存在的 ID 不会出现在结果中
func (r *FeatureRepository) GetByIDs(ids []int64) ([]*model.Feature, error) {
	var features []*model.Feature
	if len(ids) == 0 {
		return features, nil
	}
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&features).Error
	return features, err
}
