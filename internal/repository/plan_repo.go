package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create 创建套餐并关联功能项。featureIDs 中任何一个不存在都返回 gorm.ErrRecordNotFound，不写入任何数据
func (r *PlanRepository) Create(plan *model.Plan, featureIDs []int64) error {
	ids := uniqueIDs(featureIDs)

	return r.db.Transaction(func(tx *gorm.DB) error {
		var features []*model.Feature
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Order("id ASC").Find(&features).Error; err != nil {
				return err
			}
			if len(features) != len(ids) {
				return gorm.ErrRecordNotFound
			}
		}

		plan.Features = features
		return tx.Create(plan).Error
	})
}

func (r *PlanRepository) GetByID(id int64) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.Preload("Features", orderByID).Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) Exists(id int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.Plan{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List 返回全部套餐及其功能项，共两次查询
func (r *PlanRepository) List() ([]*model.Plan, error) {
	var plans []*model.Plan
	err := r.db.Preload("Features", orderByID).Order("id ASC").Find(&plans).Error
	return plans, err
}

// Delete 删除套餐。功能项关联在同一事务内解除，引用该套餐的订阅记录由外键级联删除
func (r *PlanRepository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		plan := model.Plan{ID: id}
		if err := tx.First(&plan).Error; err != nil {
			return err
		}
		if err := tx.Model(&plan).Association("Features").Clear(); err != nil {
			return err
		}
		return tx.Delete(&plan).Error
	})
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
