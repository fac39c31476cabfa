package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/repository"
)

var (
	ErrFeatureNotFound = errors.New("功能项不存在")
	ErrPlanNotFound    = errors.New("套餐不存在")
)

// CatalogService 套餐与功能项目录
type CatalogService struct {
	featureRepo *repository.FeatureRepository
	planRepo    *repository.PlanRepository
}

func NewCatalogService(featureRepo *repository.FeatureRepository, planRepo *repository.PlanRepository) *CatalogService {
	return &CatalogService{
		featureRepo: featureRepo,
		planRepo:    planRepo,
	}
}

func (s *CatalogService) CreateFeature(req *dto.CreateFeatureRequest) (*dto.FeatureItem, error) {
	feature := &model.Feature{Name: req.Name}
	if err := s.featureRepo.Create(feature); err != nil {
		return nil, err
	}
	return toFeatureItem(feature), nil
}

func (s *CatalogService) ListFeatures() ([]*dto.FeatureItem, error) {
	features, err := s.featureRepo.List()
	if err != nil {
		return nil, err
	}

	items := make([]*dto.FeatureItem, 0, len(features))
	for _, f := range features {
		items = append(items, toFeatureItem(f))
	}
	return items, nil
}

// CreatePlan 创建套餐，引用了不存在的功能项时返回 ErrFeatureNotFound
func (s *CatalogService) CreatePlan(req *dto.CreatePlanRequest) (*dto.PlanItem, error) {
	plan := &model.Plan{Name: req.Name}
	if err := s.planRepo.Create(plan, req.FeatureIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeatureNotFound
		}
		return nil, err
	}
	return toPlanItem(plan), nil
}

func (s *CatalogService) ListPlans() ([]*dto.PlanItem, error) {
	plans, err := s.planRepo.List()
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PlanItem, 0, len(plans))
	for _, p := range plans {
		items = append(items, toPlanItem(p))
	}
	return items, nil
}

func (s *CatalogService) GetPlan(id int64) (*dto.PlanItem, error) {
	plan, err := s.planRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return toPlanItem(plan), nil
}

// DeletePlan 删除套餐，引用它的订阅记录一并删除
func (s *CatalogService) DeletePlan(id int64) error {
	if err := s.planRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	return nil
}
