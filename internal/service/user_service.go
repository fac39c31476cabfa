package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/repository"
)

type UserService struct {
	userRepo *repository.UserRepository
	subRepo  *repository.SubscriptionRepository
}

func NewUserService(userRepo *repository.UserRepository, subRepo *repository.SubscriptionRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		subRepo:  subRepo,
	}
}

// GetProfile 获取用户详情及当前有效订阅
func (s *UserService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	info := buildUserInfo(user)

	active, err := s.subRepo.FindActive(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if active != nil {
		info.ActiveSubscription = toSubscriptionItem(active)
	}

	return info, nil
}

// IsAdmin 判断用户是否为管理员，用户不存在或已停用时返回 false
func (s *UserService) IsAdmin(userID int64) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsActive && user.IsAdmin, nil
}
