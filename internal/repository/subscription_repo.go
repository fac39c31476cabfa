package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/subscription_server/internal/model"
)

var ErrNoActiveSubscription = errors.New("no active subscription")

// SubscriptionRepository 订阅台账。
// 所有改变用户当前订阅状态的写操作都在事务内先锁定该用户行，同一用户的写入因此串行化，
// 不同用户之间互不阻塞。SQLite 不支持行锁，依赖其数据库级写锁达到同样效果。
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Violation 同一用户存在多条有效订阅
type Violation struct {
	UserID      int64
	ActiveCount int64
}

// Insert 将用户现有的有效订阅置为失效，并新建一条有效订阅
func (r *SubscriptionRepository) Insert(userID, planID int64) (*model.Subscription, error) {
	var sub *model.Subscription
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		if err := deactivateAll(tx, userID); err != nil {
			return err
		}

		var err error
		sub, err = create(tx, userID, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Switch 以新套餐替换当前有效订阅，返回被替换的记录和新记录。
// 没有有效订阅时返回 ErrNoActiveSubscription，不写入任何数据
func (r *SubscriptionRepository) Switch(userID, planID int64) (prev, next *model.Subscription, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		prev, err = findActive(tx, userID)
		if err != nil {
			return err
		}
		if err := deactivateAll(tx, userID); err != nil {
			return err
		}
		prev.IsActive = false

		next, err = create(tx, userID, planID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// Deactivate 将当前有效订阅置为失效并返回该记录。没有有效订阅时返回 ErrNoActiveSubscription
func (r *SubscriptionRepository) Deactivate(userID int64) (*model.Subscription, error) {
	var sub *model.Subscription
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		var err error
		sub, err = findActive(tx, userID)
		if err != nil {
			return err
		}
		if err := deactivateAll(tx, userID); err != nil {
			return err
		}
		sub.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// FindActive 返回用户当前有效订阅（含套餐与功能项），没有时返回 gorm.ErrRecordNotFound
func (r *SubscriptionRepository) FindActive(userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Preload("Plan.Features", orderByID).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_date DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser 返回用户全部订阅记录，最新的在前。
// 套餐和功能项批量预加载，查询次数与记录数无关
func (r *SubscriptionRepository) ListByUser(userID int64) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.Preload("Plan.Features", orderByID).
		Where("user_id = ?", userID).
		Order("start_date DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

// ListByUserPage 分页版本的 ListByUser
func (r *SubscriptionRepository) ListByUserPage(userID int64, page, pageSize int) ([]*model.Subscription, int64, error) {
	var subs []*model.Subscription
	var total int64

	query := r.db.Model(&model.Subscription{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.Preload("Plan.Features", orderByID).
		Where("user_id = ?", userID).
		Order("start_date DESC, id DESC").
		Offset(offset).Limit(pageSize).
		Find(&subs).Error
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// CountByUser 用户订阅记录总数
func (r *SubscriptionRepository) CountByUser(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Subscription{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// FindViolations 找出有效订阅多于一条的用户
func (r *SubscriptionRepository) FindViolations() ([]Violation, error) {
	var violations []Violation
	err := r.db.Model(&model.Subscription{}).
		Select("user_id, COUNT(*) AS active_count").
		Where("is_active = ?", true).
		Group("user_id").
		Having("COUNT(*) > ?", 1).
		Order("user_id ASC").
		Scan(&violations).Error
	return violations, err
}

// ListActiveByUser 返回用户全部有效订阅，正常情况下至多一条
func (r *SubscriptionRepository) ListActiveByUser(userID int64) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_date DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

func lockUser(tx *gorm.DB, userID int64) error {
	var user model.User
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", userID).
		First(&user).Error
}

func findActive(tx *gorm.DB, userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := tx.Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_date DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func deactivateAll(tx *gorm.DB, userID int64) error {
	return tx.Model(&model.Subscription{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}

func create(tx *gorm.DB, userID, planID int64) (*model.Subscription, error) {
	sub := &model.Subscription{
		UserID:    userID,
		PlanID:    planID,
		StartDate: time.Now(),
		IsActive:  true,
	}
	if err := tx.Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}
