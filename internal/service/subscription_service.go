package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/metrics"
	"github.com/qs3c/subscription_server/internal/pkg/pubsub"
	"github.com/qs3c/subscription_server/internal/repository"
)

var (
	ErrNoActiveSubscription = errors.New("没有有效的订阅")
	ErrInvariantViolation   = errors.New("存在多条有效订阅的用户")
)

const (
	opActivate   = "activate"
	opSwitch     = "switch"
	opDeactivate = "deactivate"

	publishTimeout = 2 * time.Second
)

// SubscriptionService 订阅生命周期：开通、切换、取消
type SubscriptionService struct {
	subRepo  *repository.SubscriptionRepository
	planRepo *repository.PlanRepository
	events   pubsub.EventPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSubscriptionService events 与 m 可以为 nil
func NewSubscriptionService(
	subRepo *repository.SubscriptionRepository,
	planRepo *repository.PlanRepository,
	events pubsub.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SubscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{
		subRepo:  subRepo,
		planRepo: planRepo,
		events:   events,
		metrics:  m,
		logger:   logger,
	}
}

// Activate 订阅套餐。已有有效订阅时旧记录置为失效
func (s *SubscriptionService) Activate(ctx context.Context, userID, planID int64) (*dto.SubscriptionItem, error) {
	plan, err := s.getPlan(planID)
	if err != nil {
		s.metrics.ObserveTransition(opActivate, resultOf(err))
		return nil, err
	}

	sub, err := s.subRepo.Insert(userID, planID)
	if err != nil {
		err = translateLedgerError(err)
		s.metrics.ObserveTransition(opActivate, resultOf(err))
		return nil, err
	}
	sub.Plan = plan

	s.metrics.ObserveTransition(opActivate, "ok")
	s.logger.Info("subscription activated", "user_id", userID, "plan_id", planID, "subscription_id", sub.ID)
	s.publish(ctx, &pubsub.SubscriptionEvent{
		Type:           pubsub.EventActivated,
		UserID:         userID,
		SubscriptionID: sub.ID,
		PlanID:         planID,
		At:             sub.StartDate,
	})

	return toSubscriptionItem(sub), nil
}

// Switch 切换套餐，只能在已有有效订阅时进行
func (s *SubscriptionService) Switch(ctx context.Context, userID, planID int64) (*dto.SubscriptionItem, error) {
	if _, err := s.subRepo.FindActive(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrNoActiveSubscription
		}
		s.metrics.ObserveTransition(opSwitch, resultOf(err))
		return nil, err
	}

	plan, err := s.getPlan(planID)
	if err != nil {
		s.metrics.ObserveTransition(opSwitch, resultOf(err))
		return nil, err
	}

	// 台账在事务内再次确认有效订阅存在
	prev, next, err := s.subRepo.Switch(userID, planID)
	if err != nil {
		err = translateLedgerError(err)
		s.metrics.ObserveTransition(opSwitch, resultOf(err))
		return nil, err
	}
	next.Plan = plan

	s.metrics.ObserveTransition(opSwitch, "ok")
	s.logger.Info("subscription switched",
		"user_id", userID, "from_plan_id", prev.PlanID, "plan_id", planID, "subscription_id", next.ID)
	s.publish(ctx, &pubsub.SubscriptionEvent{
		Type:           pubsub.EventSwitched,
		UserID:         userID,
		SubscriptionID: next.ID,
		PlanID:         planID,
		PreviousPlanID: prev.PlanID,
		At:             next.StartDate,
	})

	return toSubscriptionItem(next), nil
}

// Deactivate 取消当前有效订阅，不创建新记录
func (s *SubscriptionService) Deactivate(ctx context.Context, userID int64) error {
	sub, err := s.subRepo.Deactivate(userID)
	if err != nil {
		err = translateLedgerError(err)
		s.metrics.ObserveTransition(opDeactivate, resultOf(err))
		return err
	}

	s.metrics.ObserveTransition(opDeactivate, "ok")
	s.logger.Info("subscription deactivated", "user_id", userID, "subscription_id", sub.ID)
	s.publish(ctx, &pubsub.SubscriptionEvent{
		Type:           pubsub.EventDeactivated,
		UserID:         userID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
	})

	return nil
}

// Active 返回当前有效订阅，没有时返回 nil
func (s *SubscriptionService) Active(userID int64) (*dto.SubscriptionItem, error) {
	sub, err := s.subRepo.FindActive(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toSubscriptionItem(sub), nil
}

// List 返回用户全部订阅记录，最新的在前
func (s *SubscriptionService) List(userID int64) ([]*dto.SubscriptionItem, error) {
	subs, err := s.subRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return toSubscriptionItems(subs), nil
}

// ListPage 分页返回订阅记录
func (s *SubscriptionService) ListPage(userID int64, page, pageSize int) ([]*dto.SubscriptionItem, int64, error) {
	subs, total, err := s.subRepo.ListByUserPage(userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return toSubscriptionItems(subs), total, nil
}

// ViolationDetail 一个违反单一有效订阅约束的用户
type ViolationDetail struct {
	UserID          int64   `json:"user_id"`
	ActiveCount     int64   `json:"active_count"`
	SubscriptionIDs []int64 `json:"subscription_ids"`
}

// ConsistencyReport 一致性巡检结果
type ConsistencyReport struct {
	CheckedAt  time.Time          `json:"checked_at"`
	Violations []*ViolationDetail `json:"violations"`
}

// Err 存在违规时返回包装了 ErrInvariantViolation 的错误
func (r *ConsistencyReport) Err() error {
	if len(r.Violations) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d 个用户", ErrInvariantViolation, len(r.Violations))
}

// CheckConsistency 检查是否有用户存在多条有效订阅。只报告，不自动修复
func (s *SubscriptionService) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	violations, err := s.subRepo.FindViolations()
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		CheckedAt:  time.Now(),
		Violations: make([]*ViolationDetail, 0, len(violations)),
	}

	for _, v := range violations {
		actives, err := s.subRepo.ListActiveByUser(v.UserID)
		if err != nil {
			return nil, err
		}

		detail := &ViolationDetail{UserID: v.UserID, ActiveCount: v.ActiveCount}
		for _, sub := range actives {
			detail.SubscriptionIDs = append(detail.SubscriptionIDs, sub.ID)
		}
		report.Violations = append(report.Violations, detail)

		s.logger.ErrorContext(ctx, "subscription invariant violated",
			"user_id", v.UserID,
			"active_count", v.ActiveCount,
			"subscription_ids", detail.SubscriptionIDs)
	}

	s.metrics.SetViolations(len(report.Violations))
	return report, nil
}

func (s *SubscriptionService) getPlan(planID int64) (*model.Plan, error) {
	plan, err := s.planRepo.GetByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// publish 事件发布失败只记录日志，数据库提交结果为准
func (s *SubscriptionService) publish(ctx context.Context, event *pubsub.SubscriptionEvent) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish subscription event",
			"type", event.Type, "user_id", event.UserID, "error", err)
	}
}

func translateLedgerError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNoActiveSubscription):
		return ErrNoActiveSubscription
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrUserNotFound
	default:
		return err
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoActiveSubscription), errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}
