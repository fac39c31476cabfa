package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qs3c/subscription_server/internal/service"
)

const auditTimeout = 2 * time.Minute

// Auditor 执行一次订阅一致性巡检
type Auditor interface {
	CheckConsistency(ctx context.Context) (*service.ConsistencyReport, error)
}

// Service 定时巡检「每个用户最多一条有效订阅」约束，只报告不修复
type Service struct {
	auditor  Auditor
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(auditor Auditor, interval time.Duration, logger *slog.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auditor:  auditor,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务，启动时先执行一次
func (s *Service) Start() {
	s.wg.Add(1)
	go s.runAudit()
	s.logger.Info("cron service started", "audit_interval", s.interval)
}

// Stop 停止定时任务并等待进行中的巡检结束，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("cron service stopped")
	})
}

// RunNow 立即执行一次巡检
func (s *Service) RunNow(ctx context.Context) (*service.ConsistencyReport, error) {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()

	report, err := s.auditor.CheckConsistency(ctx)
	if err != nil {
		s.logger.Error("consistency audit failed", "error", err)
		return nil, err
	}
	if len(report.Violations) == 0 {
		s.logger.Debug("consistency audit passed")
	}
	return report, nil
}

func (s *Service) runAudit() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.RunNow(ctx)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunNow(ctx)
		}
	}
}
