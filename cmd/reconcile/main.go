package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/database"
	"github.com/qs3c/subscription_server/internal/pkg/logging"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/service"
)

// 一次性巡检：列出同时拥有多条有效订阅的用户。只报告，修复需人工处理。
// 退出码：0 无违规，1 发现违规，2 运行出错。
var (
	configPath = flag.String("config", "config.yaml", "path to config file")
	timeout    = flag.Duration("timeout", 2*time.Minute, "audit timeout")
	asJSON     = flag.Bool("json", false, "print the report as JSON")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(cfg.Server.Mode)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(2)
	}

	subService := service.NewSubscriptionService(
		repository.NewSubscriptionRepository(db),
		repository.NewPlanRepository(db),
		nil, nil, logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := subService.CheckConsistency(ctx)
	if err != nil {
		logger.Error("consistency audit failed", "error", err)
		os.Exit(2)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error("failed to encode report", "error", err)
			os.Exit(2)
		}
	} else {
		printReport(report)
	}

	if report.Err() != nil {
		os.Exit(1)
	}
}

func printReport(report *service.ConsistencyReport) {
	fmt.Printf("Consistency audit at %s\n", report.CheckedAt.Format(time.RFC3339))
	if len(report.Violations) == 0 {
		fmt.Println("OK: every user has at most one active subscription")
		return
	}

	fmt.Printf("FOUND %d user(s) with more than one active subscription:\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Printf("  user_id=%d active=%d subscription_ids=%v\n", v.UserID, v.ActiveCount, v.SubscriptionIDs)
	}
}
