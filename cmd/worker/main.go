package main

import (
	"log"
	"time"

	"hookbin/internal/engine/hooks"
	"hookbin/internal/pkg/logger"
	"hookbin/internal/platform/config"
	"hookbin/internal/platform/database"
	"hookbin/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	webhookRepo := hooks.NewWebhookRepository(db)

	log.Printf("Retention worker started, purging every %v", cfg.Retention.Interval)

	ticker := time.NewTicker(cfg.Retention.Interval)
	defer ticker.Stop()

	// One pass at startup, then on the interval.
	if err := workers.PurgeExpiredWebhooks(webhookRepo, cfg.Retention); err != nil {
		log.Printf("Retention purge failed: %v", err)
	}
	for range ticker.C {
		if err := workers.PurgeExpiredWebhooks(webhookRepo, cfg.Retention); err != nil {
			log.Printf("Retention purge failed: %v", err)
		}
	}
}
