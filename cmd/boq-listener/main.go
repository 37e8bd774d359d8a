package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"buildmart/internal/ai/gemini"
	"buildmart/internal/config"
	"buildmart/internal/listener"
	"buildmart/internal/logger"
	"buildmart/internal/pipeline"
	"buildmart/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	normalizer := pipeline.NewNormalizer(db, db, cfg.Rules, log)
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err == nil {
			normalizer = normalizer.WithAssist(gen, cfg.AIAssistThreshold)
		} else {
			log.Warn("gemini assist disabled", zap.Error(err))
		}
	}
	processor := pipeline.NewProcessingService(db, normalizer, log)

	svc := listener.NewService(db, cfg, processor, log)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
