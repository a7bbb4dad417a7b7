// Package main runs the standalone export worker (Google Sheets, S3 archive).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/config"
	"github.com/codekids/quiz-backend/internal/export"
	"github.com/codekids/quiz-backend/internal/exportlog"
	"github.com/codekids/quiz-backend/internal/realtime"
	"github.com/codekids/quiz-backend/internal/worker"
	"github.com/codekids/quiz-backend/pkg/database"
	"github.com/codekids/quiz-backend/pkg/logger"
	"github.com/codekids/quiz-backend/pkg/monitoring"
	"github.com/codekids/quiz-backend/pkg/queue"
	"github.com/codekids/quiz-backend/pkg/redis"
	"github.com/codekids/quiz-backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer log.Sync()

	monitoring.Init()

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var logs worker.LogRecorder
	if cfg.Database.Enabled() {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, log)
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		logs = exportlog.NewRepository(pool)
	}

	destinations, err := export.Setup(ctx, export.SheetsConfig{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		ClientEmail:   cfg.Sheets.ClientEmail,
		PrivateKey:    cfg.Sheets.PrivateKey,
		SheetName:     cfg.Sheets.SheetName,
	}, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ResultsBucket:        cfg.AWS.ResultsBucket,
		Endpoint:             cfg.AWS.Endpoint,
		UsePathStyle:         cfg.AWS.UsePathStyle,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, log)
	if err != nil {
		log.Fatal("export setup", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, cfg.Export.MaxAttempts, log)
	statuses := export.NewStatusStore(rdb.Client)
	// Watchers connected to any server instance receive export_status through Redis.
	events := realtime.NewRedisPubSub(rdb.Client, log)
	processor := worker.NewExportProcessor(destinations.Multi, jobQueue, statuses, logs, events, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	log.Info("worker started", zap.Int("destinations", destinations.Multi.Len()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warn("worker did not stop in time")
	}
	log.Info("worker stopped")
}
