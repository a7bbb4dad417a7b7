// Package main runs the quiz HTTP server with WebSocket push, the export worker and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/config"
	"github.com/codekids/quiz-backend/internal/auth"
	"github.com/codekids/quiz-backend/internal/export"
	"github.com/codekids/quiz-backend/internal/exportlog"
	"github.com/codekids/quiz-backend/internal/middleware"
	"github.com/codekids/quiz-backend/internal/models"
	"github.com/codekids/quiz-backend/internal/questions"
	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/internal/realtime"
	"github.com/codekids/quiz-backend/internal/sessions"
	"github.com/codekids/quiz-backend/internal/timerconfig"
	"github.com/codekids/quiz-backend/internal/worker"
	"github.com/codekids/quiz-backend/pkg/database"
	"github.com/codekids/quiz-backend/pkg/logger"
	"github.com/codekids/quiz-backend/pkg/monitoring"
	"github.com/codekids/quiz-backend/pkg/queue"
	"github.com/codekids/quiz-backend/pkg/redis"
	"github.com/codekids/quiz-backend/pkg/response"
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

	bank, err := quiz.DefaultBank()
	if err != nil {
		log.Fatal("question bank", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// PostgreSQL is optional: without it the timer config lives in a JSON file and the export log is off.
	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		pool, err = database.NewPostgresPool(ctx, cfg.Database.URL, log)
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	// Timer config
	var timerRepo timerconfig.Repository = timerconfig.NewFileRepository(cfg.Timer.ConfigPath)
	if pool != nil {
		timerRepo = timerconfig.NewPgRepository(pool)
	}
	timerSvc := timerconfig.NewService(timerRepo, log)
	timerHandler := timerconfig.NewHandler(timerSvc)

	// Realtime
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, log)
	hub := realtime.NewHub(log, redisPubSub, redisPubSub)

	// Export pipeline
	sheetsCfg := export.SheetsConfig{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		ClientEmail:   cfg.Sheets.ClientEmail,
		PrivateKey:    cfg.Sheets.PrivateKey,
		SheetName:     cfg.Sheets.SheetName,
	}
	destinations, err := export.Setup(ctx, sheetsCfg, s3Config(cfg.AWS), log)
	if err != nil {
		log.Fatal("export setup", zap.Error(err))
	}
	jobQueue := queue.NewQueue(rdb.Client, cfg.Export.MaxAttempts, log)
	statuses := export.NewStatusStore(rdb.Client)
	dispatcher := export.NewQueueDispatcher(jobQueue, statuses, log)

	// Sessions
	manager := sessions.NewManager(bank, sessions.Options{
		Store:      sessions.NewRedisStore(rdb.Client, cfg.Export.SessionTTL),
		Publisher:  hub,
		Dispatcher: dispatcher,
		Durations:  timerSvc,
		IdleTTL:    cfg.Export.SessionTTL,
	}, log)
	sessionHandler := sessions.NewHandler(manager, statuses, log)
	questionHandler := questions.NewHandler(bank)

	// Admin
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	adminAuth, err := auth.NewAdminAuth(cfg.Admin.Password, jwtService)
	if err != nil {
		log.Fatal("admin auth", zap.Error(err))
	}
	authHandler := auth.NewHandler(adminAuth, log)

	var checker export.Checker
	if destinations.Sheets != nil {
		checker = destinations.Sheets
	}
	exportHandler := export.NewHandler(sheetsCfg, checker)

	var exportLogRepo *exportlog.Repository
	var exportLogHandler *exportlog.Handler
	if pool != nil {
		exportLogRepo = exportlog.NewRepository(pool)
		var linker exportlog.ArchiveLinker
		if destinations.Archive != nil {
			linker = destinations.Archive
		}
		exportLogHandler = exportlog.NewHandler(exportLogRepo, linker)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	go manager.RunEviction(rootCtx, time.Minute)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log, "/health", "/metrics"))
	router.Use(monitoring.MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/ws", realtime.ServeWs(hub, sessionHandler.StateFor, log))

	api := router.Group("/api")
	{
		api.GET("/questions", questionHandler.List)
		api.GET("/questions/:id", questionHandler.GetByID)
		api.GET("/timer-config", timerHandler.Public)

		s := api.Group("/sessions")
		s.POST("", sessionHandler.Create)
		s.GET("/:id", sessionHandler.Get)
		s.PUT("/:id/participant", sessionHandler.SetParticipant)
		s.POST("/:id/start", sessionHandler.Start)
		s.POST("/:id/timer", sessionHandler.StartTimer)
		s.PUT("/:id/answers/:questionId", sessionHandler.Answer)
		s.POST("/:id/next", sessionHandler.Next)
		s.POST("/:id/prev", sessionHandler.Prev)
		s.POST("/:id/submit", sessionHandler.Submit)
		s.DELETE("/:id", sessionHandler.Reset)

		api.POST("/admin/auth", middleware.RateLimiter(rootCtx, cfg.RateLimit.LoginRequests, cfg.RateLimit.LoginWindow), authHandler.Login)

		admin := api.Group("/admin")
		admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/config", timerHandler.Get)
			admin.PUT("/config", timerHandler.Update)
			admin.GET("/exports/check", exportHandler.Check)
			if exportLogHandler != nil {
				admin.GET("/exports", exportLogHandler.List)
				admin.GET("/exports/:sessionId/archive", exportLogHandler.Archive)
			} else {
				unavailable := func(c *gin.Context) { response.ServiceUnavailable(c, "export log requires DATABASE_URL") }
				admin.GET("/exports", unavailable)
				admin.GET("/exports/:sessionId/archive", unavailable)
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background export worker
	workerDone := make(chan struct{})
	if cfg.Server.RunWorker {
		var logs worker.LogRecorder
		if exportLogRepo != nil {
			logs = exportLogRepo
		}
		processor := worker.NewExportProcessor(destinations.Multi, jobQueue, statuses, logs, hub, log)
		go func() {
			defer close(workerDone)
			processor.Run(rootCtx)
		}()
		log.Info("export worker started")
	} else {
		close(workerDone)
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	manager.Close()
	rootCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("export worker did not stop in time")
	}
	log.Info("server stopped")
}

func s3Config(c config.AWSConfig) storage.S3Config {
	return storage.S3Config{
		Region:               c.Region,
		AccessKeyID:          c.AccessKeyID,
		SecretAccessKey:      c.SecretAccessKey,
		ResultsBucket:        c.ResultsBucket,
		Endpoint:             c.Endpoint,
		UsePathStyle:         c.UsePathStyle,
		PresignExpireMinutes: c.PresignExpireMinutes,
	}
}
