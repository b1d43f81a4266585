package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/api/handler"
	appmiddleware "github.com/sanosuguru/go-event-admission/internal/api/middleware"
	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/config"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-event-admission/internal/infrastructure/redis"
	statsinfra "github.com/sanosuguru/go-event-admission/internal/infrastructure/stats"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-admission/internal/worker"
)

func main() {
	cfg := config.Load()
	defer logger.Sync()

	m := metrics.Init()

	// PostgreSQL
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis
	redisClient, err := redisinfra.NewClient(&redisinfra.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Redis接続に失敗しました", zap.Error(err))
	}
	defer redisClient.Close()

	lockManager := redisinfra.NewLockManager(redisClient)
	viewsCache := redisinfra.NewViewsCache(redisClient)

	// 統計サービスゲートウェイとヒットディスパッチャ
	statsClient := statsinfra.NewClient(cfg.Stats.BaseURL, cfg.Stats.Timeout)
	dispatcher := worker.NewHitDispatcher(statsClient, cfg.Stats.BufferSize)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go dispatcher.Start(workerCtx)

	// リポジトリ
	eventRepo := postgres.NewEventRepository(db)
	requestRepo := postgres.NewRequestRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	userRepo := postgres.NewUserRepository(db)
	txManager := postgres.NewTxManager(db)

	// サービス
	ledger := application.NewLedger(requestRepo)
	eventService := application.NewEventService(eventRepo, categoryRepo, userRepo, ledger, statsClient, dispatcher, viewsCache)
	admissionService := application.NewAdmissionService(txManager, requestRepo, eventRepo, userRepo, lockManager, cfg.Lock, m)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()
	appmiddleware.SetupMiddleware(e)
	e.Use(appmiddleware.PrometheusMiddleware(m))

	registerRoutes(e, eventService, admissionService)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), appmiddleware.MetricsBasicAuth())

	// サーバー起動
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	logger.Info("サーバーを起動しました", zap.String("port", cfg.Server.Port))

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	// バッファに残ったヒットを送信してから停止する
	dispatcher.Stop()

	logger.Info("サーバーが正常にシャットダウンしました")
}

func registerRoutes(e *echo.Echo, es *application.EventService, as *application.AdmissionService) {
	healthHandler := handler.NewHealthHandler()
	eventHandler := handler.NewEventHandler(es)
	requestHandler := handler.NewRequestHandler(as)

	e.GET("/api/v1/health", healthHandler.Check)

	// 公開イベント
	e.GET("/events", eventHandler.Search)
	e.GET("/events/:id", eventHandler.GetPublished)

	// オーナー向けイベント
	e.POST("/users/:userId/events", eventHandler.Create)
	e.GET("/users/:userId/events", eventHandler.GetOwnEvents)
	e.GET("/users/:userId/events/:eventId", eventHandler.GetOwnEvent)
	e.PATCH("/users/:userId/events/:eventId", eventHandler.UpdateByUser)

	// 管理者向けイベント
	e.GET("/admin/events", eventHandler.SearchByAdmin)
	e.PATCH("/admin/events/:eventId", eventHandler.UpdateByAdmin)

	// 参加リクエスト
	e.POST("/users/:userId/requests", requestHandler.Submit)
	e.GET("/users/:userId/requests", requestHandler.GetOwn)
	e.PATCH("/users/:userId/requests/:requestId/cancel", requestHandler.Cancel)
	e.GET("/users/:userId/events/:eventId/requests", requestHandler.ListForEvent)
	e.PATCH("/users/:userId/events/:eventId/requests", requestHandler.Decide)
}
