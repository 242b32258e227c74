package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.im.sync/internal/config"
	"sudooom.im.sync/internal/handler"
	"sudooom.im.sync/internal/health"
	imNats "sudooom.im.sync/internal/nats"
	"sudooom.im.sync/internal/repository"
	"sudooom.im.sync/internal/router"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/internal/snowflake"
	"sudooom.im.sync/internal/task"
)

func main() {
	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := imNats.NewClient(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	// 消息日志表
	messageRepo := repository.NewMessageRepository(db)
	if err := messageRepo.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure message schema", "error", err)
		os.Exit(1)
	}

	// 媒体对象存储
	objectStore, err := repository.NewFileObjectStore(cfg.Media.BaseDir)
	if err != nil {
		logger.Error("Failed to init media store", "error", err)
		os.Exit(1)
	}

	// 初始化服务
	publisher := imNats.NewEventPublisher(natsClient.Conn())
	sf := snowflake.NewNode(cfg.App.NodeID)
	conversationService := service.NewConversationService(redisClient, publisher)
	messageService := service.NewMessageService(messageRepo, sf, publisher, cfg.Sync.UnsendWindow)
	streakService := service.NewStreakService(redisClient, publisher, cfg.Sync.StreakPeriod)
	profileService := service.NewProfileService(redisClient)
	mediaService := service.NewMediaService(cfg.Media.SigningKey, cfg.Media.URLTTL, objectStore)

	// 延迟任务调度器（连续互动的 warning / 过期）
	scheduler := task.NewScheduler(cfg.Sync.WorkerCount)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// 上行事件触发处理器
	eventHandler := handler.NewEventHandler(
		conversationService,
		streakService,
		scheduler,
		publisher,
		objectStore,
		cfg.Sync.StreakWarningLead,
	)

	// 启动订阅者
	subscriber := imNats.NewEventSubscriber(natsClient.Conn(), eventHandler, imNats.SubscriberConfig{
		WorkerCount: cfg.Sync.WorkerCount,
		BufferSize:  cfg.Sync.BufferSize,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}

	// 启动健康检查 HTTP 服务
	healthChecker := health.NewChecker(cfg.App.Name, natsClient.Conn(), redisClient, db)
	go startHealthServer(healthChecker, logger)

	// 启动 API 服务
	engine := router.SetupRouter(
		cfg,
		handler.NewConversationHandler(conversationService, profileService),
		handler.NewMessageHandler(messageService, conversationService, cfg.Sync.SnapViewTTL, cfg.Sync.PageSize),
		handler.NewStreakHandler(streakService),
		handler.NewProfileHandler(profileService),
		handler.NewMediaHandler(mediaService, objectStore),
	)
	apiServer := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: engine,
	}
	go func() {
		logger.Info("API server started", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server failed", "error", err)
		}
	}()

	logger.Info("Sync service started", "name", cfg.App.Name, "nodeId", cfg.App.NodeID)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown failed", "error", err)
	}
	cancel()
	subscriber.Stop()
	scheduler.Stop()
	logger.Info("Sync service stopped")
}

// parseLogLevel 解析日志级别配置
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// startHealthServer 启动健康检查 HTTP 服务
func startHealthServer(healthChecker *health.Checker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	server := &http.Server{
		Addr:    ":8081",
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
