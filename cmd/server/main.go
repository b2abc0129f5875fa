package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pet_chat/internal/config"
	"pet_chat/internal/domain"
	"pet_chat/internal/handler"
	"pet_chat/internal/middleware"
	"pet_chat/internal/realtime"
	"pet_chat/internal/repository"
	"pet_chat/internal/service"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к Redis (опционально)
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	// Инициализация репозиториев
	repos, closeDB, err := openRepositories(ctx, cfg, rdb, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open database", "error", err, "driver", cfg.Database.Driver)
	}
	defer closeDB()

	// Таблица комнат - общая для рассыльщика сообщений и менеджера сессий
	rooms := realtime.NewRooms(appLogger)
	services := service.NewServices(repos, rooms, appLogger)
	manager := realtime.NewManager(rooms, services, cfg.Realtime, appLogger)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.AccessSecret, cfg.JWT.Issuer, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.RateLimit.Requests, cfg.RateLimit.Window, appLogger)

	// Инициализация handlers
	handlers := handler.NewHandlers(services, repos, manager, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Ожидание сигнала для graceful shutdown
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Fatal("Server stopped with error", "error", err)
	}

	appLogger.Info("Server exited")
}

func openRepositories(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logger.Logger) (*repository.Repositories, func(), error) {
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := repository.OpenSQLite(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("SQLite database opened", "path", cfg.Database.SQLitePath)
		return repository.NewSQLiteRepositories(db, rdb, log), func() { db.Close() }, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, err
	}

	// Проверка подключения к БД
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, nil, err
	}
	log.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := repository.MigratePostgres(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, nil, err
		}
		log.Info("Database schema is up to date")
	}

	return repository.NewRepositories(dbPool, rdb, log), dbPool.Close, nil
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	// Health check и метрики
	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth(), rateLimitMiddleware.Limit())
	{
		conversations := v1.Group("/conversations")
		{
			conversations.GET("", handlers.Conversation.List)
			conversations.GET("/check/:petId", handlers.Conversation.CheckExists)
			conversations.POST("/pet/:petId", handlers.Conversation.GetOrCreateForPet)
			conversations.GET("/:id", handlers.Conversation.GetByID)
			conversations.GET("/:id/messages", handlers.Conversation.GetMessages)
			conversations.PUT("/:id/read", handlers.Conversation.MarkRead)
		}

		admin := v1.Group("/admin")
		admin.Use(authMiddleware.RequireRole(domain.GlobalRoleAdmin))
		{
			admin.GET("/chat/stats", handlers.Stats.GetChatStats)
		}
	}

	// Служебные endpoints для процессов усыновления и модерации
	internal := router.Group("/internal/v1")
	internal.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(domain.GlobalRoleAdmin, domain.GlobalRoleService))
	{
		internal.POST("/conversations/retire", handlers.Conversation.RetireByPets)
	}

	// WebSocket endpoint для чата
	router.GET("/ws/chat", authMiddleware.RequireAuth(), handlers.WebSocket.HandleChat)

	return router
}
