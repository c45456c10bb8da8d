// Package main runs the room orchestration HTTP server with WebSocket and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/echoroom/backend/config"
	"github.com/echoroom/backend/internal/auth"
	"github.com/echoroom/backend/internal/events"
	"github.com/echoroom/backend/internal/guests"
	"github.com/echoroom/backend/internal/middleware"
	"github.com/echoroom/backend/internal/realtime"
	"github.com/echoroom/backend/internal/recordings"
	"github.com/echoroom/backend/internal/rooms"
	"github.com/echoroom/backend/internal/session"
	"github.com/echoroom/backend/internal/worker"
	"github.com/echoroom/backend/pkg/database"
	"github.com/echoroom/backend/pkg/queue"
	"github.com/echoroom/backend/pkg/redis"
	"github.com/echoroom/backend/pkg/response"
	"github.com/echoroom/backend/pkg/storage"
	"github.com/echoroom/backend/pkg/token"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	hub.SetPresenceChangeHandler(func(roomID uuid.UUID, count int) {
		hub.BroadcastToRoom(roomID, "presence", gin.H{"count": count})
	})
	broadcaster := realtime.NewBroadcaster(hub)
	publisher := events.NewPublisher(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	roomRepo := rooms.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	guestRepo := guests.NewRepository(pool)

	svc := session.NewService(session.Deps{
		Rooms:         roomRepo,
		Recordings:    recordingRepo,
		Guests:        guestRepo,
		Users:         authRepo,
		Storage:       s3Client,
		Tokens:        token.NewService(),
		Events:        publisher,
		Broadcast:     broadcaster,
		Logger:        logger,
		InviteBaseURL: cfg.Rooms.InviteBaseURL,
	})

	roomHandler := rooms.NewHandler(svc)
	recordingHandler := recordings.NewHandler(svc, jobQueue, s3Client, logger)
	guestHandler := guests.NewHandler(svc)

	recordingProcessor := worker.NewRecordingProcessor(recordingRepo, s3Client, jobQueue, publisher, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Guest entry (public; the invite token is the credential)
	router.POST("/rooms/:id/join", guestHandler.Join)
	router.POST("/guests/:id/leave", guestHandler.Leave)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Rooms
		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", middleware.RequireRole("admin", "host"), roomHandler.Create)
		api.GET("/rooms/:id", roomHandler.GetByID)
		api.POST("/rooms/:id/activate", roomHandler.Activate)
		api.POST("/rooms/:id/close", roomHandler.Close)

		// Recordings
		api.POST("/rooms/:id/recording/start", recordingHandler.Start)
		api.POST("/rooms/:id/recording/stop", recordingHandler.Stop)
		api.GET("/rooms/:id/recordings", recordingHandler.ListByRoom)
		api.GET("/recordings/:id", recordingHandler.GetByID)
		api.POST("/recordings/:id/complete", recordingHandler.Complete)
		api.POST("/recordings/:id/fail", recordingHandler.Fail)
		api.POST("/recordings/:id/retry", recordingHandler.Retry)
		api.GET("/recordings/:id/download-url", recordingHandler.DownloadURL)

		// Guests
		api.POST("/rooms/:id/guests", guestHandler.Invite)
		api.GET("/rooms/:id/guests", guestHandler.ListByRoom)
		api.POST("/guests/:id/kick", guestHandler.Kick)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (recording post-capture pipeline)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go recordingProcessor.Run(workerCtx)
	logger.Info("recording worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
