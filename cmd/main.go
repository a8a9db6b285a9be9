package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meethub/backend/internal/analytics"
	"meethub/backend/internal/api/handler"
	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/config"
	"meethub/backend/internal/localization"
	"meethub/backend/internal/media"
	"meethub/backend/internal/presentation"
	"meethub/backend/internal/recording"
	"meethub/backend/internal/roles"
	"meethub/backend/internal/roomhub"
	"meethub/backend/internal/storage"
	"meethub/backend/internal/tasks"
	"meethub/backend/internal/waitingroom"
	"meethub/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config) (*storage.Service, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect postgres")
	}
	s := storage.NewStorageService(db)
	if err := s.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}

	log.Info().Msg("database and redis connections established, migrations complete")
	return s, rdb
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Mode != gin.DebugMode {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	gin.SetMode(cfg.Mode)

	db, rdb := setupDependencies(ctx, cfg)
	sessions := storage.NewRedisSessionStore(rdb, cfg.Session.KeyPrefix, cfg.Session.TTL)

	localizer, err := localization.NewLocalizer(cfg.Locales.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Locales.Path).Msg("failed to load locales from disk, using embedded")
		localizer = localization.Embedded()
	}

	lk := media.NewLiveKit(cfg.LiveKit)

	// Flushed attendance is persisted by the worker with retries.
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	taskClient := asynq.NewClient(redisOpt)
	defer taskClient.Close()
	workerSrv := worker.NewWorkerServer(redisOpt, db, cfg.Worker.Concurrency)
	go workerSrv.Start()

	deps := roomhub.Deps{
		Rooms:          db,
		RateLimiter:    sessions,
		Roles:          roles.NewEngine(sessions, db),
		Waiting:        waitingroom.NewProtocol(sessions, lk),
		Presentations:  presentation.NewCoordinator(sessions),
		Recordings:     recording.NewCoordinator(sessions, lk, db, cfg.LiveKit.Layout),
		Analytics:      analytics.NewReconstructor(sessions, tasks.NewAttendanceSink(taskClient)),
		Blacklist:      blacklist.NewEnforcer(sessions, lk),
		Media:          lk,
		Localizer:      localizer,
		ChatRateLimit:  cfg.Chat.RateLimit,
		ChatRateWindow: cfg.Chat.RateWindow,
	}
	if cfg.Fanout.Enabled {
		deps.Fanout = roomhub.NewFanout(rdb, cfg.Session.KeyPrefix)
	}
	hub := roomhub.NewManagerService(deps)
	<-hub.StartPubSubListener(ctx)

	r := gin.Default()
	h := handler.NewHandler(hub, lk, cfg.JWT.Secret, cfg.JWT.TTL)
	h.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meethub server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	workerSrv.Shutdown()
	log.Info().Msg("server exited gracefully")
}
