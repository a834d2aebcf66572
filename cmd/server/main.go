package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/assign"
	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/database"
	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/lock"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/notify"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/realtime"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/reservation"
	"github.com/iliyamo/slot-booking/internal/router"
	"github.com/iliyamo/slot-booking/internal/slots"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "slot-booking"})
	defer func() { _ = log.Sync() }()

	lockCfg := config.LoadLockConfig()
	rtCfg := config.LoadRealtimeConfig()
	notifyCfg := config.LoadNotifyConfig()
	rlCfg := config.LoadRateLimitConfig()

	// MySQL is the source of truth for capacity; without it nothing works.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db, cfg.Migrations); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}
	log.Info("database ready", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	// Redis is optional at startup: locks fall back to memory, the limiter
	// fails open and realtime stays local until it answers.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Warn("redis unreachable at startup, running degraded", zap.Error(err))
	}
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fallback := lock.NewMemoryStore()
	go fallback.Run(ctx, lockCfg.SweepInterval)
	locks := lock.NewManager(lock.NewRedisStore(rdb), fallback, lockCfg, log.Named("lock"))

	hub := realtime.NewHub(log.Named("realtime"))
	local := realtime.NewLocalBroadcaster(hub, log.Named("realtime"))
	var broadcaster realtime.Broadcaster = local
	if rtCfg.RelayEnabled {
		broadcaster = realtime.NewRedisBroadcaster(rdb, rtCfg.RedisChannel, local, log.Named("realtime"))
		go realtime.NewRedisRelay(rdb, rtCfg.RedisChannel, local, log.Named("relay")).Run(ctx)
	}

	publisher, err := notify.New(notifyCfg, log.Named("notify"))
	if err != nil {
		log.Fatal("configure notifications", zap.Error(err))
	}
	defer publisher.Close()
	if b := strings.ToLower(notifyCfg.Broker); b == "rabbitmq" || b == "amqp" {
		go queue.StartBookingConsumer(ctx, notifyCfg.RabbitURL, notifyCfg.LogDir, log.Named("consumer"))
	}

	slotRepo := repository.NewSlotRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	reserver := reservation.NewManager(db, slotRepo, bookingRepo)
	assigner := assign.New(repository.NewCandidateRepo(db), log.Named("assign"))
	materializer := slots.NewMaterializer(repository.NewWorkingHoursRepo(db), repository.NewServiceRepo(db), slotRepo, log.Named("slots"))
	orchestrator := booking.New(locks, reserver, assigner, broadcaster, publisher, locks.BookingWait(), log.Named("booking"))

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.Metrics())

	router.RegisterRoutes(e, handler.NewReadyHandler(db, locks))
	router.RegisterPublic(e,
		handler.NewSlotHandler(slotRepo, log.Named("http")),
		handler.NewRealtimeHandler(hub, rtCfg, cfg.JWTSecret, log.Named("ws")))
	router.RegisterCustomer(e,
		handler.NewBookingHandler(orchestrator, log.Named("http")),
		cfg.JWTSecret,
		middleware.NewTokenBucket(rlCfg, rdb, log.Named("ratelimit")))
	router.RegisterOwner(e, handler.NewOwnerSlotHandler(materializer, log.Named("http")), cfg.JWTSecret)

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info("received signal", zap.String("signal", s.String()))
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
