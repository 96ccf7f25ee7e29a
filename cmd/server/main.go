package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/config"
	"github.com/iliyamo/resource-booking/internal/database"
	"github.com/iliyamo/resource-booking/internal/handler"
	"github.com/iliyamo/resource-booking/internal/metrics"
	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/queue"
	"github.com/iliyamo/resource-booking/internal/reminder"
	"github.com/iliyamo/resource-booking/internal/repository"
	"github.com/iliyamo/resource-booking/internal/router"
	"github.com/iliyamo/resource-booking/internal/service"
	"github.com/iliyamo/resource-booking/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := utils.NewLogger(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting falls back to memory and caching is off", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}

	resources := repository.NewResourceRepo(db)
	bookings := repository.NewBookingRepo(db)
	opts := []service.Option{}

	if cfg.EventsEnabled && cfg.AMQPURL != "" {
		opts = append(opts, service.WithEvents(queue.NewPublisher(cfg.AMQPURL, log)))
		go func() {
			sink := queue.NewBookingLog("logs")
			if err := queue.StartBookingConsumer(ctx, cfg.AMQPURL, sink, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", zap.Error(err))
			}
		}()
	}

	var worker *reminder.Worker
	if cfg.RemindersEnabled {
		opt := reminder.RedisOpt(cfg.Redis)
		aclient := asynq.NewClient(opt)
		defer aclient.Close()
		inspector := asynq.NewInspector(opt)
		defer inspector.Close()
		opts = append(opts, service.WithReminders(reminder.NewScheduler(aclient, inspector, cfg.ReminderLeads, log)))

		worker = reminder.NewWorker(opt, reminder.LogNotifier(log), log)
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start reminder worker: %w", err)
		}
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := metrics.NewRegistry()
		bm, err := metrics.NewBooking(reg, "api")
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, service.WithMetrics(bm))
		metricsHandler = metrics.Handler(reg)
	}

	svc := service.NewBookingService(resources, bookings, log, opts...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	var cache echo.MiddlewareFunc
	var purge func(context.Context) error
	if rdb != nil && cfg.Cache.Enabled {
		cache = middleware.NewRedisCache(cfg.Cache, rdb)
		purge = purgeFunc(rdb, cfg)
	}

	router.RegisterRoutes(e, db)
	if metricsHandler != nil {
		router.RegisterMetrics(e, metricsHandler)
	}
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret)
	rh := handler.NewResourceHandler(resources, svc, cfg.SlotStep(), purge)
	router.RegisterPublic(e, rh, cache)
	router.RegisterCustomer(e, handler.NewBookingHandler(svc), cfg.JWTSecret)
	router.RegisterOwner(e, rh, cfg.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if worker != nil {
		worker.Shutdown()
	}
	return nil
}

func purgeFunc(rdb *redis.Client, cfg config.Config) func(context.Context) error {
	return func(ctx context.Context) error {
		return middleware.PurgeCache(ctx, rdb, cfg.Cache)
	}
}
