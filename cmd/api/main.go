package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"bitguardian/internal/adapter/contract"
	"bitguardian/internal/adapter/events"
	httpadp "bitguardian/internal/adapter/http"
	mw "bitguardian/internal/adapter/middleware"
	"bitguardian/internal/adapter/repository/mysql"
	redisrepo "bitguardian/internal/adapter/repository/redis"
	walletadp "bitguardian/internal/adapter/wallet"
	"bitguardian/internal/config"
	"bitguardian/internal/infrastructure/cache"
	"bitguardian/internal/infrastructure/db"
	"bitguardian/internal/infrastructure/logging"
	"bitguardian/internal/infrastructure/scheduler"
	"bitguardian/internal/usecase/lending"
	"bitguardian/internal/usecase/profile"
	"bitguardian/internal/usecase/session"
	"bitguardian/internal/usecase/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), db.LogLevel(cfg.LogLevel))
	if err != nil {
		logger.Fatal().Err(err).Msg("db")
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	rdb, err := cache.OpenRedis(context.Background(), cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()

	// contract layer
	ledger := contract.NewLedger(mysql.NewLoanRepository(gdb), mysql.NewGormUoW(gdb))

	var publisher lending.Publisher = lending.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	provider := walletadp.NewRPCProvider(cfg.WalletRPCURL)
	defer provider.Close()

	directory := lending.NewDirectory(ledger)
	registry := session.NewRegistry(
		wallet.NewConnector(provider),
		lending.NewGateway(ledger, publisher),
		directory,
	)
	defer registry.CloseAll()

	profiles := profile.NewUsecase(redisrepo.NewProfileRepository(rdb, cfg.ProfileTTL()))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(mw.RequestLogger(logger), middleware.Recover())

	httpadp.RegisterRoutes(e, httpadp.Handlers{
		Health: httpadp.NewHandler().
			WithCheck("db", func(ctx context.Context) error {
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}).
			WithCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		Loans:    httpadp.NewLoanHandler(directory),
		Sessions: httpadp.NewSessionHandler(registry),
		Profiles: httpadp.NewProfileHandler(profiles),
	}, mw.IdempotencyMiddleware(rdb, cfg.IdempotencyTTL()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	addr := ":" + cfg.AppPort
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	sched := scheduler.New()
	if cfg.LoansRefreshSchedule != "" {
		err := sched.Add("refresh_loans", cfg.LoansRefreshSchedule, 20*time.Second, func(ctx context.Context) {
			registry.RefreshConnected(ctx)
		})
		if err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.LoansRefreshSchedule).Msg("scheduler")
		}
	}
	err = sched.Add("evict_idle_sessions", "@every 1m", 5*time.Second, func(context.Context) {
		registry.EvictIdle(cfg.SessionIdleTTL)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	g.Go(func() error { return sched.Run(ctx) })

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return
	}
	logger.Info().Msg("bye")
}
