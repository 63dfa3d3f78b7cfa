package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/board"
	"github.com/rc4lifting/rc4-facilities-bot/internal/booking"
	"github.com/rc4lifting/rc4-facilities-bot/internal/config"
	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/email"
	"github.com/rc4lifting/rc4-facilities-bot/internal/feature/registration"
	"github.com/rc4lifting/rc4-facilities-bot/internal/health"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
	"github.com/rc4lifting/rc4-facilities-bot/internal/scheduler"
	"github.com/rc4lifting/rc4-facilities-bot/internal/store"
	"github.com/rc4lifting/rc4-facilities-bot/internal/store/sqlite"
	"github.com/rc4lifting/rc4-facilities-bot/internal/telegram"
)

const (
	storeOpenTimeout        = 10 * time.Second
	storeIndexTimeout       = 5 * time.Second
	storeCloseTimeout       = 5 * time.Second
	resolveOnceTimeout      = 2 * time.Minute
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

// facilityStore is everything the services need from a backend.
type facilityStore interface {
	booking.Store
	registration.UserStore
	SlotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Slot, error)
	UserNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (domain.Stats, error)
}

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	resolveOnce := flag.Bool("resolve-once", false, "resolve next week's ballots then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":        "startup",
		"store_driver": cfg.StoreDriver,
	}).Info("configuration loaded")

	db, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("store setup error")
		fmt.Fprintf(os.Stderr, "store setup error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
		defer cancel()
		if err := closeStore(ctx); err != nil {
			logger.WithError(err).Error("store close error")
			return
		}
		logger.WithField("event", "store_closed").Info("store closed")
	}()

	bookings := booking.NewService(cfg.Facility, db, logger)
	resolver := booking.NewResolver(bookings)

	if *resolveOnce {
		if err := runResolveOnce(resolver, logger); err != nil {
			fmt.Fprintf(os.Stderr, "resolve error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var sender email.Sender = email.NewLogSender(logger)
	if cfg.EmailAPIKey != "" {
		sender = email.NewElasticEmail(cfg.EmailAPIKey, cfg.EmailFrom, logger)
	} else {
		logger.WithField("event", "email_disabled").Warn("EMAIL_API_KEY unset, verification codes will be logged")
	}

	accounts, err := registration.NewRegistrar(db, sender, cfg.EmailDomain, logger)
	if err != nil {
		logger.WithError(err).Error("registrar setup error")
		fmt.Fprintf(os.Stderr, "registrar setup error: %v\n", err)
		os.Exit(1)
	}

	weekBoard := board.New(cfg.Facility, db, logger)

	router := telegram.NewRouter(telegram.Deps{
		Rules:    cfg.Facility,
		OwnerID:  cfg.BotOwnerID,
		Bookings: bookings,
		Resolver: resolver,
		Accounts: accounts,
		Board:    weekBoard,
		Stats:    db,
	}, logger)

	tgClient, err := telegram.NewClient(cfg, router, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	jobs := scheduler.New(logger)
	if err := addJobs(jobs, cfg, resolver, weekBoard); err != nil {
		logger.WithError(err).Error("scheduler setup error")
		fmt.Fprintf(os.Stderr, "scheduler setup error: %v\n", err)
		os.Exit(1)
	}

	healthServer := health.NewServer(cfg.HTTPPort, db, cfg.StoreDriver, logger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(context.Background())
	tgDone := make(chan struct{})
	jobsDone := make(chan struct{})

	go func() {
		tgClient.Start(runCtx)
		close(tgDone)
	}()

	go func() {
		if err := jobs.Run(runCtx); err != nil {
			logger.WithError(err).Error("scheduler stopped with error")
		}
		close(jobsDone)
	}()

	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelRun()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	for _, done := range []<-chan struct{}{tgDone, jobsDone} {
		select {
		case <-done:
		case <-waitCtx.Done():
			logger.WithField("event", "shutdown_timeout").Warn("timed out waiting for background work to stop")
		}
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

// openStore connects the configured backend and prepares its schema.
func openStore(cfg config.Config, logger *logrus.Entry) (facilityStore, func(context.Context) error, error) {
	openCtx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	if cfg.StoreDriver == config.DriverSQLite {
		db, err := sqlite.Open(openCtx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.WithFields(logging.Fields{
			"event": "sqlite_open",
			"path":  cfg.SQLitePath,
		}).Info("opened sqlite store")
		return db, func(context.Context) error { return db.Close() }, nil
	}

	manager, err := store.NewManager(openCtx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.WithFields(logging.Fields{
		"event":    "mongo_connect",
		"mongo_db": cfg.MongoDB,
	}).Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), storeIndexTimeout)
	defer cancelIndexes()
	if err := manager.EnsureBaseIndexes(indexCtx); err != nil {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), storeCloseTimeout)
		defer cancelClose()
		_ = manager.Close(closeCtx)
		return nil, nil, err
	}
	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	return store.NewFacilityStore(manager), manager.Close, nil
}

func addJobs(jobs *scheduler.Scheduler, cfg config.Config, resolver *booking.Resolver, weekBoard *board.Board) error {
	err := jobs.Add(scheduler.Job{
		Name: "resolve_ballots",
		Schedule: scheduler.Weekly{
			Day:      cfg.ResolveDay,
			Hour:     int(cfg.ResolveAt / time.Hour),
			Minute:   int(cfg.ResolveAt % time.Hour / time.Minute),
			Location: cfg.Facility.Location,
		},
		Run: func(ctx context.Context) error {
			_, err := resolver.Resolve(ctx)
			return err
		},
	})
	if err != nil {
		return err
	}

	return jobs.Add(scheduler.Job{
		Name:     "refresh_board",
		Schedule: scheduler.Every(cfg.BoardRefresh),
		Run:      weekBoard.Refresh,
	})
}

func runResolveOnce(resolver *booking.Resolver, logger *logrus.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), resolveOnceTimeout)
	defer cancel()

	report, err := resolver.Resolve(ctx)
	if err != nil {
		logger.WithError(err).Error("resolve error")
		return err
	}

	fmt.Printf("resolved %d ballots: %d booked, %d dropped (run %s)\n",
		report.Considered(), len(report.Booked), len(report.Dropped), report.RunID)
	return nil
}
