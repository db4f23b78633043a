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

	"printrelay/internal/auth"
	"printrelay/internal/config"
	"printrelay/internal/feature/action"
	"printrelay/internal/feature/authorize"
	"printrelay/internal/feature/submission"
	"printrelay/internal/health"
	"printrelay/internal/logging"
	"printrelay/internal/metrics"
	"printrelay/internal/printer"
	"printrelay/internal/render"
	"printrelay/internal/store"
	"printrelay/internal/telegram"
	"printrelay/internal/transfer"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	retentionInterval       = time.Hour
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
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
		"storage_root": cfg.StorageRoot,
		"auth_store":   cfg.AuthStore,
		"print_driver": cfg.PrintDriver,
		"count_mode":   cfg.PrintCountMode,
	}).Info("configuration loaded")

	var (
		mongoManager *store.Manager
		authRepo     auth.Repository
	)

	if cfg.UsesMongo() {
		mongoManager, err = connectMongo(cfg, logger)
		if err != nil {
			exit(logger, "mongo setup error", err)
		}
		authRepo = auth.NewMongoRepository(mongoManager.AuthorizedChats(), logger)
	} else {
		authRepo, err = auth.NewFileRepository(cfg.AuthFile, logger)
		if err != nil {
			exit(logger, "authorization store error", err)
		}
	}

	submissions, err := store.NewSubmissions(cfg.StorageRoot, logger)
	if err != nil {
		exit(logger, "storage setup error", err)
	}

	relayMetrics := metrics.New()

	printDriver, err := printer.New(cfg, logger)
	if err != nil {
		exit(logger, "printer setup error", err)
	}

	chrome := render.NewChromeRenderer(render.ChromeConfig{
		Timeout:   cfg.RenderTimeout,
		RemoteURL: cfg.ChromeRemoteURL,
		NoSandbox: cfg.ChromeNoSandbox,
		Logger:    logger,
	})
	defer chrome.Close()

	tgClient, err := telegram.NewClient(cfg, logger)
	if err != nil {
		exit(logger, "telegram client setup error", err)
	}
	messenger := tgClient.Messenger()

	pipeline, err := submission.NewPipeline(submission.Deps{
		Auth:      authRepo,
		Store:     submissions,
		Messenger: messenger,
		Renderer:  render.NewPhotoRenderer(chrome),
		Fetcher:   transfer.NewDownloader(),
		Metrics:   relayMetrics,
		Logger:    logger,
	})
	if err != nil {
		exit(logger, "submission pipeline setup error", err)
	}

	dispatcher, err := action.NewDispatcher(action.Deps{
		Auth:      authRepo,
		Store:     submissions,
		Messenger: messenger,
		Printer:   printDriver,
		Metrics:   relayMetrics,
		Logger:    logger,
		CountMode: cfg.PrintCountMode,
	})
	if err != nil {
		exit(logger, "action dispatcher setup error", err)
	}

	authorizeHandler, err := authorize.NewHandler(authRepo, messenger, cfg.AuthPassword, logger)
	if err != nil {
		exit(logger, "authorize command setup error", err)
	}

	tgClient.SetRouter(telegram.NewRouter(pipeline, dispatcher, authorizeHandler))
	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthOpts := health.Options{
		Port:    cfg.HTTPPort,
		Storage: submissions,
		Metrics: relayMetrics.Handler(),
		Logger:  logger,
	}
	if mongoManager != nil {
		healthOpts.Mongo = mongoManager
	}
	healthServer := health.NewServer(healthOpts)

	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RetentionDays > 0 {
		sweeper, err := store.NewSweeper(cfg.StorageRoot, cfg.RetentionDays, logger,
			store.WithSweepObserver(relayMetrics.Purged))
		if err != nil {
			exit(logger, "retention setup error", err)
		}
		go sweeper.Run(signalCtx, retentionInterval)

		logger.WithFields(logging.Fields{
			"event":          "retention_enabled",
			"retention_days": cfg.RetentionDays,
		}).Info("rolling retention enabled")
	}

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	if mongoManager != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		if err := mongoManager.Close(shutdownCtx); err != nil {
			logger.WithError(err).Error("mongo disconnect error")
		} else {
			logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
		}
		cancelShutdown()
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func connectMongo(cfg config.Config, logger *logrus.Entry) (*store.Manager, error) {
	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	manager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	defer cancelIndexes()
	if err := manager.EnsureBaseIndexes(indexCtx); err != nil {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		_ = manager.Close(closeCtx)
		cancelClose()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")
	return manager, nil
}

func exit(logger *logrus.Entry, msg string, err error) {
	logger.WithError(err).Error(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
