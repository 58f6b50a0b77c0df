package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/docack/internal/adapters/qrcode"
	"github.com/ogurasousui/docack/internal/adapters/repository/postgres"
	"github.com/ogurasousui/docack/internal/adapters/telegram"
	"github.com/ogurasousui/docack/internal/core/bot"
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/ledger"
	"github.com/ogurasousui/docack/internal/core/notify"
	"github.com/ogurasousui/docack/internal/core/registration"
	"github.com/ogurasousui/docack/internal/core/scan"
	"github.com/ogurasousui/docack/internal/core/session"
	"github.com/ogurasousui/docack/internal/platform/config"
	pg "github.com/ogurasousui/docack/internal/platform/db/postgres"
	"github.com/ogurasousui/docack/internal/platform/logging"
	"github.com/ogurasousui/docack/internal/platform/server"
)

const (
	// handleTimeout は 1 件の受信イベントの処理に許す時間です。画像のダウンロードを含みます。
	handleTimeout = 30 * time.Second
	// replyTimeout は返信の送信に許す時間です。
	replyTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bot stopped with error", zap.Error(err))
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	tx := pg.NewTransactionManager(dbPool)

	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	departmentRepo := postgres.NewDepartmentRepository(dbPool)
	documentRepo := postgres.NewDocumentRepository(dbPool)
	ackRepo := postgres.NewAcknowledgmentRepository(dbPool)

	directory := employee.NewService(employeeRepo, departmentRepo, nil, tx)
	acknowledgments := ledger.NewService(ackRepo, documentRepo, directory, nil)
	sessions := session.NewMemoryStore(cfg.Session.IdleTTL, nil)
	machine := registration.NewMachine(directory, sessions, logger)
	pipeline := scan.NewPipeline(directory, documentRepo, acknowledgments, qrcode.NewDecoder(), logger)

	api, fileClient, err := telegram.Connect(cfg.Telegram)
	if err != nil {
		return err
	}
	logger.Info("connected to chat platform", zap.String("bot", api.Self.UserName))
	client := telegram.NewClient(api, logger)

	handler := bot.NewHandler(machine, pipeline, acknowledgments, directory, handleTimeout, logger)
	inbox := bot.NewInbox(handler, client, handleTimeout+replyTimeout, logger)
	runner := telegram.NewRunner(api, fileClient, inbox, cfg.Telegram.PollTimeout, logger)

	dispatcher := notify.NewDispatcher(directory, documentRepo, client, notify.Options{
		Workers:      cfg.Dispatch.Workers,
		MaxAttempts:  cfg.Dispatch.MaxAttempts,
		SendTimeout:  cfg.Dispatch.SendTimeout,
		RetryBackoff: cfg.Dispatch.RetryBackoff,
		Format:       bot.NewDocumentText,
	}, logger)
	listener := postgres.NewDocumentListener(postgres.PoolConnector(dbPool), documentRepo, func(ctx context.Context, documentID string) error {
		_, err := dispatcher.DispatchByID(ctx, documentID)
		return err
	}, logger)

	healthServer := server.New(cfg.Server.ListenAddr, dbPool, cfg.Server.HealthInterval, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	// 受信ループが終わったら他のワーカーも止める。
	g.Go(func() error {
		defer cancel()
		return runner.Run(gctx)
	})
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return healthServer.Run(gctx) })
	g.Go(func() error {
		sessions.Run(gctx, cfg.Session.SweepInterval, func(n int) {
			logger.Debug("idle sessions evicted", zap.Int("count", n), zap.Int("remaining", sessions.Len()))
		})
		return nil
	})

	err = g.Wait()
	inbox.Wait()

	totals := dispatcher.Totals()
	logger.Info("notification totals",
		zap.Int64("documents", totals.Documents),
		zap.Int64("delivered", totals.Delivered),
		zap.Int64("failed", totals.Failed),
	)
	return err
}
