package main

import (
	"context"

	"github.com/kitepay/railbridge/internal/application/orchestrator"
	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/application/tracker"
	"github.com/kitepay/railbridge/internal/application/watcher"
	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/internal/infrastructure/clients"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
	"github.com/kitepay/railbridge/internal/repositories/auditrepo"
	"github.com/kitepay/railbridge/internal/repositories/paymentrepo"
	"github.com/kitepay/railbridge/internal/repositories/refundrepo"
	"github.com/kitepay/railbridge/internal/repositories/settlementrepo"
	"github.com/kitepay/railbridge/internal/repositories/statusrepo"
	"github.com/kitepay/railbridge/internal/server"
	"github.com/kitepay/railbridge/internal/server/websocket"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/logger"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

func main() {
	logger := logger.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.ShutDown()

	paymentRepo := paymentrepo.New(db, logger)
	settlementRepo := settlementrepo.New(db, logger)
	statusRepo := statusrepo.New(db, logger)
	auditRepo := auditrepo.New(db, logger)
	refundRepo := refundrepo.New(db, logger)

	ledgerClient := clients.NewLedgerClient(cfg.Ledger, logger)
	payoutClient := clients.NewPayoutProviderClient(cfg.Payout, cfg.Server.PublicURL, logger)
	ratesClient := clients.NewRatesAPIClient(cfg.Rates, logger)
	fulfillmentClient := clients.NewFulfillmentAPIClient(cfg.Fulfillment, logger)
	reversalClient := clients.NewReversalAPIClient(cfg.Refunds, logger)

	notifiers := []interfaces.Notifier{
		clients.NewSMSNotifier(cfg.Notifications, logger),
		clients.NewWebhookNotifier(cfg.Notifications, logger),
	}

	sched := scheduler.NewReal()

	watcherService := watcher.New(ledgerClient, cfg.Watcher, sched, logger)
	settlementService := settlement.New(payoutClient, settlementRepo, auditRepo, cfg.Settlement, sched, logger)
	trackerService := tracker.New(statusRepo, notifiers, cfg.Tracker, sched, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()
	trackerService.SetBroadcast(hub.BroadcastStatus)

	orchestratorService := orchestrator.New(
		watcherService,
		settlementService,
		trackerService,
		ratesClient,
		fulfillmentClient,
		reversalClient,
		paymentRepo,
		refundRepo,
		statusRepo,
		auditRepo,
		*cfg,
		sched,
		logger,
	)
	orchestratorService.Start(context.Background())

	srv := server.New(cfg, orchestratorService, watcherService, settlementService, trackerService, hub, db, logger)
	srv.Start()
}
