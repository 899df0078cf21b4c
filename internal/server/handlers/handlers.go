package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/application/orchestrator"
	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/application/tracker"
	"github.com/kitepay/railbridge/internal/application/watcher"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
	"github.com/kitepay/railbridge/internal/server/middleware"
	"github.com/kitepay/railbridge/internal/server/websocket"
	"github.com/kitepay/railbridge/pkg/config"
)

type Handlers struct {
	Orchestrator orchestrator.IOrchestratorService
	Watcher      watcher.IWatcherService
	Settlements  settlement.ISettlementService
	Tracker      tracker.ITrackerService
	Hub          *websocket.Hub
	DB           *database.DBManager
	Logger       zerolog.Logger
	Config       *config.Config
}

func New(
	orch orchestrator.IOrchestratorService,
	watcherSvc watcher.IWatcherService,
	settlementSvc settlement.ISettlementService,
	trackerSvc tracker.ITrackerService,
	hub *websocket.Hub,
	db *database.DBManager,
	logger zerolog.Logger,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		Orchestrator: orch,
		Watcher:      watcherSvc,
		Settlements:  settlementSvc,
		Tracker:      trackerSvc,
		Hub:          hub,
		DB:           db,
		Logger:       logger,
		Config:       cfg,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	mw := middleware.NewMiddleware(h.Config, h.Logger)
	mw.SetupMiddleware(router)

	paymentHandler := NewPaymentHandler(h.Orchestrator, h.Watcher, h.Logger)
	callbackHandler := NewCallbackHandler(h.Settlements, h.Logger)
	statusHandler := NewStatusHandler(h.Tracker, h.Settlements, h.Logger)
	refundHandler := NewRefundHandler(h.Orchestrator, h.Logger)
	healthHandler := NewHealthHandler(h.DB, h.Watcher)
	wsHandler := NewWebSocketHandler(h.Hub, h.Config.WebSocket, h.Logger)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider callbacks carry no credentials; conversation ids are the only
	// correlation and unknown ones are discarded downstream.
	router.POST("/callback/result", callbackHandler.Result)
	router.POST("/callback/timeout", callbackHandler.Timeout)

	v1 := router.Group("/v1", mw.Authenticated())
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/:payment_id/watch", paymentHandler.StartWatch)
			payments.DELETE("/:payment_id/watch", paymentHandler.CancelWatch)
			payments.GET("/:payment_id/session", paymentHandler.GetSession)
		}

		status := v1.Group("/status")
		{
			status.GET("", statusHandler.Search)
			status.GET("/:payment_id", statusHandler.Get)
			status.GET("/:payment_id/history", statusHandler.History)
			status.PUT("/:payment_id/notifications", statusHandler.ConfigureNotifications)
		}

		v1.GET("/analytics", statusHandler.Analytics)
		v1.GET("/settlements/:settlement_id", statusHandler.GetSettlement)

		refunds := v1.Group("/refunds")
		{
			refunds.POST("", refundHandler.Request)
			refunds.POST("/:refund_id/approve", refundHandler.Approve)
			refunds.GET("/:refund_id", refundHandler.Get)
		}

		v1.GET("/stream", wsHandler.HandleConnection)
	}
}
