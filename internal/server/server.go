package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/application/orchestrator"
	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/application/tracker"
	"github.com/kitepay/railbridge/internal/application/watcher"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
	"github.com/kitepay/railbridge/internal/server/handlers"
	"github.com/kitepay/railbridge/internal/server/websocket"
	"github.com/kitepay/railbridge/pkg/config"
)

type Server struct {
	Orchestrator orchestrator.IOrchestratorService
	Watcher      watcher.IWatcherService
	Settlements  settlement.ISettlementService
	Tracker      tracker.ITrackerService
	Hub          *websocket.Hub
	DB           *database.DBManager
	Cfg          *config.Config
	Logger       zerolog.Logger
	Router       *gin.Engine
	httpServer   *http.Server
}

func New(
	cfg *config.Config,
	orch orchestrator.IOrchestratorService,
	watcherSvc watcher.IWatcherService,
	settlementSvc settlement.ISettlementService,
	trackerSvc tracker.ITrackerService,
	hub *websocket.Hub,
	db *database.DBManager,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		Orchestrator: orch,
		Watcher:      watcherSvc,
		Settlements:  settlementSvc,
		Tracker:      trackerSvc,
		Hub:          hub,
		DB:           db,
		Cfg:          cfg,
		Logger:       logger,
		Router:       gin.New(),
	}
}

func (s *Server) SetupRouter() {
	handler := handlers.New(
		s.Orchestrator,
		s.Watcher,
		s.Settlements,
		s.Tracker,
		s.Hub,
		s.DB,
		s.Logger,
		s.Cfg,
	)
	handler.SetupHandlers(s.Router)
}

func (s *Server) Start() {
	s.SetupRouter()

	s.httpServer = &http.Server{
		Addr:         s.Cfg.Server.Host + ":" + s.Cfg.Server.Port,
		Handler:      s.Router,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	s.Logger.Info().Msgf("Starting server on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-stopChan
	s.Logger.Info().Msg("Shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.Orchestrator.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	s.Logger.Info().Msg("Server exited gracefully")
}
