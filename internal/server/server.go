package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/barterverse-backend/internal/chat"
	"github.com/barterverse-backend/internal/chat/ws"
	"github.com/barterverse-backend/internal/config"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/ledger"
	"github.com/barterverse-backend/internal/server/handler"
	"github.com/barterverse-backend/internal/trade"
	"github.com/gin-gonic/gin"
)

// Server handles HTTP and websocket requests and manages their lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures the HTTP server with the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	verifier *ws.TokenVerifier,
	hub *ws.Hub,
	delivery *chat.DeliveryService,
	profileRepo profile.Repository,
	ledgerService ledger.Service,
	tradeService trade.Service,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	wsHandler := ws.NewHandler(hub, verifier, &cfg.Chat, log)
	profileHandler := handler.NewProfileHandler(log, profileRepo)
	walletHandler := handler.NewWalletHandler(log, ledgerService)
	tradeHandler := handler.NewTradeHandler(log, tradeService)
	chatHandler := handler.NewChatHandler(log, delivery)

	setupRouter(log, httpRouter, verifier, wsHandler, profileHandler, walletHandler, tradeHandler, chatHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server. Websocket connections are
// closed as part of the shutdown; clients reconnect and catch up from
// history.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
