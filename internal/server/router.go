package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/barterverse-backend/internal/chat/ws"
	"github.com/barterverse-backend/internal/server/handler"
	"github.com/barterverse-backend/internal/server/middleware"
	"github.com/gin-gonic/gin"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	verifier *ws.TokenVerifier,
	wsHandler *ws.Handler,
	profileHandler *handler.ProfileHandler,
	walletHandler *handler.WalletHandler,
	tradeHandler *handler.TradeHandler,
	chatHandler *handler.ChatHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// Websocket endpoint; authenticates its own handshake token
	r.GET("/ws", wsHandler.Handle)

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Profile registration is open; everything else requires a token
		profiles := v1.Group("/profiles")
		{
			profiles.POST("", profileHandler.Create)
			profiles.GET("/:id", profileHandler.GetByID)
		}

		authed := v1.Group("")
		authed.Use(middleware.Auth(verifier))
		{
			wallet := authed.Group("/wallet")
			{
				wallet.GET("", walletHandler.GetBalance)
				wallet.GET("/entries", walletHandler.GetEntries)
				wallet.GET("/entries/:id", walletHandler.GetEntry)
				wallet.POST("/credit", walletHandler.Credit)
				wallet.POST("/debit", walletHandler.Debit)
				wallet.POST("/transfer", walletHandler.Transfer)
			}

			trades := authed.Group("/trades")
			{
				trades.POST("", tradeHandler.Create)
				trades.GET("", tradeHandler.List)
				trades.GET("/:id", tradeHandler.GetByID)
				trades.POST("/:id/confirm", tradeHandler.Confirm)
				trades.POST("/:id/complete", tradeHandler.Complete)
				trades.POST("/:id/cancel", tradeHandler.Cancel)
			}

			chatRoutes := authed.Group("/chat")
			{
				chatRoutes.GET("/conversations", chatHandler.Conversations)
				chatRoutes.GET("/messages/:otherId", chatHandler.History)
			}
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
