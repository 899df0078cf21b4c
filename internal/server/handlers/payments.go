package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/application/orchestrator"
	"github.com/kitepay/railbridge/internal/application/watcher"
	"github.com/kitepay/railbridge/internal/domain"
)

type PaymentHandler struct {
	orchestrator orchestrator.IOrchestratorService
	watcher      watcher.IWatcherService
	logger       zerolog.Logger
}

func NewPaymentHandler(orch orchestrator.IOrchestratorService, watcherSvc watcher.IWatcherService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		orchestrator: orch,
		watcher:      watcherSvc,
		logger:       logger,
	}
}

// StartWatch registers the payment and opens a ledger monitoring session.
func (h *PaymentHandler) StartWatch(c *gin.Context) {
	var payment domain.PaymentRequest
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment.PaymentID = c.Param("payment_id")

	sessionID, err := h.orchestrator.RegisterPayment(c.Request.Context(), payment)
	if err != nil {
		if errors.Is(err, watcher.ErrSessionExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", payment.PaymentID).Msg("Failed to start watch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start watch"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"payment_id": payment.PaymentID,
		"session_id": sessionID,
		"status":     "watching",
	})
}

// CancelWatch stops the active monitoring session for a payment.
func (h *PaymentHandler) CancelWatch(c *gin.Context) {
	paymentID := c.Param("payment_id")

	if err := h.orchestrator.CancelWatch(c.Request.Context(), paymentID); err != nil {
		if errors.Is(err, orchestrator.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to cancel watch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel watch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id": paymentID,
		"status":     "cancelled",
	})
}

// GetSession returns a snapshot of the active monitoring session.
func (h *PaymentHandler) GetSession(c *gin.Context) {
	paymentID := c.Param("payment_id")

	session, ok := h.watcher.Session(paymentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session for payment"})
		return
	}
	c.JSON(http.StatusOK, session)
}
