package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/application/orchestrator"
	"github.com/kitepay/railbridge/internal/domain"
)

type RefundHandler struct {
	orchestrator orchestrator.IOrchestratorService
	logger       zerolog.Logger
}

func NewRefundHandler(orch orchestrator.IOrchestratorService, logger zerolog.Logger) *RefundHandler {
	return &RefundHandler{
		orchestrator: orch,
		logger:       logger,
	}
}

// Request opens a refund for a payment. Small refunds and system-error
// refunds execute immediately; the rest await manual approval.
func (h *RefundHandler) Request(c *gin.Context) {
	var refund domain.Refund
	if err := c.ShouldBindJSON(&refund); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.orchestrator.RequestRefund(c.Request.Context(), refund)
	if err != nil {
		if errors.Is(err, orchestrator.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", refund.PaymentID).Msg("Refund request failed")
		status := http.StatusInternalServerError
		if result != nil {
			// The refund record exists; the reversal itself failed.
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Approve applies a manual approval to a pending refund.
func (h *RefundHandler) Approve(c *gin.Context) {
	refundID := c.Param("refund_id")

	var body struct {
		Approver string `json:"approver" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orchestrator.ApproveRefund(c.Request.Context(), refundID, body.Approver); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrRefundNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, orchestrator.ErrRefundNotApprovable):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error().Err(err).Str("refund_id", refundID).Msg("Refund approval failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refund_id": refundID,
		"status":    string(domain.RefundStatusCompleted),
	})
}

// Get returns one refund.
func (h *RefundHandler) Get(c *gin.Context) {
	refundID := c.Param("refund_id")

	refund, err := h.orchestrator.GetRefund(c.Request.Context(), refundID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRefundNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("refund_id", refundID).Msg("Failed to load refund")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load refund"})
		return
	}
	c.JSON(http.StatusOK, refund)
}
