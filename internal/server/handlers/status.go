package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/application/tracker"
	"github.com/kitepay/railbridge/internal/domain"
)

type StatusHandler struct {
	tracker     tracker.ITrackerService
	settlements settlement.ISettlementService
	logger      zerolog.Logger
}

func NewStatusHandler(trackerSvc tracker.ITrackerService, settlements settlement.ISettlementService, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		tracker:     trackerSvc,
		settlements: settlements,
		logger:      logger,
	}
}

// Get returns the unified status view for one payment.
func (h *StatusHandler) Get(c *gin.Context) {
	paymentID := c.Param("payment_id")

	status, err := h.tracker.GetStatus(c.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, tracker.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to load status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// History returns the transition history for one payment.
func (h *StatusHandler) History(c *gin.Context) {
	paymentID := c.Param("payment_id")

	history, err := h.tracker.GetHistory(c.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, tracker.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id": paymentID,
		"history":    history,
	})
}

// ConfigureNotifications registers which status transitions for a payment
// should be delivered on which channels.
func (h *StatusHandler) ConfigureNotifications(c *gin.Context) {
	paymentID := c.Param("payment_id")

	var cfg domain.NotificationConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.PaymentID = paymentID

	if _, err := h.tracker.GetStatus(c.Request.Context(), paymentID); err != nil {
		if errors.Is(err, tracker.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to load status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}

	h.tracker.ConfigureNotifications(cfg)
	c.JSON(http.StatusOK, cfg)
}

// Search filters the payment set by status, rail, customer and age.
func (h *StatusHandler) Search(c *gin.Context) {
	var criteria domain.SearchCriteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.tracker.SearchPayments(c.Request.Context(), criteria)
	if err != nil {
		h.logger.Error().Err(err).Msg("Payment search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(results),
		"payments": results,
	})
}

// Analytics aggregates payment outcomes over a window, default 24h.
func (h *StatusHandler) Analytics(c *gin.Context) {
	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window duration"})
			return
		}
		window = parsed
	}

	analytics, err := h.tracker.GetAnalytics(c.Request.Context(), window)
	if err != nil {
		h.logger.Error().Err(err).Msg("Analytics aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analytics failed"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// GetSettlement returns the payout state for one settlement id.
func (h *StatusHandler) GetSettlement(c *gin.Context) {
	settlementID := c.Param("settlement_id")

	result, err := h.settlements.GetSettlement(c.Request.Context(), settlementID)
	if err != nil {
		h.logger.Error().Err(err).Str("settlement_id", settlementID).Msg("Failed to load settlement")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settlement"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "settlement not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}
