package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/domain"
)

type CallbackHandler struct {
	settlements settlement.ISettlementService
	logger      zerolog.Logger
}

func NewCallbackHandler(settlements settlement.ISettlementService, logger zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		settlements: settlements,
		logger:      logger,
	}
}

// resultEnvelope is the provider's payout outcome wire format.
type resultEnvelope struct {
	Result struct {
		ResultType               int    `json:"ResultType"`
		ResultCode               int    `json:"ResultCode"`
		ResultDesc               string `json:"ResultDesc"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ConversationID           string `json:"ConversationID"`
		TransactionID            string `json:"TransactionID"`
		ResultParameters         struct {
			ResultParameter []struct {
				Key   string `json:"Key"`
				Value any    `json:"Value"`
			} `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

// Result receives the provider's asynchronous payout outcome. The provider
// treats any non-zero response as undelivered and will redeliver, so this
// endpoint always acknowledges; bad payloads are logged and dropped.
func (h *CallbackHandler) Result(c *gin.Context) {
	var envelope resultEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.logger.Warn().Err(err).Msg("Unparseable result callback payload")
		h.ack(c)
		return
	}

	cb := domain.CallbackResult{
		ConversationID:           envelope.Result.ConversationID,
		OriginatorConversationID: envelope.Result.OriginatorConversationID,
		ResultCode:               envelope.Result.ResultCode,
		ResultDescription:        envelope.Result.ResultDesc,
		TransactionID:            envelope.Result.TransactionID,
		ReceivedAt:               time.Now().UTC(),
	}
	for _, param := range envelope.Result.ResultParameters.ResultParameter {
		switch param.Key {
		case "TransactionReceipt":
			cb.Receipt = fmt.Sprintf("%v", param.Value)
		case "TransactionAmount":
			if amount, err := decimal.NewFromString(fmt.Sprintf("%v", param.Value)); err == nil {
				cb.Amount = amount
			}
		}
	}

	if err := h.settlements.HandleCallback(c.Request.Context(), cb); err != nil {
		h.logger.Warn().
			Err(err).
			Str("conversation_id", cb.ConversationID).
			Msg("Result callback not applied")
	}
	h.ack(c)
}

// Timeout receives the provider's queue-timeout notification.
func (h *CallbackHandler) Timeout(c *gin.Context) {
	var envelope resultEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.logger.Warn().Err(err).Msg("Unparseable timeout callback payload")
		h.ack(c)
		return
	}

	if err := h.settlements.HandleTimeout(c.Request.Context(), envelope.Result.ConversationID); err != nil {
		h.logger.Warn().
			Err(err).
			Str("conversation_id", envelope.Result.ConversationID).
			Msg("Timeout callback not applied")
	}
	h.ack(c)
}

func (h *CallbackHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
