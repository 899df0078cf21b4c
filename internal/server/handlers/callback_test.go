package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/domain"
)

type stubSettlements struct {
	callbackErr error
	callbacks   []domain.CallbackResult
	timeouts    []string
}

func (s *stubSettlements) InitiateSettlement(ctx context.Context, req domain.SettlementRequest) (string, error) {
	return "", nil
}

func (s *stubSettlements) HandleCallback(ctx context.Context, cb domain.CallbackResult) error {
	s.callbacks = append(s.callbacks, cb)
	return s.callbackErr
}

func (s *stubSettlements) HandleTimeout(ctx context.Context, conversationID string) error {
	s.timeouts = append(s.timeouts, conversationID)
	return nil
}

func (s *stubSettlements) GetSettlement(ctx context.Context, settlementID string) (*domain.SettlementResult, error) {
	return nil, nil
}

func (s *stubSettlements) Completed() <-chan domain.SettlementCompletedEvent { return nil }
func (s *stubSettlements) Failures() <-chan domain.SettlementFailedEvent    { return nil }

var _ settlement.ISettlementService = (*stubSettlements)(nil)

func callbackRouter(stub *stubSettlements) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewCallbackHandler(stub, zerolog.Nop())
	router.POST("/callback/result", h.Result)
	router.POST("/callback/timeout", h.Timeout)
	return router
}

const resultPayload = `{
	"Result": {
		"ResultType": 0,
		"ResultCode": 0,
		"ResultDesc": "The service request is processed successfully.",
		"OriginatorConversationID": "29115-34620561-1",
		"ConversationID": "AG_20260829_0001",
		"TransactionID": "NLJ41HAY6Q",
		"ResultParameters": {
			"ResultParameter": [
				{"Key": "TransactionReceipt", "Value": "NLJ41HAY6Q"},
				{"Key": "TransactionAmount", "Value": 2970},
				{"Key": "B2CChargesPaidAccountAvailableFunds", "Value": -451.0}
			]
		}
	}
}`

func TestResultCallbackApplied(t *testing.T) {
	stub := &stubSettlements{}
	router := callbackRouter(stub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/callback/result", strings.NewReader(resultPayload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, rec.Body.String())

	require.Len(t, stub.callbacks, 1)
	cb := stub.callbacks[0]
	assert.Equal(t, "AG_20260829_0001", cb.ConversationID)
	assert.Equal(t, 0, cb.ResultCode)
	assert.Equal(t, "NLJ41HAY6Q", cb.Receipt)
	assert.True(t, cb.Amount.Equal(decimal.NewFromInt(2970)))
}

func TestResultCallbackAcksGarbage(t *testing.T) {
	stub := &stubSettlements{}
	router := callbackRouter(stub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/callback/result", strings.NewReader("not json at all"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	// The provider redelivers on anything but a zero ResultCode, so even a
	// payload we cannot read gets acknowledged.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, rec.Body.String())
	assert.Empty(t, stub.callbacks)
}

func TestResultCallbackAcksUnknownConversation(t *testing.T) {
	stub := &stubSettlements{callbackErr: settlement.ErrUnknownConversation}
	router := callbackRouter(stub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/callback/result", strings.NewReader(resultPayload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, rec.Body.String())
}

func TestTimeoutCallback(t *testing.T) {
	stub := &stubSettlements{}
	router := callbackRouter(stub)

	payload := `{"Result": {"ConversationID": "AG_20260829_0002"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/callback/timeout", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AG_20260829_0002"}, stub.timeouts)
}
