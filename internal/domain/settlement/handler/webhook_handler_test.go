package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"course_checkout/internal/domain/settlement/service"
	"course_checkout/internal/pkg/config"
	"course_checkout/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	config.GlobalConfig.Razorpay.WebhookSecret = testSecret
	os.Exit(m.Run())
}

// MockSettlementService is a mock of service.SettlementService
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) HandleCaptured(ctx context.Context, e *service.PaymentEntity) (*service.Outcome, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

func (m *MockSettlementService) HandleRefund(ctx context.Context, e *service.RefundEntity) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "payment.captured",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       "pay_001",
					"order_id": "order_001",
					"amount":   999900,
					"currency": "INR",
					"method":   "card",
					"email":    "asha@example.com",
					"notes": map[string]string{
						"itemId":   "plan-1",
						"itemName": "Internship (3 Months)",
					},
				},
			},
		},
	})
	assert.NoError(t, err)
	return body
}

func perform(h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	router := gin.New()
	router.POST("/api/webhook", h.HandleWebhook)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleWebhook(t *testing.T) {
	t.Run("Valid signature settles and acknowledges", func(t *testing.T) {
		svc := new(MockSettlementService)
		svc.On("HandleCaptured", mock.Anything, mock.MatchedBy(func(e *service.PaymentEntity) bool {
			return e.ID == "pay_001" && e.Amount == 999900
		})).Return(&service.Outcome{}, nil)

		body := capturedBody(t)
		w := perform(NewWebhookHandler(svc), body, sign(body, testSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["received"])
		assert.Equal(t, "payment.captured", resp["event"])
		assert.NotContains(t, resp, "warning")
		svc.AssertExpectations(t)
	})

	t.Run("Partial failure surfaces as warning in the ack", func(t *testing.T) {
		svc := new(MockSettlementService)
		svc.On("HandleCaptured", mock.Anything, mock.Anything).Return(
			&service.Outcome{Warning: "captured amount 4999.00 does not match plan price 9999.00"}, nil)

		body := capturedBody(t)
		w := perform(NewWebhookHandler(svc), body, sign(body, testSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp, "warning")
	})

	t.Run("Wrong signature gets 401 and body is never parsed", func(t *testing.T) {
		svc := new(MockSettlementService)
		body := capturedBody(t)

		w := perform(NewWebhookHandler(svc), body, sign(body, "whsec_other"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "HandleCaptured")
	})

	t.Run("Missing signature header gets 401", func(t *testing.T) {
		svc := new(MockSettlementService)
		w := perform(NewWebhookHandler(svc), capturedBody(t), "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "HandleCaptured")
	})

	t.Run("Valid signature over malformed body gets 400", func(t *testing.T) {
		svc := new(MockSettlementService)
		body := []byte("{not json")

		w := perform(NewWebhookHandler(svc), body, sign(body, testSecret))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Settlement failure before commit gets 500 so the gateway retries", func(t *testing.T) {
		svc := new(MockSettlementService)
		svc.On("HandleCaptured", mock.Anything, mock.Anything).Return(nil, errors.New("db unavailable"))

		body := capturedBody(t)
		w := perform(NewWebhookHandler(svc), body, sign(body, testSecret))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Refund event reaches the refund path", func(t *testing.T) {
		svc := new(MockSettlementService)
		svc.On("HandleRefund", mock.Anything, mock.MatchedBy(func(e *service.RefundEntity) bool {
			return e.PaymentID == "pay_001"
		})).Return(nil)

		body, _ := json.Marshal(map[string]interface{}{
			"event": "refund.created",
			"payload": map[string]interface{}{
				"refund": map[string]interface{}{
					"entity": map[string]interface{}{"id": "rfnd_1", "payment_id": "pay_001"},
				},
			},
		})
		w := perform(NewWebhookHandler(svc), body, sign(body, testSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Unhandled events are acknowledged without processing", func(t *testing.T) {
		svc := new(MockSettlementService)
		body := []byte(`{"event":"payment.authorized","payload":{}}`)

		w := perform(NewWebhookHandler(svc), body, sign(body, testSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertNotCalled(t, "HandleCaptured")
		svc.AssertNotCalled(t, "HandleRefund")
	})
}
