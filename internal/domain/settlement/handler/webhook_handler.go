package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"course_checkout/internal/domain/settlement/service"
	"course_checkout/internal/pkg/config"
	"course_checkout/pkg/logger"
	"course_checkout/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 关注的网关事件
const (
	EventPaymentCaptured = "payment.captured"
	EventRefundCreated   = "refund.created"
)

// envelope 事件信封，验签通过后才反序列化
type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity service.PaymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity service.RefundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type WebhookHandler struct {
	service service.SettlementService
	secret  func() string
}

func NewWebhookHandler(s service.SettlementService) *WebhookHandler {
	return &WebhookHandler{
		service: s,
		secret:  func() string { return config.GlobalConfig.Razorpay.WebhookSecret },
	}
}

// HandleWebhook 网关异步通知入口
// 签名在原始字节上计算，验签失败的请求体永远不会被解析；
// 提交后的失败只会出现在编排器里，不影响这里的确认应答
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Razorpay-Signature")) {
		metrics.WebhooksProcessed.WithLabelValues("unknown", "unauthorized").Inc()
		logger.Log.Warn("webhook signature verification failed",
			zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	switch env.Event {
	case EventPaymentCaptured:
		outcome, err := h.service.HandleCaptured(c.Request.Context(), &env.Payload.Payment.Entity)
		if err != nil {
			// 提交前失败：回 500 让网关按正常节奏重试
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
			return
		}
		resp := gin.H{"received": true, "event": env.Event}
		if outcome.Warning != "" {
			resp["warning"] = outcome.Warning
		}
		c.JSON(http.StatusOK, resp)

	case EventRefundCreated:
		if err := h.service.HandleRefund(c.Request.Context(), &env.Payload.Refund.Entity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refund processing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true, "event": env.Event})

	default:
		metrics.WebhooksProcessed.WithLabelValues(env.Event, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true, "event": env.Event})
	}
}

// verifySignature 对原始请求体做 HMAC-SHA256，常数时间比较十六进制摘要
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	secret := h.secret()
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
