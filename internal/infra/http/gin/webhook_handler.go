package ginserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	paymentsapp "peerrent/internal/app/handlers/payments"
)

const (
	signatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 64 << 10
)

// WebhookHandler receives gateway notifications. When Secret is set the body must carry a
// hex HMAC-SHA256 signature. Replays answer 200 so the gateway stops retrying.
type WebhookHandler struct {
	Commands commands.Bus
	Secret   string
	Logger   *slog.Logger
}

type webhookRequest struct {
	Type           string    `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	GatewayEventID string    `json:"gateway_event_id"`
	Amount         *int64    `json:"amount"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (h WebhookHandler) Payment(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if h.Secret != "" && !validSignature(h.Secret, body, c.GetHeader(signatureHeader)) {
		if h.Logger != nil {
			h.Logger.WarnContext(c.Request.Context(), "webhook signature mismatch", slog.String("remote", c.ClientIP()))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := paymentsapp.ReconcileCommand{
		Type:           req.Type,
		ReservationID:  req.ReservationID,
		GatewayEventID: req.GatewayEventID,
		Amount:         req.Amount,
		At:             req.OccurredAt,
	}
	result, err := commands.Dispatch[paymentsapp.ReconcileCommand, *dto.ReconcileResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Sign returns the signature the gateway is expected to send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, got string) bool {
	got = strings.TrimPrefix(strings.TrimSpace(got), "sha256=")
	want, err := hex.DecodeString(Sign(secret, body))
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	return hmac.Equal(want, raw)
}

var _ WebhookHTTP = WebhookHandler{}
