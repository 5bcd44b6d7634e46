package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/pkg/common"
	"github.com/myanride/dispatch/pkg/logger"
	"github.com/myanride/dispatch/pkg/models"
)

const (
	eventDriverPresence  = "driver.presence"
	eventDeliveryReceipt = "notification.delivery"
	maxWebhookBodyBytes  = 64 * 1024
)

// PresenceSink receives driver presence updates from partner fleets
type PresenceSink interface {
	UpdateDriverLocation(ctx context.Context, driverID uuid.UUID, loc models.Location, heading float64) error
	SetDriverOffline(ctx context.Context, driverID uuid.UUID) error
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type presenceEvent struct {
	DriverID uuid.UUID        `json:"driver_id"`
	Online   bool             `json:"online"`
	Location *models.Location `json:"location,omitempty"`
	Heading  float64          `json:"heading"`
}

type deliveryEvent struct {
	MessageID string `json:"message_id"`
	DriverID  string `json:"driver_id"`
	Status    string `json:"status"`
}

// Handler ingests signed webhook events from partner systems. Requests with
// a missing or invalid signature are rejected before the body is parsed.
type Handler struct {
	secret   []byte
	presence PresenceSink
}

func NewHandler(signingSecret string, presence PresenceSink) *Handler {
	return &Handler{secret: []byte(signingSecret), presence: presence}
}

// HandleEvent handles POST /webhooks/events
func (h *Handler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Failed to read request body", err))
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" || !Verify(h.secret, body, signature) {
		logger.WithContext(c.Request.Context()).Warn("Rejected webhook with bad signature",
			zap.String("remote_addr", c.ClientIP()))
		common.AppErrorResponse(c, common.NewUnauthorizedError("Invalid signature"))
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid event payload", err))
		return
	}

	switch env.Type {
	case eventDriverPresence:
		h.handlePresence(c, env.Data)
	case eventDeliveryReceipt:
		h.handleDelivery(c, env.Data)
	default:
		// unknown event types are acknowledged so senders do not retry
		logger.WithContext(c.Request.Context()).Info("Ignoring unknown webhook event",
			zap.String("type", env.Type))
		common.SuccessResponse(c, gin.H{"handled": false})
	}
}

func (h *Handler) handlePresence(c *gin.Context, data json.RawMessage) {
	var ev presenceEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.DriverID == uuid.Nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid presence event", err))
		return
	}

	var err error
	if ev.Online && ev.Location != nil {
		err = h.presence.UpdateDriverLocation(c.Request.Context(), ev.DriverID, *ev.Location, ev.Heading)
	} else {
		err = h.presence.SetDriverOffline(c.Request.Context(), ev.DriverID)
	}
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to apply presence event",
			zap.String("driver_id", ev.DriverID.String()), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to apply presence event")
		return
	}

	common.SuccessResponse(c, gin.H{"handled": true})
}

func (h *Handler) handleDelivery(c *gin.Context, data json.RawMessage) {
	var ev deliveryEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("Invalid delivery event", err))
		return
	}

	logger.WithContext(c.Request.Context()).Info("Notification delivery receipt",
		zap.String("message_id", ev.MessageID),
		zap.String("driver_id", ev.DriverID),
		zap.String("status", ev.Status))
	common.SuccessResponse(c, gin.H{"handled": true})
}

// RegisterRoutes mounts the webhook endpoint. Webhooks authenticate by
// signature, not by JWT, so this group bypasses the auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// An empty secret would let any sender sign with the empty key, so the
	// ingress stays unmounted until one is configured.
	if len(h.secret) == 0 {
		logger.Get().Warn("Webhook signing secret not configured, webhook ingress disabled")
		return
	}
	rg.POST("/webhooks/events", h.HandleEvent)
}
