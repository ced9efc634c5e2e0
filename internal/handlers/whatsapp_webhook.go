package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/contentory/ingest/internal/chatwoot"
	"github.com/contentory/ingest/internal/webhook"
)

// WhatsAppWebhookHandler receives message_created events from the chat
// platform and hands them to the processing pipeline.
type WhatsAppWebhookHandler struct {
	processor *webhook.Processor
	logger    *slog.Logger
}

func NewWhatsAppWebhookHandler(log *slog.Logger, processor *webhook.Processor) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{
		processor: processor,
		logger:    log.With(slog.String("handler", "whatsapp_webhook")),
	}
}

func (h *WhatsAppWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/whatsapp", h.Handle)
}

// Handle processes one webhook delivery. Status codes follow the platform's
// retry contract: 400 for payloads that can never succeed, 200 for both
// processed and filtered events, 500 only for failures worth redelivering.
func (h *WhatsAppWebhookHandler) Handle(c echo.Context) error {
	var payload chatwoot.WebhookPayload
	if err := c.Bind(&payload); err != nil {
		h.logger.Warn("malformed webhook body", slog.String("error", err.Error()))
		return c.JSON(http.StatusBadRequest, webhook.Result{
			Message: "malformed JSON body",
		})
	}

	result, err := h.processor.Process(c.Request().Context(), &payload)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidPayload) {
			h.logger.Warn("webhook rejected", slog.String("error", err.Error()))
			return c.JSON(http.StatusBadRequest, result)
		}
		h.logger.Error("webhook processing failed",
			slog.Int64("message_id", payload.ID),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusInternalServerError, result)
	}

	return c.JSON(http.StatusOK, result)
}
