package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/internal/app/service/reconciler"
	"github.com/fatflowers/membership/pkg/logctx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderStripeSignature carries the processor's webhook signature.
	HeaderStripeSignature = "Stripe-Signature"
	maxWebhookBodyBytes   = 1 << 20
)

// WebhookIngress is implemented by reconciler.Ingress.
type WebhookIngress interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) (*reconciler.Delivery, error)
}

type WebhookAck struct {
	Received bool   `json:"received"`
	Event    string `json:"event"`
}

type ErrorBody struct {
	Error string `json:"error"`
}

// @Summary      Billing webhook
// @Description  Receives signed processor events. The raw body is verified against the Stripe-Signature header before anything is written.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Processor signature"
// @Param        payload body string true "Raw event payload"
// @Success      200  {object}  handlers.WebhookAck
// @Failure      400  {object}  handlers.ErrorBody
// @Failure      500  {object}  handlers.ErrorBody
// @Router       /api/v1/billing/webhook [post]
func ApiBillingWebhook(in WebhookIngress, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			lg.Warnw("webhook_body_unreadable", "err", err)
			c.JSON(http.StatusBadRequest, ErrorBody{Error: "unreadable request body"})
			return
		}

		d, err := in.Handle(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature))
		if err != nil {
			status := webhookStatus(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				msg = "webhook handler failed"
			}
			c.JSON(status, ErrorBody{Error: msg})
			return
		}
		c.JSON(http.StatusOK, WebhookAck{Received: true, Event: string(d.EventType)})
	}
}

// webhookStatus maps ingress errors to the status the processor acts on: 4xx is
// final, 5xx is redelivered.
func webhookStatus(err error) int {
	switch {
	case errors.Is(err, billingevent.ErrSignatureInvalid),
		errors.Is(err, billingevent.ErrInvalidPayload),
		errors.Is(err, billingconfig.ErrConfigMissing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func RegisterWebhookRoutes(r gin.IRouter, in WebhookIngress, log *zap.SugaredLogger) {
	r.POST("/webhook", ApiBillingWebhook(in, log))
}
