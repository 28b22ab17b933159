package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"shop-service/apperrors"
	"shop-service/services"
)

type WebhookController struct {
	webhookService *services.WebhookService
}

func NewWebhookController(webhookService *services.WebhookService) *WebhookController {
	return &WebhookController{webhookService: webhookService}
}

// StripeWebhook receives signed processor events. Authentication is by
// payload signature only; any non-2xx response makes the processor
// retry the delivery.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	sigHeader := c.GetHeader("Stripe-Signature")

	if err := wc.webhookService.HandleEvent(c.Request.Context(), payload, sigHeader); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
