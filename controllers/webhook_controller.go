package controllers

import (
	"io"
	"net/http"

	"order-core/services"

	"github.com/gin-gonic/gin"
)

type WebhookController struct {
	reconciler *services.ReconcilerService
}

func NewWebhookController(reconciler *services.ReconcilerService) *WebhookController {
	return &WebhookController{
		reconciler: reconciler,
	}
}

// BankTransfer ingests a bank-transfer notification batch in any of the
// aggregator's delivery shapes and returns the settled notifications.
func (wc *WebhookController) BankTransfer(ctx *gin.Context) {
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	results, appErr := wc.reconciler.ProcessBatch(ctx.Request.Context(), payload)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results})
}
