package controllers

import (
	"net/http"

	"order-core/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentController struct {
	gateway *services.GatewayService
}

func NewPaymentController(gateway *services.GatewayService) *PaymentController {
	return &PaymentController{
		gateway: gateway,
	}
}

// GetPaymentURL returns the signed redirect URL for the hosted payment page.
func (pc *PaymentController) GetPaymentURL(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	paymentURL, appErr := pc.gateway.BuildPaymentURL(ctx.Request.Context(), orderID, ctx.ClientIP())
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"payment_url": paymentURL})
}

// GatewayCallback verifies the provider's signed return parameters and
// settles or fails the payment accordingly.
func (pc *PaymentController) GatewayCallback(ctx *gin.Context) {
	params := make(map[string]string)
	for key, values := range ctx.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	result, appErr := pc.gateway.VerifyCallback(ctx.Request.Context(), params)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, result)
}
