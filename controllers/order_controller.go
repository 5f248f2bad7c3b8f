package controllers

import (
	"net/http"
	"strconv"

	"order-core/middleware"
	"order-core/models"
	"order-core/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderController struct {
	orderService services.OrderService
}

func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

// CreateOrder handles order creation requests
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req services.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, appErr := oc.orderService.CreateOrder(ctx.Request.Context(), userID, &req)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, order)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
	Note   string             `json:"note"`
}

// UpdateStatus applies an administrator transition to the order.
func (oc *OrderController) UpdateStatus(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, appErr := oc.orderService.UpdateStatus(ctx.Request.Context(), orderID, req.Status, userID.String(), req.Reason, req.Note)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel applies the customer cancel with its stricter predicate.
func (oc *OrderController) Cancel(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req cancelRequest
	_ = ctx.ShouldBindJSON(&req)

	order, appErr := oc.orderService.CancelOrder(ctx.Request.Context(), orderID, userID, req.Reason)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, limit := parsePaginationParams(ctx)

	result, appErr := oc.orderService.GetUserOrders(ctx.Request.Context(), userID, page, limit)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetAllOrders returns paginated orders for all users (admin only)
func (oc *OrderController) GetAllOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	result, appErr := oc.orderService.GetAllOrders(ctx.Request.Context(), page, limit)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetOrderByID returns one order with items and payments.
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, appErr := oc.orderService.GetOrder(ctx.Request.Context(), orderID)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	if order.UserID != userID && !middleware.IsAdmin(ctx) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// ListPayments returns the order's payment rows, newest first.
func (oc *OrderController) ListPayments(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, appErr := oc.orderService.GetOrder(ctx.Request.Context(), orderID)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	if order.UserID != userID && !middleware.IsAdmin(ctx) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	payments, appErr := oc.orderService.ListPayments(ctx.Request.Context(), orderID)
	if appErr != nil {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"payments": payments})
}

func parsePaginationParams(ctx *gin.Context) (int, int) {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
