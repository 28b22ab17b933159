package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shop-service/apperrors"
	"shop-service/middleware"
	"shop-service/services"
)

type OrderController struct {
	orderService *services.OrderService
}

func NewOrderController(orderService *services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrder snapshots the user's cart into a pending order.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		ShippingAddress string `json:"shipping_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	snapshot, err := oc.orderService.CreateOrder(c.Request.Context(), userID, req.ShippingAddress)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetOrders returns the user's order history, newest first.
func (oc *OrderController) GetOrders(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orders, err := oc.orderService.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// PayOrder confirms payment of a pending order.
func (oc *OrderController) PayOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		OrderID         uuid.UUID `json:"order_id" binding:"required"`
		PaymentMethodID string    `json:"payment_method_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, err := oc.orderService.ConfirmPayment(c.Request.Context(), userID, req.OrderID, req.PaymentMethodID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	if !result.Succeeded {
		c.JSON(http.StatusBadRequest, gin.H{
			"message":  "Payment failed",
			"order_id": result.OrderID,
			"status":   result.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Payment successful",
		"order_id": result.OrderID,
		"status":   result.Status,
	})
}
