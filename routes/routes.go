package routes

import (
	"github.com/gin-gonic/gin"

	"shop-service/controllers"
	"shop-service/middleware"
)

// Register wires all HTTP endpoints. The webhook endpoint is the only
// one not behind session auth; it is trusted via payload signature.
func Register(
	r *gin.Engine,
	jwtSecret string,
	pc *controllers.ProductController,
	cc *controllers.CartController,
	oc *controllers.OrderController,
	wc *controllers.WebhookController,
) {
	r.GET("/products", pc.ListProducts)
	r.POST("/stripe-webhook", wc.StripeWebhook)

	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(jwtSecret))
	auth.GET("/cart", cc.GetCart)
	auth.POST("/cart", cc.AddToCart)
	auth.DELETE("/cart", cc.RemoveFromCart)
	auth.POST("/create-order", oc.CreateOrder)
	auth.GET("/orders", oc.GetOrders)
	auth.POST("/pay-order", oc.PayOrder)
}
