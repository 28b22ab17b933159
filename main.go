package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/controllers"
	"shop-service/database"
	"shop-service/kafka"
	"shop-service/logger"
	"shop-service/repository"
	"shop-service/routes"
	"shop-service/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zapLogger, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer zapLogger.Sync()

	db, err := database.Connect(cfg.PostgresDSN())
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		// Catalog caching is optional; degrade to the database.
		zapLogger.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		redisClient = nil
	}

	productRepo := repository.NewGormProductRepository(db)
	cartRepo := repository.NewGormCartRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookKey, 30*time.Second)

	var events kafka.PaymentEventSender
	var producer *kafka.PaymentEventProducer
	if cfg.KafkaBrokers != "" {
		producer = kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentTopic)
		defer producer.Close()
		events = producer
	}

	productService := services.NewProductService(productRepo, redisClient, cfg.ProductCacheTTL, zapLogger)
	cartService := services.NewCartService(cartRepo, productRepo, zapLogger)
	orderService := services.NewOrderService(orderRepo, cartRepo, userRepo, gateway, events, cfg.Currency, zapLogger)
	webhookService := services.NewWebhookService(orderRepo, gateway, events, cfg.Currency, zapLogger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(zapLogger))

	routes.Register(r, cfg.JWTSecret,
		controllers.NewProductController(productService),
		controllers.NewCartController(cartService),
		controllers.NewOrderController(orderService),
		controllers.NewWebhookController(webhookService),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		zapLogger.Info("shop service running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLogger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("shutdown error", zap.Error(err))
	}
}
