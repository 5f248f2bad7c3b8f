package main

import (
	"context"
	"log"
	"strings"
	"time"

	"order-core/config"
	"order-core/controllers"
	"order-core/database"
	"order-core/kafka"
	"order-core/logger"
	"order-core/models"
	aws_pkg "order-core/pkg/aws"
	"order-core/repository"
	"order-core/routes"
	"order-core/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.OrderStatusHistory{},
		&models.Variant{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}

	// Audit sink: Kafka plus optional SNS mirror, both best-effort.
	var auditProducer services.AuditPublisher
	if cfg.KafkaBrokers != "" {
		producer := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.AuditTopic)
		defer producer.Close()
		auditProducer = producer
	}
	var snsClient aws_pkg.SNSPublisher
	if cfg.AuditSNSTopic != "" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			logger.Log.Warn("AWS config unavailable, SNS audit mirror disabled", zap.Error(err))
		} else {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
	}
	auditSink := services.NewAuditSink(auditProducer, snsClient, cfg.AuditSNSTopic, logger.Log)

	var deduper repository.Deduper
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Log.Warn("Redis unavailable, webhook dedup cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			deduper = repository.NewRedisDeduper(redisClient, 72*time.Hour)
		}
	}

	store := repository.NewGormStore(db)
	transitions := services.NewTransitionTable()
	orderService := services.NewOrderService(store, transitions, auditSink, cfg.OrderCodePrefix, logger.Log)
	gatewayService := services.NewGatewayService(services.GatewayConfig{
		BaseURL:    cfg.GatewayBaseURL,
		TmnCode:    cfg.GatewayTmnCode,
		HashSecret: cfg.GatewayHashSecret,
		ReturnURL:  cfg.GatewayReturnURL,
	}, store, orderService, logger.Log)
	reconciler := services.NewReconcilerService(orderService, deduper, cfg.OrderCodePrefix, logger.Log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger())

	routes.RegisterRoutes(r,
		controllers.NewOrderController(orderService),
		controllers.NewPaymentController(gatewayService),
		controllers.NewWebhookController(reconciler),
	)

	logger.Log.Info("order-core listening", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed", zap.Error(err))
	}
}
