package config

import (
	"fmt"
	"os"
)

type Config struct {
	Port             string
	Env              string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	// Hosted payment page provider (signed-redirect).
	GatewayBaseURL    string
	GatewayTmnCode    string
	GatewayHashSecret string
	GatewayReturnURL  string

	// Bank-transfer webhook matching.
	OrderCodePrefix string

	// Audit sink. Both channels are optional and best-effort.
	KafkaBrokers  string
	AuditTopic    string
	AuditSNSTopic string

	// Optional webhook dedup cache.
	RedisURL string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8083"),
		Env:              getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Ho_Chi_Minh"),

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		GatewayTmnCode:    os.Getenv("GATEWAY_TMN_CODE"),
		GatewayHashSecret: os.Getenv("GATEWAY_HASH_SECRET"),
		GatewayReturnURL:  getEnv("GATEWAY_RETURN_URL", "http://localhost:3000/payment/return"),

		OrderCodePrefix: getEnv("ORDER_CODE_PREFIX", "ORD"),

		KafkaBrokers:  os.Getenv("KAFKA_BROKERS"),
		AuditTopic:    getEnv("AUDIT_TOPIC", "order.audit"),
		AuditSNSTopic: os.Getenv("AUDIT_SNS_TOPIC_ARN"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.GatewayTmnCode == "" || cfg.GatewayHashSecret == "" {
		return nil, fmt.Errorf("GATEWAY_TMN_CODE and GATEWAY_HASH_SECRET are required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
