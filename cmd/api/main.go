package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ZED-Magdy/storefront-checkout/internal/aws"
	"github.com/ZED-Magdy/storefront-checkout/internal/cache"
	"github.com/ZED-Magdy/storefront-checkout/internal/handlers"
	"github.com/ZED-Magdy/storefront-checkout/internal/metrics"
	"github.com/ZED-Magdy/storefront-checkout/internal/postgres"
	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server != nil {
		r.Use(cfg.Server.Middleware())
	}

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	ctx := context.Background()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if err := postgres.RunMigrations(databaseURL, getEnv("MIGRATIONS_PATH", "migrations")); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := postgres.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	defer redisClient.Close()

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	cfg := handlers.HandlerConfig{
		Pool:       pool,
		Cache:      cache.NewRedisCache(redisClient),
		Publisher:  aws.NewPublisher(clients.SQS, os.Getenv("ORDERS_QUEUE_URL")),
		CloudWatch: aws.NewMetricEmitter(clients.CloudWatch, getEnv("METRICS_NAMESPACE", "StorefrontCheckout")),
		Server:     metrics.NewServerMetrics("api"),
		Pricing: pricing.Config{
			ShippingCents:  getEnvInt64("ORDER_SHIPPING_IN_CENTS", 1500),
			TaxRatePercent: getEnvInt64("ORDER_TAX_RATE", 15),
		},
		IdempotencyTTL: time.Duration(getEnvInt64("IDEMPOTENCY_TTL_HOURS", 48)) * time.Hour,
		TxTimeout:      time.Duration(getEnvInt64("CHECKOUT_TX_TIMEOUT_MS", 10000)) * time.Millisecond,
		QuoteTTL:       time.Duration(getEnvInt64("QUOTE_CACHE_TTL_SECONDS", 300)) * time.Second,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid value for %s: %v", key, err)
	}
	return n
}
