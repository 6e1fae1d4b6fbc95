package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkolesni/billing-sync/internal/api/rest"
	"github.com/dkolesni/billing-sync/internal/api/rest/handlers"
	"github.com/dkolesni/billing-sync/internal/config"
	"github.com/dkolesni/billing-sync/internal/db"
	"github.com/dkolesni/billing-sync/internal/kafka"
	"github.com/dkolesni/billing-sync/internal/metrics"
	"github.com/dkolesni/billing-sync/internal/middleware"
	"github.com/dkolesni/billing-sync/internal/repository"
	"github.com/dkolesni/billing-sync/internal/service"
	stripeclient "github.com/dkolesni/billing-sync/internal/stripe"
	"github.com/dkolesni/billing-sync/internal/webhook"
	"github.com/dkolesni/billing-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	log := logger.New(os.Getenv("APP_ENV"))
	defer log.Sync()

	log.Infow("billing-sync starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Stripe.APIKey == "" {
		log.Warnw("Stripe API key is not set; checkout session creation will fail")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// База данных
	dbClient, err := db.NewDBClient(cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Errorw("Error closing database connection", "error", err)
		}
	}()

	// Репозиторий аккаунтов, при доступном Redis — с кешированием
	baseRepo := repository.NewPostgresAccountRepository(dbClient.DB(), log)
	accountRepo := baseRepo
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisCacheRepository(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			log,
		)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
			accountRepo = repository.NewCachedAccountRepository(baseRepo, redisCache, log)
			log.Infow("Using cached account repository")
		}
	}

	// Kafka producer; без брокеров события просто не публикуются
	var producer kafka.Producer = kafka.NoOpProducer{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		} else {
			producer = kafkaProducer
			defer func() {
				if err := kafkaProducer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	// Ядро обработки вебхуков
	verifier := webhook.NewVerifier(cfg.Stripe.WebhookSecret)
	reconciler := service.NewReconciler(accountRepo, producer, webhookMetrics, log)
	router := webhook.NewRouter(reconciler, log)

	// Checkout
	stripeClient := stripeclient.NewClient(cfg.Stripe.APIKey, log)
	checkoutService := service.NewCheckoutService(accountRepo, stripeClient, cfg.Plans, log)

	// HTTP
	webhookHandler := handlers.NewWebhookHandler(verifier, router, webhookMetrics, log)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, log)
	authMiddleware, err := middleware.NewJWTMiddleware(cfg.Auth.JWTSecret, log)
	if err != nil {
		log.Fatalw("Failed to initialize auth middleware", "error", err)
	}

	engine := rest.SetupRouter(webhookHandler, checkoutHandler, authMiddleware, registry, log)
	server := rest.NewServer(engine, cfg, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Graceful shutdown по SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Errorw("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Graceful shutdown failed", "error", err)
	}
	log.Infow("billing-sync stopped")
}
