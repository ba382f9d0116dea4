package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cantapp/canteen-core/internal/config"
	"github.com/cantapp/canteen-core/internal/database"
	"github.com/cantapp/canteen-core/internal/handler"
	appmw "github.com/cantapp/canteen-core/internal/middleware"
	"github.com/cantapp/canteen-core/internal/queue"
	"github.com/cantapp/canteen-core/internal/repository"
	"github.com/cantapp/canteen-core/internal/router"
	"github.com/cantapp/canteen-core/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set vars directly
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Env == "dev" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting disabled")
	}

	// Repositories
	products := repository.NewProductRepository(db)
	reservations := repository.NewStockReservationRepository(db)
	orders := repository.NewOrderRepository(db)
	wallets := repository.NewWalletRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	restrictions := repository.NewRestrictionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)

	// Services
	publisher := queue.NewPublisher(logger)
	stock := service.NewStockService(products, reservations,
		time.Duration(cfg.ReservationTTL)*time.Minute, logger)
	ledger := service.NewLedgerService(wallets, ledgerRepo, logger)
	audit := service.NewAuditService(auditRepo, cfg.AuditHMACSecret, logger)
	checkout := service.NewCheckoutService(db, orders, products, restrictions,
		wallets, users, stock, ledger, audit, publisher, logger)
	walletSvc := service.NewWalletService(db, wallets, restrictions, users, ledger, audit, logger)
	guardianSvc := service.NewGuardianService(db, restrictions, audit, logger)

	// Background workers
	sweeper := service.NewSweeper(reservations, logger)
	if err := sweeper.Start(cfg.SweepEveryMin); err != nil {
		logger.Fatal("start sweeper failed", zap.Error(err))
	}
	defer sweeper.Stop()

	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			logger.Warn("order consumer stopped", zap.Error(err))
		}
	}()

	// HTTP layer
	e := echo.New()
	e.HideBanner = true

	rateLimit := appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e, handler.NewWebhookHandler(walletSvc, cfg.WebhookSecret, logger))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterCommerce(e, cfg.JWTSecret, rateLimit,
		handler.NewCheckoutHandler(checkout),
		handler.NewCanteenHandler(checkout, orders),
		handler.NewWalletHandler(walletSvc, ledger),
		handler.NewGuardianHandler(guardianSvc),
		handler.NewAuditHandler(audit),
	)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
