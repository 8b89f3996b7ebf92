package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/invoice"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("STOREFRONT_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("http", cfg.Gateway.Addr()),
		zap.Int("grpc_port", cfg.Server.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := repository.OpenMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// Redis
	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	checks := map[string]grpc.Check{
		"mysql": sqlDB.PingContext,
		"redis": redisRepo.Ping,
	}

	// MongoDB audit trail is optional
	var audit checkout.AuditLog
	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Warn("MongoDB unavailable, order audit disabled", zap.Error(err))
	} else {
		defer mongoRepo.Close(context.Background())
		audit = mongoRepo
		checks["mongodb"] = mongoRepo.Ping
	}

	// Service discovery
	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
			sd = nil
		} else {
			defer sd.Close()
		}
	}

	cardCfg := cfg.Payment.Card
	walletCfg := cfg.Payment.Wallet
	if sd != nil {
		cardCfg.BaseURL = sd.Endpoint(ctx, cardCfg.Service, cardCfg.BaseURL)
		walletCfg.BaseURL = sd.Endpoint(ctx, walletCfg.Service, walletCfg.BaseURL)
	}
	payments := payment.NewRegistry(
		payment.NewCardGateway(cardCfg, logger),
		payment.NewWalletGateway(walletCfg, logger),
		payment.CashOnDelivery{},
	)

	// Notifications
	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Mail.Enabled {
		sender = notify.NewSMTPSender(cfg.Mail)
	}
	notifier, err := notify.NewActorNotifier(sender, repository.NewUserRepository(db), logger)
	if err != nil {
		logger.Fatal("Failed to start notifier", zap.Error(err))
	}

	products := repository.NewProductRepository(db)
	svc := checkout.NewService(checkout.Dependencies{
		Catalog:   products,
		Orders:    repository.NewOrderRepository(db),
		Addresses: repository.NewAddressRepository(db),
		Payments:  payments,
		Notifier:  notifier,
		Audit:     audit,
		Invoices:  invoice.NewRenderer(cfg.Shop.Name, cfg.Shop.Currency),
	}, checkout.Options{
		Pricing: cart.Pricing{
			ShippingFee: cfg.Shop.ShippingFeeAmount(),
			TaxRate:     cfg.Shop.TaxRateValue(),
		},
		Currency:           cfg.Shop.Currency,
		StrictAvailability: cfg.Shop.StrictAvailability,
		PublicURL:          cfg.Gateway.PublicURL,
	}, logger)

	// gRPC health
	health := grpc.NewHealthServer(cfg.Server, checks, logger)
	go health.Watch(ctx, 30*time.Second)

	// HTTP gateway
	gin.SetMode(gin.ReleaseMode)
	gw := gateway.NewGateway(cfg, logger, gateway.Dependencies{
		Checkout: svc,
		Catalog:  products,
		Sessions: repository.NewSessionStore(redisRepo, cfg.Session.TTL),
		Health:   health.Probe,
	})
	gw.SetupRoutes()

	serverErr := make(chan error, 2)
	go func() {
		if err := health.Start(); err != nil {
			serverErr <- fmt.Errorf("health server: %w", err)
		}
	}()
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if sd != nil {
		if err := sd.Register(ctx, instance); err != nil {
			logger.Error("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd",
				zap.String("name", instance.Name),
				zap.String("address", instance.Addr()))
		}
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down gateway", zap.Error(err))
	}
	health.Stop()
	cancel()

	if err := notifier.Close(); err != nil {
		logger.Error("Failed to stop notifier", zap.Error(err))
	}

	logger.Info("Storefront stopped")
}
