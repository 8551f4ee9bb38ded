package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/medflow/backend/internal/application/billing"
	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/pricing"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
	"github.com/medflow/backend/internal/infrastructure/auth"
	"github.com/medflow/backend/internal/infrastructure/cache"
	"github.com/medflow/backend/internal/infrastructure/config"
	"github.com/medflow/backend/internal/infrastructure/event"
	"github.com/medflow/backend/internal/infrastructure/logger"
	"github.com/medflow/backend/internal/infrastructure/persistence"
	"github.com/medflow/backend/internal/interfaces/http/handler"
	"github.com/medflow/backend/internal/interfaces/http/middleware"
	"github.com/medflow/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	// Database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	siteDirectory := persistence.NewGormSiteDirectory(db.DB)
	coverageResolver := persistence.NewGormCoverageResolver(db.DB)

	// Domain services
	priceResolver := pricing.NewCatalogResolver(catalogRepo, siteDirectory)
	gate := billing.NewPermissionGate(billing.DefaultGateTable())

	// Event bus with the billing audit trail subscribed
	eventBus := event.NewInMemoryEventBus(log)
	auditHandler := event.NewBillingAuditHandler(log)
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)

	// Invoice view cache (optional)
	var viewCache appbilling.ViewCache
	if cfg.Cache.Enabled {
		factory := cache.NewViewCacheFactory(cfg.Redis, cfg.Cache.InvoiceViewTTL,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(true),
		)
		viewCache, err = factory.CreateCache()
		if err != nil {
			log.Warn("Invoice view cache disabled", zap.Error(err))
		}
	}

	// The price resolver goes in bare: the service scopes its memoizing
	// wrapper to single operations, so price changes are visible on the
	// next request instead of surviving until restart.
	ledgerService := appbilling.NewLedgerService(appbilling.LedgerServiceConfig{
		InvoiceRepo:    invoiceRepo,
		PriceResolver:  priceResolver,
		Coverage:       coverageResolver,
		Gate:           gate,
		EventPublisher: eventBus,
		ViewCache:      viewCache,
		Logger:         log,

		DefaultCurrency:     valueobject.Currency(cfg.Billing.DefaultCurrency),
		ToleranceMinorUnits: cfg.Billing.OverpaymentToleranceMinorUnits,
		RetryAttempts:       cfg.Billing.ConflictRetryAttempts,
	})

	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
	)

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	jwtConfig.SkipPaths = append(jwtConfig.SkipPaths, "/api/v1/system/info")
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Routes
	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("Failed to register binding validators", zap.Error(err))
	}
	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(cfg.App.Name, version, db.Ping))
	r.Register(handler.NewInvoiceHandler(ledgerService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
