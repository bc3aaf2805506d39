package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ringokai/internal/config"
	"ringokai/internal/handlers"
	"ringokai/internal/middleware"
	"ringokai/internal/repositories/mongodb"
	"ringokai/internal/services"
	"ringokai/internal/utils"
	"ringokai/pkg/cache"
	"ringokai/pkg/database"
	"ringokai/pkg/logger"
	"ringokai/pkg/notify"
	"ringokai/pkg/storage"
	"ringokai/pkg/verify"
	"ringokai/pkg/wishlist"
	"ringokai/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Database
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		appLogger.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	cacheService := services.NewCacheService(redisCache, appLogger,
		cfg.Economy.CacheKeyPrefix, cfg.Economy.CacheTTL)

	// Repositories
	participantRepo := mongodb.NewParticipantRepository(db.Database, cacheService)
	rewardRepo := mongodb.NewRewardRepository(db.Database)
	purchaseRepo := mongodb.NewPurchaseRepository(db.Database)
	wishlistRepo := mongodb.NewWishlistRepository(db.Database)
	metricsRepo := mongodb.NewMetricsRepository(db.Database)
	referralRepo := mongodb.NewReferralRepository(db.Database)

	// External collaborators
	var verifier verify.Provider = verify.NewStubProvider()
	if cfg.Verify.Endpoint != "" {
		verifier = verify.NewHTTPProvider(cfg.Verify.Endpoint, cfg.Verify.APIKey, cfg.Verify.Timeout)
	}

	var emailSender notify.EmailSender = notify.NewNoopSender()
	if cfg.Notify.ResendAPIKey != "" {
		emailSender = notify.NewResendSender(cfg.Notify.ResendAPIKey, cfg.Notify.FromAddress)
	}

	var inspector services.WishlistInspector = wishlist.NewStubInspector()
	if cfg.Verify.InspectorEndpoint != "" {
		inspector = wishlist.NewHTTPInspector(cfg.Verify.InspectorEndpoint, cfg.Verify.InspectorAPIKey, cfg.Verify.Timeout)
	}

	storageProvider, err := newStorageProvider(cfg.Storage)
	if err != nil {
		appLogger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Services
	rtpService := services.NewRTPService(participantRepo, appLogger, nil)
	probabilityService := services.NewProbabilityService(participantRepo, rtpService, appLogger,
		cfg.Economy.LaunchedAt, nil)
	drawService := services.NewDrawService(participantRepo, rewardRepo, purchaseRepo, metricsRepo,
		probabilityService, rtpService, appLogger, nil, nil)
	purchaseService := services.NewPurchaseService(participantRepo, purchaseRepo, wishlistRepo,
		verifier, emailSender, storageProvider, rtpService, appLogger, nil)
	referralService := services.NewReferralService(participantRepo, referralRepo, appLogger)
	wishlistService := services.NewWishlistService(participantRepo, wishlistRepo, inspector, appLogger, nil)
	participantService := services.NewParticipantService(participantRepo, rewardRepo, purchaseRepo, appLogger)
	adminService := services.NewAdminService(participantRepo, purchaseRepo, wishlistRepo, rewardRepo,
		metricsRepo, rtpService, probabilityService, appLogger, nil)

	// Router
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))

	api := router.Group("/api")
	routes.Setup(api, &routes.Handlers{
		Participant: handlers.NewParticipantHandler(participantService, referralService),
		Reward:      handlers.NewRewardHandler(drawService),
		Purchase:    handlers.NewPurchaseHandler(purchaseService),
		Referral:    handlers.NewReferralHandler(referralService),
		Wishlist:    handlers.NewWishlistHandler(wishlistService),
		Admin:       handlers.NewAdminHandler(adminService, purchaseService),
	}, cfg.Security.AdminToken)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": utils.AppVersion,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithField("port", cfg.App.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Errorf("Forced shutdown: %v", err)
	}
}

func newStorageProvider(cfg *config.StorageConfig) (storage.StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return storage.NewAWSS3Storage(cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNDomain)
	default:
		return storage.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
	}
}
