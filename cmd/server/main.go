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

	"sosguard/internal/config"
	"sosguard/internal/core/capture"
	"sosguard/internal/core/session"
	"sosguard/internal/core/upload"
	"sosguard/internal/devices"
	handlers "sosguard/internal/handlers/shared"
	"sosguard/internal/middleware"
	"sosguard/internal/repositories/mongodb"
	"sosguard/internal/services"
	"sosguard/pkg/cache"
	"sosguard/pkg/database"
	"sosguard/pkg/logger"
	"sosguard/pkg/maps"
	"sosguard/pkg/push"
	"sosguard/pkg/sms"
	"sosguard/pkg/storage"
	"sosguard/pkg/websocket"
	"sosguard/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

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
		log.Warnf("Redis unavailable, running without cache: %v", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Repositories. The cache parameter tolerates a typed nil.
	var repoCache mongodb.CacheService
	if redisCache != nil {
		repoCache = redisCache
	}
	sessionRepo := mongodb.NewSessionRepository(db.Database, repoCache)
	artifactRepo := mongodb.NewArtifactRepository(db.Database)
	contactRepo := mongodb.NewContactRepository(db.Database)

	blobStore, err := buildBlobStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize evidence storage: %v", err)
	}

	uploader := upload.NewUploader(blobStore, artifactRepo, log)

	audioDevice := devices.NewFFmpegAudioDevice(cfg.Recording.ScratchDir, cfg.Recording.AudioSource)
	videoDevice := devices.NewFFmpegVideoDevice(cfg.Recording.ScratchDir, cfg.Recording.VideoSource)

	captureState := capture.NewState()
	coordinator := capture.NewCoordinator(audioDevice, videoDevice, uploader, captureState, cfg.Recording.VideoSettleGrace, log)
	store := session.NewStore(sessionRepo, coordinator, captureState, cfg.Recording.UploadDrainTimeout, log)

	// Alert channels.
	twilioProvider := sms.NewTwilioProvider(
		cfg.SMS.Twilio.AccountSID,
		cfg.SMS.Twilio.AuthToken,
		cfg.SMS.Twilio.FromNumber,
		cfg.SMS.Twilio.WhatsAppNumber,
		cfg.SMS.Twilio.VoiceNumber,
	)

	var smsFallback sms.SMSProvider
	if snsProvider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region); err != nil {
		log.Warnf("SNS fallback unavailable: %v", err)
	} else {
		smsFallback = snsProvider
	}

	var fcmProvider push.PushProvider
	if cfg.Push.FCM.Credentials != "" {
		provider, err := push.NewFCMProvider(cfg.Push.FCM.Credentials)
		if err != nil {
			log.Warnf("FCM unavailable: %v", err)
		} else {
			fcmProvider = provider
		}
	}

	var apnsProvider push.PushProvider
	if cfg.Push.APNS.KeyFile != "" {
		provider, err := push.NewAPNSProvider(
			cfg.Push.APNS.KeyFile,
			cfg.Push.APNS.KeyID,
			cfg.Push.APNS.TeamID,
			cfg.Push.APNS.BundleID,
			cfg.Push.APNS.Production,
		)
		if err != nil {
			log.Warnf("APNS unavailable: %v", err)
		} else {
			apnsProvider = provider
		}
	}

	var geocoder maps.Geocoder
	if cfg.Maps.GoogleMaps.APIKey != "" {
		gm, err := maps.NewGoogleMapsGeocoder(cfg.Maps.GoogleMaps.APIKey)
		if err != nil {
			log.Warnf("Geocoder unavailable: %v", err)
		} else {
			geocoder = gm
		}
	}

	wsHandler := websocket.NewHandler()

	notifier := services.NewNotificationService(
		contactRepo, sessionRepo,
		twilioProvider, smsFallback, twilioProvider,
		fcmProvider, apnsProvider,
		geocoder, wsHandler, log,
	)
	sosService := services.NewSOSService(sessionRepo, artifactRepo, store, coordinator, notifier, redisCache, cfg.Recording, log)
	contactService := services.NewContactService(contactRepo, log)

	sosHandler := handlers.NewSOSHandler(sosService)
	contactHandler := handlers.NewContactHandler(contactService)
	webhookHandler := handlers.NewWebhookHandler(log)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	v1 := router.Group("/api/v1")
	routes.SetupSOSRoutes(v1, cfg.Security.JWTSecret, sosHandler, contactHandler, webhookHandler, wsHandler)

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if err := db.Ping(); err != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"version": cfg.App.Version,
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Drain in-flight evidence before the process exits.
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	coordinator.StopCaptureSafely(shutdownCtx)
	select {
	case <-captureState.UploadsDone():
	case <-shutdownCtx.Done():
		log.Warn("Shutdown reached before uploads finished")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}
}

func buildBlobStore(cfg *config.StorageConfig) (storage.StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return storage.NewAWSS3Storage(cfg.AWS.Region, cfg.AWS.Bucket)
	case "gcs":
		return storage.NewGCPStorage(cfg.GCP.Bucket, cfg.GCP.CredentialsFile)
	default:
		return storage.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
	}
}
