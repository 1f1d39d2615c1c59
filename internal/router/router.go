package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anonto42/classifieds/backend/internal/handlers"
	"github.com/anonto42/classifieds/backend/internal/jobs"
	"github.com/anonto42/classifieds/backend/internal/middleware"
	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/realtime"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/anonto42/classifieds/backend/pkg/config"
	"github.com/anonto42/classifieds/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
)

const apiPrefix = "/api/v1"

// App holds the background pieces main has to run and stop alongside the HTTP server
type App struct {
	Hub     *realtime.Hub
	Broker  realtime.Broker
	Janitor *jobs.Janitor
}

// SetupRoutes migrates the SQL schema, builds every repository, service and handler and
// registers their routes. fb may be nil when Firebase is not configured.
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, fb *firebase.App) (*App, error) {
	// AutoMigrate SQL models
	if err := db.SQL.AutoMigrate(&models.Profile{}, &models.Conversation{}, &models.Message{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate models: %w", err)
	}
	log.Printf("%s auto-migrations completed for all models.", cfg.DBDriver)

	mongoDB := db.Mongo.Database(cfg.MongoDatabase)

	// --- Initialize Repositories ---
	profileRepo := repositories.NewSQLProfileRepository(db.SQL)
	conversationRepo := repositories.NewSQLConversationRepository(db.SQL)
	messageRepo := repositories.NewSQLMessageRepository(db.SQL)
	listingRepo := repositories.NewMongoListingRepository(mongoDB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := listingRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create listing indexes: %w", err)
	}

	var revocations repositories.TokenRevocationRepository = repositories.NoopTokenRevocationRepository{}
	if db.Redis != nil {
		revocations = repositories.NewRedisTokenRevocationRepository(db.Redis)
	}

	store, err := newObjectStore(cfg, mongoDB, fb)
	if err != nil {
		return nil, err
	}
	log.Printf("Image storage driver: %s", cfg.StorageDriver)

	// --- Realtime ---
	hub := realtime.NewHub()
	var broker realtime.Broker = realtime.NewLocalBroker(hub)
	if db.Redis != nil {
		broker = realtime.NewRedisBroker(db.Redis, hub)
	}

	// --- Services ---
	var verifier session.IDTokenVerifier
	if fb != nil && fb.AuthClient != nil {
		verifier = fb.AuthClient
	}
	authService := services.NewAuthService(profileRepo, revocations, verifier, cfg.JWTSecret, cfg.JWTTTL)
	profileService := services.NewProfileService(profileRepo, listingRepo)
	listingService := services.NewListingService(listingRepo, profileRepo, store, services.ListingLimits{
		MaxImages:     cfg.MaxImages,
		MaxImageBytes: cfg.MaxUploadBytes,
	})
	conversationService := services.NewConversationService(conversationRepo, messageRepo, listingRepo, profileRepo, broker)

	authCfg := middleware.AuthConfig{
		JWTSecret:        cfg.JWTSecret,
		Revoked:          revocations,
		Firebase:         verifier,
		Profiles:         authService,
		QueryTokenRoutes: []string{apiPrefix + handlers.StreamRoute},
	}
	requireAuth := middleware.Auth(authCfg)

	var limiter middleware.Limiter
	if db.Redis != nil {
		limiter = middleware.NewRedisLimiter(db.Redis, "messages", cfg.MessageRateLimit, time.Minute)
	}

	e.Use(middleware.Metrics())

	// Health check and metrics - always accessible
	healthHandler := handlers.NewHealthHandler(healthChecks(db))
	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if opener, ok := store.(storage.Opener); ok {
		handlers.NewMediaHandler(opener).RegisterMediaRoutes(e)
		log.Println("Media routes configured.")
	}

	// --- Unprotected routes for authentication ---
	authGroup := e.Group(apiPrefix + "/auth")
	handlers.NewAuthHandler(authService).RegisterAuthRoutes(authGroup, requireAuth)
	log.Println("Auth routes configured.")

	// Public routes resolve a session when one is sent, protected routes require it
	public := e.Group(apiPrefix, middleware.OptionalAuth(authCfg))
	protected := e.Group(apiPrefix, requireAuth)

	handlers.NewProfileHandler(profileService).RegisterProfileRoutes(public, protected)
	log.Println("Profile routes configured.")

	handlers.NewListingHandler(listingService).RegisterListingRoutes(public, protected)
	handlers.NewDashboardHandler(listingService).RegisterDashboardRoutes(protected)
	log.Println("Listing routes configured.")

	handlers.NewConversationHandler(conversationService, hub).RegisterConversationRoutes(protected, middleware.RateLimit(limiter))
	log.Println("Conversation routes configured.")

	janitor := jobs.NewJanitor(store, listingRepo, cfg.JanitorInterval, cfg.OrphanMinAge)

	log.Println("All routes configured.")
	return &App{Hub: hub, Broker: broker, Janitor: janitor}, nil
}

func newObjectStore(cfg *config.Config, mongoDB *mongo.Database, fb *firebase.App) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case "gridfs":
		return storage.NewGridFSStore(mongoDB, cfg.StorageBucket, cfg.PublicBaseURL)
	case "firebase":
		if fb == nil || fb.Bucket == nil {
			return nil, fmt.Errorf("STORAGE_DRIVER=firebase needs FIREBASE_CREDENTIALS_PATH and FIREBASE_STORAGE_BUCKET")
		}
		return storage.NewFirebaseStore(fb.Bucket, fb.BucketName), nil
	case "memory":
		return storage.NewMemoryStore(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func healthChecks(db *config.DB) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"sql": func(ctx context.Context) error {
			sqlDB, err := db.SQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"mongo": func(ctx context.Context) error {
			return db.Mongo.Ping(ctx, nil)
		},
	}
	if db.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return db.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
