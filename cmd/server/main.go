package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/classifieds/backend/internal/router"
	"github.com/anonto42/classifieds/backend/internal/validators"
	"github.com/anonto42/classifieds/backend/pkg/config"
	"github.com/anonto42/classifieds/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase; without credentials the API runs on local accounts only
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
	if errors.Is(err, firebase.ErrNotConfigured) {
		log.Println("FIREBASE_CREDENTIALS_PATH not set: Firebase login is disabled.")
	} else if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, cfg)

	// Setup routes and dependencies
	app, err := router.SetupRoutes(e, cfg, db, firebaseApp)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	go func() {
		if err := app.Broker.Run(ctx); err != nil {
			log.Printf("Realtime broker stopped: %v", err)
		}
	}()

	if err := app.Janitor.Start(); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}
	defer app.Janitor.Stop()

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
