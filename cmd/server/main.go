package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panops/panorama-address-manager/internal/api"
	"github.com/panops/panorama-address-manager/internal/config"
	"github.com/panops/panorama-address-manager/internal/normalize"
	"github.com/panops/panorama-address-manager/internal/panorama"
	"github.com/panops/panorama-address-manager/internal/service"
	"github.com/panops/panorama-address-manager/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize the Panorama client (or file shim for testing)
	var client panorama.AddressClient
	if cfg.UseFileShim() {
		log.Printf("Using file shim for Panorama API: %s", cfg.Panorama.FileShim)
		client = panorama.NewFileShim(cfg.Panorama.FileShim)
	} else {
		apiKey := cfg.Panorama.APIKey
		if apiKey == "" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			apiKey, err = panorama.GenerateAPIKey(ctx, cfg.Panorama.Host,
				cfg.Panorama.Username, cfg.Panorama.Password, cfg.Panorama.SkipTLSVerify)
			cancel()
			if err != nil {
				log.Fatalf("Failed to generate Panorama API key: %v", err)
			}
		}
		client = panorama.New(cfg.Panorama.Host, apiKey, cfg.Panorama.SkipTLSVerify)
	}

	normalizer := normalize.New(nil)

	// Initialize push service
	pushService := service.NewPushService(
		store,
		client,
		cfg.Panorama.DeviceGroup,
		cfg.Push.Debounce,
		cfg.Push.AutoPush,
	)

	// Create router
	router := api.NewRouter(store, normalizer, pushService, cfg.Push.BootstrapAPIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting Panorama Address Manager on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
