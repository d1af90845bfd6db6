package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/cardprice/internal/api"
	"github.com/codyseavey/cardprice/internal/cache"
	"github.com/codyseavey/cardprice/internal/config"
	"github.com/codyseavey/cardprice/internal/database"
	"github.com/codyseavey/cardprice/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.LogMissing()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache store: %v", err)
	}

	app := services.NewApp(cfg, store)
	defer app.Close()

	maintenance, err := services.NewMaintenanceService(cfg.CacheSweepSchedule, app.Currency, app.Resolver,
		[]string{app.CardDB.Name()}, app.SearchCache, app.CurrencyCache)
	if err != nil {
		log.Fatalf("Failed to schedule maintenance: %v", err)
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go maintenance.Start(ctx)

	router := api.SetupRouter(api.Deps{
		Prices:             app.Prices,
		Search:             app.Search,
		Sets:               app.Resolver,
		Currency:           app.Currency,
		SetProvider:        app.CardDB.Name(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func openStore(cfg *config.Config) (cache.Store, error) {
	if cfg.CacheBackend == config.CacheBackendMemory {
		mem, err := cache.NewMemoryStore(cfg.CacheMemorySize)
		if err != nil {
			return nil, err
		}
		log.Printf("Using in-memory cache store (%d entries)", cfg.CacheMemorySize)
		return mem, nil
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Using SQLite cache store at %s", cfg.DBPath)
	return cache.NewGormStore(db), nil
}
