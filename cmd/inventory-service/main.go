package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/consumers"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/handler"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	lotRepo := repository.NewLotRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Initialize services
	engine := service.NewAllocationEngine(lotRepo, log)
	movementService := service.NewMovementService(db, productRepo, lotRepo, txRepo, issueRepo, refRepo, engine, publisher, log)
	inventoryService := service.NewInventoryService(productRepo, lotRepo, txRepo, issueRepo, userCacheRepo, engine, log)
	alertService := service.NewAlertService(alertRepo, log)
	scanner := service.NewAlertScanner(productRepo, lotRepo, alertRepo, publisher, cfg.Alerts.ExpiringWindowDays, log)

	// Initialize handlers
	movementHandler := handler.NewMovementHandler(movementService, inventoryService, log)
	lotHandler := handler.NewLotHandler(inventoryService, log)
	alertHandler := handler.NewAlertHandler(alertService, scanner, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}
	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Start alert scheduler
	scheduler := service.NewAlertScheduler(scanner, cfg.Alerts.ScanInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.ActorMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Movements
		r.Route("/movements", func(r chi.Router) {
			r.Post("/receipts", movementHandler.Receipt)
			r.Post("/issues", movementHandler.Issue)
			r.Post("/adjustments", movementHandler.Adjustment)
		})

		// Ledger
		r.Get("/transactions/{id}", movementHandler.GetTransaction)
		r.Get("/issue-documents/{code}", movementHandler.GetIssueDocument)

		// Stock positions
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/stock", lotHandler.GetProductStock)
			r.Get("/availability", lotHandler.GetAvailability)
			r.Get("/allocations", lotHandler.SuggestAllocations)
			r.Get("/transactions", movementHandler.ListTransactions)
			r.Get("/totals", movementHandler.GetMovementTotals)
		})

		// Alerts
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Get("/count", alertHandler.CountActive)
			r.Post("/scan", alertHandler.TriggerScan)
			r.Get("/{id}", alertHandler.Get)
			r.Put("/{id}/acknowledge", alertHandler.Acknowledge)
			r.Put("/{id}/resolve", alertHandler.Resolve)
			r.Delete("/{id}", alertHandler.Delete)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the consumer and scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
