package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/cache"
	"keyflow-backend/internal/config"
	"keyflow-backend/internal/database"
	"keyflow-backend/internal/db"
	"keyflow-backend/internal/handlers"
	"keyflow-backend/internal/health"
	h "keyflow-backend/internal/http"
	"keyflow-backend/internal/live"
	"keyflow-backend/internal/middleware"
	"keyflow-backend/internal/migrations"
	"keyflow-backend/internal/monitoring"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/services"
	"keyflow-backend/internal/storage"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Override port if specified
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Connect to PostgreSQL
	pool := db.Connect(cfg)
	defer pool.Close()

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	if err := cache.Init(); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (reads will go to the database)", err)
	} else {
		log.Println("[Redis] Cache connected successfully")
	}

	// Run database migrations
	// This automatically creates all required tables on startup
	// Uses embedded migrations for standalone binary operation
	log.Println("Running database migrations...")
	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := migrator.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize health checker
	healthChecker := health.NewHealthChecker(pool)

	// Start monitoring dashboard server in background
	if cfg.Monitoring.Enabled {
		go func() {
			if err := monitoring.NewMonitoringServer(pool, cfg.Monitoring.Port).Start(); err != nil {
				log.Printf("[Monitoring] Dashboard server stopped: %v", err)
			}
		}()
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(pool)
	dealershipRepo := repositories.NewDealershipRepository(pool)
	keyRepo := repositories.NewKeyRepository(pool)
	sessionRepo := repositories.NewCheckoutSessionRepository(pool)
	eventRepo := repositories.NewKeyEventRepository(pool)
	noteRepo := repositories.NewKeyNoteRepository(pool)
	pdiRepo := repositories.NewPDILogRepository(pool)
	repairRepo := repositories.NewRepairRequestRepository(pool)
	inviteRepo := repositories.NewInviteRepository(pool)
	loginLogRepo := repositories.NewLoginLogRepository(pool)
	totpRepo := repositories.NewTOTPRepository(pool)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)
	corsMiddleware := middleware.NewCORS(cfg)

	// Initialize services
	userService := services.NewUserService(userRepo, eventRepo)
	totpService := services.NewTOTPService(userRepo, totpRepo)
	dealershipService := services.NewDealershipService(dealershipRepo)
	keyService := services.NewKeyService(keyRepo, eventRepo, dealershipService, nil)
	checkoutService := services.NewCheckoutService(sessionRepo, keyRepo, dealershipService, nil)
	repairService := services.NewRepairService(repairRepo, keyRepo, nil)
	inviteService := services.NewInviteService(inviteRepo, nil)
	statsService := services.NewStatsService(keyRepo, sessionRepo, repairRepo, eventRepo, dealershipService, nil)
	reportService := services.NewReportService(dealershipRepo, eventRepo, sessionRepo, keyRepo, userRepo, nil)

	// Start the Prometheus gauge collector
	metricsCollector := services.NewMetricsCollector(dealershipRepo, sessionRepo, repairRepo, nil)
	metricsCollector.Start()
	defer metricsCollector.Stop()

	// Initialize label printer service (optional)
	var printerService *services.PrinterService
	if cfg.Printer.Enabled {
		printerService = services.NewPrinterService(cfg.Printer.BaseURL)
		log.Printf("[Printer] Label printer enabled at %s", cfg.Printer.BaseURL)
	} else {
		log.Println("[Printer] No label printer configured, tag printing disabled")
	}

	// Initialize R2 photo storage (optional - photo endpoints degrade without it)
	photoStore, err := storage.NewPhotoStore(context.Background(), storage.Config{
		Endpoint:      cfg.R2.Endpoint,
		AccessKey:     cfg.R2.AccessKey,
		SecretKey:     cfg.R2.SecretKey,
		Bucket:        cfg.R2.Bucket,
		Region:        cfg.R2.Region,
		PublicBaseURL: cfg.R2.PublicBaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize photo storage: %v", err)
	}
	if photoStore == nil {
		log.Println("[R2] Photo storage not configured, key photos disabled")
	}

	// Start the live key board hub and wire it into the mutating services
	hub := live.NewHub(jwtManager)
	hub.Start()
	checkoutService.SetNotifier(hub)
	keyService.SetNotifier(hub)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, totpService, jwtManager, loginLogRepo)
	totpHandler := handlers.NewTOTPHandler(totpService)
	dealershipHandler := handlers.NewDealershipHandler(dealershipService, statsService, reportService)
	keyHandler := handlers.NewKeyHandler(keyService, checkoutService, repairService, noteRepo, eventRepo, pdiRepo, photoStore)
	userHandler := handlers.NewUserHandler(userService, loginLogRepo)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	repairHandler := handlers.NewRepairHandler(repairService)
	printerHandler := handlers.NewPrinterHandler(printerService, keyService)
	healthHandler := handlers.NewHealthHandler(healthChecker)

	// Create router
	router := h.NewRouter(authHandler, totpHandler, dealershipHandler, keyHandler, userHandler, inviteHandler, repairHandler, printerHandler, healthHandler, hub, authMiddleware)

	// Wrap with panic recovery and CORS; metrics run inside the router where
	// the matched route template is available
	handler := middleware.PanicRecovery(corsMiddleware(router))

	// Pre-warm cache in background (non-blocking)
	go cache.PreWarmCache()

	// Prune the 2FA attempt log once a day
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := totpService.CleanupOldAttempts(context.Background()); err != nil {
				log.Printf("[2FA] Attempt log cleanup failed: %v", err)
			}
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
