package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/jangteo/marketplace/backend/internal/account"
	"github.com/jangteo/marketplace/backend/internal/admin"
	"github.com/jangteo/marketplace/backend/internal/auth"
	"github.com/jangteo/marketplace/backend/internal/chat"
	"github.com/jangteo/marketplace/backend/internal/config"
	"github.com/jangteo/marketplace/backend/internal/events"
	"github.com/jangteo/marketplace/backend/internal/health"
	"github.com/jangteo/marketplace/backend/internal/logger"
	"github.com/jangteo/marketplace/backend/internal/metrics"
	"github.com/jangteo/marketplace/backend/internal/middleware"
	"github.com/jangteo/marketplace/backend/internal/product"
	"github.com/jangteo/marketplace/backend/internal/report"
	"github.com/jangteo/marketplace/backend/internal/repository"
	"github.com/jangteo/marketplace/backend/internal/stream"
	"github.com/jangteo/marketplace/backend/internal/wallet"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	pool, err := setupPgxPool(cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlxDB, err := sqlx.Connect("pgx", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open sqlx connection", "error", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()
	sqlxDB.SetMaxOpenConns(25)
	sqlxDB.SetMaxIdleConns(5)
	sqlxDB.SetConnMaxLifetime(5 * time.Minute)

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	productRepo := repository.NewProductRepo(sqlxDB)
	chatRepo := repository.NewChatRepo(sqlxDB)

	// Token services, one per trust domain
	userTokens := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: cfg.JWT.UserSecret,
		Expiry: cfg.JWT.TokenExpiry,
		Issuer: cfg.JWT.Issuer,
		Domain: auth.UserDomain,
	})
	adminTokens := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: cfg.JWT.AdminSecret,
		Expiry: cfg.JWT.TokenExpiry,
		Issuer: cfg.JWT.Issuer,
		Domain: auth.AdminDomain,
	})

	// Notification bus with replay buffer
	eventStore := events.NewEventStore(cfg.Stream.EventBufferSize * 10)
	eventBus := events.NewEventBus(eventStore)

	// Services
	passwordValidator := auth.NewPasswordValidator()
	authService := auth.NewAuthService(userRepo, passwordValidator, log)
	accountService := account.NewService(userRepo, log)
	productService := product.NewService(productRepo, log)
	reportService := report.NewService(reportRepo, log)
	walletService := wallet.NewService(userRepo, walletRepo, eventBus, log)
	chatService := chat.NewService(chatRepo, userRepo, eventBus, log)
	adminService := admin.NewService(
		cfg.Admin.Username, cfg.Admin.Password,
		userRepo, productRepo, reportRepo, chatRepo, log,
	)

	production := cfg.Server.IsProduction()

	// Handlers
	authHandler := auth.NewAuthHandler(authService, userTokens, production)
	accountHandler := account.NewHandler(accountService, log)
	productHandler := product.NewHandler(productService, log)
	reportHandler := report.NewHandler(reportService)
	walletHandler := wallet.NewHandler(walletService, log)
	chatHandler := chat.NewHandler(chatService, log)
	adminHandler := admin.NewHandler(adminService, adminTokens, production, log)

	// Session middleware per trust domain
	userSession := middleware.NewUserSessionMiddleware(userTokens, userRepo)
	adminSession := middleware.NewAdminSessionMiddleware(adminTokens, admin.AdminCookieName)

	// Throttles keyed by session identity, falling back to remote
	// address for anonymous callers. Login is tight; chat sends get
	// more headroom.
	loginLimiter := middleware.NewRateLimiter(5, time.Minute)
	chatLimiter := middleware.NewRateLimiter(20, time.Minute)
	loginKey := middleware.IdentityKey(userTokens, auth.UserCookieName)

	// Event stream
	streamCfg := stream.Config{
		HeartbeatInterval:     cfg.Stream.HeartbeatInterval,
		ConnectionTimeout:     cfg.Stream.ConnectionTimeout,
		MaxConnectionsPerUser: cfg.Stream.MaxConnectionsPerUser,
		EventBufferSize:       cfg.Stream.EventBufferSize,
	}
	connManager := stream.NewConnectionManager(streamCfg)
	stopCleanup := connManager.StartCleanupRoutine(time.Minute)
	defer stopCleanup()
	streamHandler := stream.NewHandler(streamCfg, connManager, eventBus, userTokens)

	// Health and DB metrics
	healthHandler := health.NewHandler(health.Config{
		DBPool:  pool,
		Streams: connManager,
		Version: version,
	})
	dbStats := metrics.NewDBStatsCollector(pool, sqlxDB.DB)
	dbStats.Start(15 * time.Second)
	defer dbStats.Stop()

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(log).Handler)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders(production))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler, loginLimiter.Limit(loginKey))
		account.RegisterRoutes(r, accountHandler, userSession.Authenticate)
		product.RegisterRoutes(r, productHandler, userSession.Authenticate)
		report.RegisterRoutes(r, reportHandler, userSession.Authenticate)
		wallet.RegisterRoutes(r, walletHandler, userSession.Authenticate)
		chat.RegisterRoutes(r, chatHandler, userSession.Authenticate, chatLimiter.Limit(loginKey))
		admin.RegisterRoutes(r, adminHandler, adminSession.Authenticate, loginLimiter.Limit(loginKey))
		stream.RegisterRoutes(r, streamHandler)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-lived event streams manage their own deadline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}

func setupPgxPool(cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to database",
		"dbname", cfg.Database.DBName,
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
	)
	return pool, nil
}
