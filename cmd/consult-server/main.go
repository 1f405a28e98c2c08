package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/waddasfs/openmedical/internal/config"
	"github.com/waddasfs/openmedical/internal/domain/assignment"
	"github.com/waddasfs/openmedical/internal/domain/chat"
	"github.com/waddasfs/openmedical/internal/domain/consultation"
	"github.com/waddasfs/openmedical/internal/domain/doctor"
	"github.com/waddasfs/openmedical/internal/domain/payment"
	"github.com/waddasfs/openmedical/internal/platform/auth"
	"github.com/waddasfs/openmedical/internal/platform/db"
	"github.com/waddasfs/openmedical/internal/platform/middleware"
	"github.com/waddasfs/openmedical/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consult-server",
		Short: "Telemedicine consultation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the consultation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}
	e.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	// Core domain services
	consultRepo := consultation.NewRepo(pool)
	consultSvc := consultation.NewService(consultRepo, logger)
	consultHandler := consultation.NewHandler(consultSvc)
	consultHandler.RegisterRoutes(apiV1)

	doctorRepo := doctor.NewRepo(pool)
	doctorSvc := doctor.NewService(doctorRepo, logger)
	doctorHandler := doctor.NewHandler(doctorSvc)
	doctorHandler.RegisterRoutes(apiV1)

	paymentRepo := payment.NewRepo(pool)
	paymentSvc := payment.NewService(paymentRepo, consultSvc, logger, cfg.PaymentAddress, cfg.PaymentExpiry)
	paymentHandler := payment.NewHandler(paymentSvc)
	paymentHandler.RegisterRoutes(apiV1)

	// Assignment engine and sweeper
	assignRepo := assignment.NewRepo(pool)
	engine := assignment.NewEngine(consultSvc, doctorSvc, assignRepo, logger)
	sweeper := assignment.NewSweeper(engine, consultSvc, logger)
	sweeper.Interval = cfg.SweepInterval
	sweeper.BatchSize = cfg.SweepBatchSize
	assignHandler := assignment.NewHandler(engine, sweeper)
	assignHandler.RegisterRoutes(apiV1)

	// Confirmed payments trigger an immediate assignment attempt. Anything
	// the hook cannot place right away is picked up by the sweeper.
	paymentSvc.SetAssignHook(engine.Assign)

	// WebSocket hub and chat
	hub := websocket.NewHub()
	wsHandler := websocket.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(apiV1)

	chatRepo := chat.NewRepo(pool)
	chatSvc := chat.NewService(chatRepo, consultSvc, hub, logger)
	chatHandler := chat.NewHandler(chatSvc)
	chatHandler.RegisterRoutes(apiV1)

	// Background reconciliation sweep
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweeper.Start(sweepCtx)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
