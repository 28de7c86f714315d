package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicops/clinic/internal/config"
	"github.com/clinicops/clinic/internal/domain/appointment"
	"github.com/clinicops/clinic/internal/domain/clinical"
	"github.com/clinicops/clinic/internal/domain/inventory"
	"github.com/clinicops/clinic/internal/domain/ledger"
	"github.com/clinicops/clinic/internal/domain/patient"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/cache"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/envelope"
	"github.com/clinicops/clinic/internal/platform/logging"
	"github.com/clinicops/clinic/internal/platform/middleware"
)

const (
	defaultSchema   = "tenant_default"
	bodyLimit       = "1M"
	recordBodyLimit = "4M"
	shutdownTimeout = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic operations API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// poolConfig sizes the pool from configuration. CLI commands pass a smaller
// pool than the server.
func poolConfig(cfg *config.Config, appName string) db.PoolConfig {
	return db.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
		ApplicationName: appName,
	}
}

// openPool loads configuration and connects for the one-shot commands.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pc := poolConfig(cfg, "clinic-cli")
	pc.MaxConns, pc.MinConns = 2, 0
	pool, err := db.NewPool(ctx, pc)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// migrationsDir prefers the --dir flag, then MIGRATIONS_DIR.
func migrationsDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.MigrationsDir != "" {
		return cfg.MigrationsDir
	}
	return "./migrations"
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationsDir(dir, cfg))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			var count int
			if target > 0 {
				count, err = migrator.UpTo(ctx, schema, target)
			} else {
				count, err = migrator.Up(ctx, schema)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", defaultSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	upCmd.Flags().Int("to", 0, "Stop after this migration version")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationsDir(dir, cfg))
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
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
	statusCmd.Flags().String("schema", defaultSchema, "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			dir, _ := cmd.Flags().GetString("dir")
			skip, _ := cmd.Flags().GetBool("skip-migrations")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrations := migrationsDir(dir, cfg)
			if skip {
				migrations = ""
			}

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, migrations); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	createCmd.Flags().Bool("skip-migrations", false, "Only create the schema")

	cmd.AddCommand(createCmd)
	return cmd
}

// jwtConfig selects HS256 when a shared signing key is configured and JWKS
// validation otherwise. An empty JWKS URL is discovered from the issuer.
func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return jc
}

func corsConfig(cfg *config.Config) echomw.CORSConfig {
	return echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}
}

// services is every domain service the HTTP API exposes.
type services struct {
	patients     *patient.Service
	ledger       *ledger.Service
	inventory    *inventory.Service
	appointments *appointment.Service
	clinical     *clinical.Service
}

func newServices(pool *pgxpool.Pool, categories cache.StringLists, cfg *config.Config, logger zerolog.Logger) services {
	tx := db.NewTxRunner(pool)
	patients := patient.NewService(patient.NewRepoPG(pool))

	return services{
		patients:     patients,
		ledger:       ledger.NewService(ledger.NewRepoPG(pool), tx, patients, logger.With().Str("domain", "ledger").Logger()),
		inventory:    inventory.NewService(inventory.NewRepoPG(pool), tx, categories, cfg.ExpiryWindow(), logger.With().Str("domain", "inventory").Logger()),
		appointments: appointment.NewService(appointment.NewRepoPG(pool), tx, patients, logger.With().Str("domain", "appointment").Logger()),
		clinical:     clinical.NewService(clinical.NewRepoPG(pool), tx, patients, logger.With().Str("domain", "clinical").Logger()),
	}
}

// registerRoutes mounts every domain handler under /clinic.
func registerRoutes(e *echo.Echo, svcs services, mw ...echo.MiddlewareFunc) {
	api := e.Group("/clinic", mw...)

	patient.NewHandler(svcs.patients).RegisterRoutes(api)
	ledger.NewHandler(svcs.ledger).RegisterRoutes(api)
	inventory.NewHandler(svcs.inventory).RegisterRoutes(api)
	appointment.NewHandler(svcs.appointments).RegisterRoutes(api)
	clinical.NewHandler(svcs.clinical).RegisterRoutes(api)
}

// categoryCache connects to Redis when configured. A Redis outage at startup
// degrades to no caching rather than refusing to serve.
func categoryCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.StringLists, func()) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, inventory category cache disabled")
		return cache.Nop{}, func() {}
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, inventory category cache disabled")
		return cache.Nop{}, func() {}
	}
	logger.Info().Msg("connected to redis")
	return cache.NewRedis(rdb, cfg.CategoryCacheTTL), func() { _ = rdb.Close() }
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser := logging.New(logging.OptionsFromConfig(cfg))
	defer logCloser.Close()

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg, "clinic-server"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	categories, closeCache := categoryCache(ctx, cfg, logger)
	defer closeCache()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelope.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(bodyLimit, recordBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(corsConfig(cfg)))

	// Health checks; auth and tenant middleware pass /health through.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	limiter := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	})
	registerRoutes(e, newServices(pool, categories, cfg, logger), limiter)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
