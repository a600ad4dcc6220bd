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

	"github.com/erflow/erflow/internal/config"
	"github.com/erflow/erflow/internal/domain/bed"
	"github.com/erflow/erflow/internal/domain/patient"
	"github.com/erflow/erflow/internal/platform/db"
	"github.com/erflow/erflow/internal/platform/middleware"
	"github.com/erflow/erflow/internal/platform/sandbox"
	"github.com/erflow/erflow/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "erflow-server",
		Short: "Emergency department patient-flow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the patient-flow API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetBool("seed")
			return runServer(seed)
		},
	}
	cmd.Flags().Bool("seed", false, "Seed demo data on startup")
	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// snapshotFunc builds the full-state payload sent to dashboards on connect.
func snapshotFunc(sched *patient.Scheduler, reg *bed.Registry) websocket.SnapshotFunc {
	return func(ctx context.Context) (interface{}, error) {
		patients, err := sched.ActivePatients(ctx)
		if err != nil {
			return nil, err
		}
		beds, err := reg.ListBeds(ctx, bed.Filter{})
		if err != nil {
			return nil, err
		}
		if patients == nil {
			patients = []*patient.Patient{}
		}
		if beds == nil {
			beds = []*bed.Bed{}
		}
		return map[string]interface{}{
			"patients": patients,
			"beds":     beds,
		}, nil
	}
}

func runServer(seed bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	patientRepo := patient.NewMemoryRepo()
	bedRepo := bed.NewMemoryRepo()
	if !cfg.UseMemoryStores() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		patientRepo = patient.NewPGRepo(pool)
		bedRepo = bed.NewPGRepo(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, running on in-memory stores")
	}

	hub := websocket.NewHub(logger)

	sched := patient.NewScheduler(patientRepo, cfg.DefaultDepartment, logger, hub)
	reg := bed.NewRegistry(bedRepo, logger, hub)

	if !cfg.UseMemoryStores() {
		if err := sched.LoadState(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to load scheduler state")
			return err
		}
	}

	if seed {
		seeder := sandbox.NewSeeder(sched, reg, sandbox.DefaultSeedConfig())
		result, err := seeder.Seed(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("demo data seeding failed")
			return err
		}
		logger.Info().Int("beds", result.Beds).Int("patients", result.Patients).Msg("demo data seeded")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/", func(c echo.Context) error {
		queue, err := sched.TriageQueue(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		beds, err := reg.ListBeds(c.Request().Context(), bed.Filter{})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"service":      "erflow",
			"version":      version,
			"department":   cfg.DefaultDepartment,
			"queue_length": len(queue),
			"bed_count":    len(beds),
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	apiV1 := e.Group("/api/v1")

	patientHandler := patient.NewHandler(sched, reg, patient.EstimateConfig{
		RoomsAvailable:    cfg.RoomsAvailable,
		AvgServiceMinutes: cfg.AvgServiceMinutes,
	})
	patientHandler.RegisterRoutes(apiV1)

	bedHandler := bed.NewHandler(reg)
	bedHandler.RegisterRoutes(apiV1)

	wsHandler := websocket.NewHandler(hub, snapshotFunc(sched, reg))
	wsHandler.RegisterRoutes(apiV1)

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

// openMigrator loads config, connects to the database, and returns a Migrator
// plus a close function for the pool.
func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.UseMemoryStores() {
		return nil, nil, fmt.Errorf("DATABASE_URL must be set")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
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
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

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

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo beds and patients into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("patients")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.UseMemoryStores() {
				return fmt.Errorf("DATABASE_URL must be set to seed persistent stores; use 'serve --seed' for in-memory demos")
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			sched := patient.NewScheduler(patient.NewPGRepo(pool), cfg.DefaultDepartment, logger, nil)
			if err := sched.LoadState(ctx); err != nil {
				return err
			}
			reg := bed.NewRegistry(bed.NewPGRepo(pool), logger, nil)

			seedCfg := sandbox.DefaultSeedConfig()
			if count >= 0 {
				seedCfg.PatientCount = count
			}
			result, err := sandbox.NewSeeder(sched, reg, seedCfg).Seed(ctx)
			if err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			fmt.Printf("Seeded %d bed(s) and %d patient(s) in %s.\n", result.Beds, result.Patients, result.Duration)
			return nil
		},
	}
	cmd.Flags().Int("patients", -1, "Number of random patients to generate in addition to the fixed census")
	return cmd
}
