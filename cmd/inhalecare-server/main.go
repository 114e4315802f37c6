package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/inhalecare/inhalecare/internal/config"
	"github.com/inhalecare/inhalecare/internal/domain/access"
	"github.com/inhalecare/inhalecare/internal/domain/alert"
	"github.com/inhalecare/inhalecare/internal/domain/device"
	"github.com/inhalecare/inhalecare/internal/domain/dosage"
	"github.com/inhalecare/inhalecare/internal/domain/identity"
	"github.com/inhalecare/inhalecare/internal/domain/note"
	"github.com/inhalecare/inhalecare/internal/domain/relationship"
	"github.com/inhalecare/inhalecare/internal/domain/reminder"
	"github.com/inhalecare/inhalecare/internal/domain/report"
	"github.com/inhalecare/inhalecare/internal/platform/apperr"
	"github.com/inhalecare/inhalecare/internal/platform/auth"
	"github.com/inhalecare/inhalecare/internal/platform/blobstore"
	"github.com/inhalecare/inhalecare/internal/platform/db"
	"github.com/inhalecare/inhalecare/internal/platform/devicesync"
	"github.com/inhalecare/inhalecare/internal/platform/events"
	"github.com/inhalecare/inhalecare/internal/platform/idempotency"
	"github.com/inhalecare/inhalecare/internal/platform/middleware"
	"github.com/inhalecare/inhalecare/internal/platform/retry"
)

const version = "0.1.0"

const idProofPath = "/api/v1/profiles/me/id-proof"

func main() {
	rootCmd := &cobra.Command{
		Use:   "inhalecare-server",
		Short: "Inhaler adherence API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(syncWorkerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, db.EmbeddedMigrations()).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, db.EmbeddedMigrations()).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// assignCmd links a patient to a medical-team member. Assignments are an
// operator action and have no HTTP route.
func assignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a patient to a medical-team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, err := uuidFlag(cmd, "patient")
			if err != nil {
				return err
			}
			teamID, err := uuidFlag(cmd, "medical-team")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := relationship.NewService(
				relationship.NewLinkRepoPG(pool),
				relationship.NewAssignmentRepoPG(pool),
				relationship.NewRoleLookupPG(pool),
				readPolicy(0),
			)
			return db.WithSession(ctx, pool, db.Session{Service: db.ServiceOperator}, func(ctx context.Context) error {
				a, err := svc.CreateAssignment(ctx, patientID, teamID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assignment %s created.\n", a.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient profile id")
	cmd.Flags().String("medical-team", "", "Medical-team profile id")
	return cmd
}

func uuidFlag(cmd *cobra.Command, name string) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

func syncWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-worker",
		Short: "Consume device readings from the MQTT broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncWorker()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

// readPolicy retries reads on a freshly acquired session connection.
func readPolicy(attempts int) retry.Policy {
	p := retry.WithAttempts(attempts)
	p.Reset = db.Reacquire
	return p
}

type services struct {
	identity     *identity.Service
	relationship *relationship.Service
	device       *device.Service
	dosage       *dosage.Service
	reminder     *reminder.Service
	alert        *alert.Service
	note         *note.Service
	report       *report.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, blobs blobstore.Store, publisher events.Publisher, logger zerolog.Logger) *services {
	rp := readPolicy(cfg.ReadRetryAttempts)

	relSvc := relationship.NewService(
		relationship.NewLinkRepoPG(pool),
		relationship.NewAssignmentRepoPG(pool),
		relationship.NewRoleLookupPG(pool),
		rp,
	)
	policy := access.NewPolicy(relSvc)

	deviceSvc := device.NewService(device.NewDeviceRepoPG(pool), policy,
		device.Thresholds{Battery: cfg.LowBatteryThreshold, Doses: cfg.LowDoseThreshold}, rp)
	dosageSvc := dosage.NewService(dosage.NewRecordRepoPG(pool), deviceSvc, db.NewTxRunner(pool),
		policy, cfg.ExpectedDosesPerDay, rp)

	return &services{
		identity:     identity.NewService(identity.NewProfileRepoPG(pool), blobs, logger, rp),
		relationship: relSvc,
		device:       deviceSvc,
		dosage:       dosageSvc,
		reminder:     reminder.NewService(reminder.NewScheduleRepoPG(pool), policy, rp),
		alert:        alert.NewService(alert.NewAlertRepoPG(pool), policy, publisher, logger, rp),
		note:         note.NewService(note.NewNoteRepoPG(pool), policy, rp),
		report:       report.NewService(relSvc, dosageSvc),
	}
}

func registerRoutes(api *echo.Group, s *services) {
	identity.NewHandler(s.identity).RegisterRoutes(api)
	relationship.NewHandler(s.relationship).RegisterRoutes(api)
	device.NewHandler(s.device).RegisterRoutes(api)
	dosage.NewHandler(s.dosage).RegisterRoutes(api)
	reminder.NewHandler(s.reminder).RegisterRoutes(api)
	alert.NewHandler(s.alert).RegisterRoutes(api)
	note.NewHandler(s.note).RegisterRoutes(api)
	report.NewHandler(s.report).RegisterRoutes(api)
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.HeaderAuth() {
		return auth.HeaderAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	checks := []db.Check{db.PoolCheck(pool)}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer amqpPub.Close()
		publisher = amqpPub
	} else {
		logger.Warn().Msg("AMQP_URL not set; alert events are not published")
	}

	var blobs blobstore.Store = blobstore.NewMemoryStore()
	if cfg.MinioEndpoint != "" {
		minioStore, err := blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to object storage")
		}
		blobs = minioStore
		checks = append(checks, db.Check{Name: "object_storage", Ping: minioStore.Ping})
	} else {
		logger.Warn().Msg("MINIO_ENDPOINT not set; ID proofs are kept in memory")
	}

	var idemStore idempotency.Store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisURL != "" {
		client, err := idempotency.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		defer client.Close()
		redisStore := idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
		idemStore = redisStore
		checks = append(checks, db.Check{Name: "redis", Ping: redisStore.Ping})
	}

	svcs := newServices(cfg, pool, blobs, publisher, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "Idempotency-Key", auth.AccountHeader},
	}))
	e.Use(middleware.BodyLimit("1M", "10M", idProofPath))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/ready", db.ReadinessHandler(checks...))
	e.GET("/health/stats", db.StatsHandler(pool), authMiddleware(cfg))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(authMiddleware(cfg))
	apiV1.Use(db.SessionMiddleware(pool))
	apiV1.Use(identity.ResolveViewer(svcs.identity))
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(idempotency.Middleware(idemStore, logger))
	registerRoutes(apiV1, svcs)

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

func runSyncWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.MQTTBrokerURL == "" {
		return fmt.Errorf("MQTT_BROKER_URL is required for the sync worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	// The worker writes levels only; it never reads through the policy.
	deviceSvc := device.NewService(device.NewDeviceRepoPG(pool), nil,
		device.Thresholds{Battery: cfg.LowBatteryThreshold, Doses: cfg.LowDoseThreshold},
		readPolicy(cfg.ReadRetryAttempts))

	session := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithSession(ctx, pool, db.Session{Service: db.ServiceDeviceSync}, fn)
	}
	processor := devicesync.NewProcessor(cfg.MQTTTopic, device.SyncSink{Service: deviceSvc}, session,
		logger.With().Str("component", "device_sync").Logger())

	sub, err := devicesync.NewSubscriber(devicesync.Config{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Topic:     cfg.MQTTTopic,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
	}, logger)
	if err != nil {
		return err
	}
	return sub.Run(ctx, processor)
}
