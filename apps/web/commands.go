package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sambodhan/libs/classifier"
	"sambodhan/libs/grievanceapi"
	"sambodhan/libs/mailer"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	exportAdminID int
	exportOut     string
	exportEmail   string
	exportToken   string
)

var rootCmd = &cobra.Command{
	Use:   "sambodhan-web",
	Short: "Sambodhan grievance dashboard and citizen portal",
	Long: `Serves the Sambodhan admin dashboard and citizen pages on top of the
grievance backend API. Without a subcommand the HTTP server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the analytics export for one administrator's scope",
	Long: `Resolves the administrator, derives the export filter from their
department, municipality and ward, and streams the backend CSV to a file.

Example:
  sambodhan-web export --admin-id 12 --out report.csv`,
	RunE: runExport,
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Ask the backend to refresh its cached analytics",
	RunE:  runRecompute,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the activity log migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, exportCmd, recomputeCmd, migrateCmd)

	exportCmd.Flags().IntVar(&exportAdminID, "admin-id", 0, "Administrator id whose scope is exported (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: backend filename or analytics_export_<date>.csv)")
	exportCmd.Flags().StringVar(&exportEmail, "email", "", "Also mail the export to this address")
	exportCmd.Flags().StringVar(&exportToken, "token", "", "Bearer token for the backend (or set SAMBODHAN_TOKEN)")
	_ = exportCmd.MarkFlagRequired("admin-id")
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// newApp wires every collaborator from cfg. The returned cleanup closes the
// database and Redis connections.
func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, func(), error) {
	metrics := newAppMetrics()
	api := grievanceapi.New(cfg.BackendAPIURL,
		grievanceapi.WithHTTPClient(&http.Client{Timeout: cfg.BackendTimeout}),
		grievanceapi.WithObserver(metrics.observeBackend),
	)

	classifierClient := &http.Client{Timeout: classifier.DefaultTimeout}

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	} else {
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}

	app := &App{
		cfg:        cfg,
		log:        logger,
		api:        api,
		urgency:    classifier.NewUrgency(cfg.UrgencyClassifierURL, classifierClient),
		department: classifier.NewDepartment(cfg.DepartmentClassifierURL, classifierClient),
		mailer:     mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()]),
		metrics:    metrics,
		templates:  newTemplateRenderer(cfg.Env),
		forms:      newFormValidator(),
	}

	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("ping database: %w", err)
		}
		app.db = db
		app.events = newSQLAdminEventStore(db)
	} else {
		logger.Info("DATABASE_URL not configured, admin events are logged only")
		app.events = &logAdminEventStore{log: logger}
	}

	var cache locationCache = newMemoryLocationCache()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, using in-memory location cache", "error", err)
		} else {
			cache = newRedisLocationCache(client)
		}
	}
	app.locations = newLocationDirectory(api, cache, cfg.LocationCacheTTL, logger)

	return app, cleanup, nil
}

func bootstrap(cmd *cobra.Command) (*App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, func() {}, err
	}
	logger := newLogger(cfg.LogLevel)
	return newApp(cmd.Context(), cfg, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if app.db != nil {
		if err := app.runMigrations(cmd.Context()); err != nil {
			return err
		}
	}

	app.log.Info("runtime configuration",
		"env", app.cfg.Env,
		"addr", app.cfg.Addr,
		"backend", app.api.BaseURL(),
		"activity_log", app.db != nil,
	)

	router := app.newRouter()
	app.log.Info("starting gin server", "addr", app.cfg.Addr)
	return router.Run(app.cfg.Addr)
}

func runExport(cmd *cobra.Command, args []string) error {
	app, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	token := exportToken
	if token == "" {
		token = os.Getenv("SAMBODHAN_TOKEN")
	}
	ctx := cmd.Context()
	if token != "" {
		ctx = grievanceapi.WithToken(ctx, token)
	}

	admin, err := app.api.GetAdmin(ctx, exportAdminID)
	if err != nil {
		return fmt.Errorf("load admin %d: %w", exportAdminID, err)
	}

	export, err := app.api.OpenExport(ctx, exportParams(admin))
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer export.Body.Close()

	filename := exportOut
	if filename == "" {
		filename = export.Filename
	}
	if filename == "" {
		filename = grievanceapi.DefaultExportFilename(app.clock())
	}

	content, err := io.ReadAll(export.Body)
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	if err := os.WriteFile(filename, content, 0o644); err != nil {
		return err
	}
	app.log.Info("export written", "admin_id", admin.ID, "file", filename, "bytes", len(content))

	if exportEmail != "" {
		msg := mailer.ExportMessage(exportEmail, filename, content)
		if _, err := app.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("mail export: %w", err)
		}
		app.log.Info("export mailed", "to", exportEmail)
	}
	return nil
}

func runRecompute(cmd *cobra.Command, args []string) error {
	app, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if token := os.Getenv("SAMBODHAN_TOKEN"); token != "" {
		ctx = grievanceapi.WithToken(ctx, token)
	}
	if err := app.api.Recompute(ctx); err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	app.log.Info("analytics recompute requested")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	if app.db == nil {
		return errors.New("migrate requires DATABASE_URL or PG* variables")
	}
	return app.runMigrations(cmd.Context())
}
