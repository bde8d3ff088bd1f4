package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sambodhan/libs/classifier"
	"sambodhan/libs/grievanceapi"
	"sambodhan/libs/mailer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	adminTokenCookieName     = "sambodhan_token"
	adminUserCookieName      = "sambodhan_admin_user"
	adminSessionDuration     = 7 * 24 * time.Hour
	citizenUserCookieName    = "sambodhan_user"
	citizenSessionDuration   = 24 * time.Hour
	requestIDHeader          = "X-Request-ID"
	defaultLocationCacheTTL  = 30 * time.Minute
	trustedProxyLoopbackIPv4 = "127.0.0.1"
	trustedProxyLoopbackIPv6 = "::1"
)

type Config struct {
	Addr                    string
	Env                     string
	PublicBaseURL           string
	AppSigningSecret        string
	BackendAPIURL           string
	BackendTimeout          time.Duration
	UrgencyClassifierURL    string
	DepartmentClassifierURL string
	DatabaseURL             string
	RedisURL                string
	LocationCacheTTL        time.Duration
	ResendAPIKey            string
	MailerFromAddresses     map[string]string
	LogLevel                slog.Level
}

type App struct {
	cfg *Config
	db  *sql.DB
	log *slog.Logger

	api        *grievanceapi.Client
	urgency    classifier.Classifier
	department classifier.Classifier
	mailer     *mailer.Mailer
	events     adminEventStore
	locations  *locationDirectory
	metrics    *appMetrics
	templates  *templateRenderer
	forms      *formValidator

	now func() time.Time
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < 16 {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least 16 characters")
	}

	env := valueOrDefault("APP_ENV", "development")

	backendTimeout, err := time.ParseDuration(valueOrDefault("BACKEND_TIMEOUT", "10s"))
	if err != nil || backendTimeout <= 0 {
		return nil, fmt.Errorf("BACKEND_TIMEOUT must be a positive duration")
	}
	cacheTTL, err := time.ParseDuration(valueOrDefault("LOCATION_CACHE_TTL", defaultLocationCacheTTL.String()))
	if err != nil || cacheTTL <= 0 {
		return nil, fmt.Errorf("LOCATION_CACHE_TTL must be a positive duration")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(valueOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Addr:                    valueOrDefault("GIN_ADDR", ":8080"),
		Env:                     env,
		PublicBaseURL:           strings.TrimRight(valueOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AppSigningSecret:        secret,
		BackendAPIURL:           strings.TrimRight(valueOrDefault("BACKEND_API_URL", grievanceapi.DefaultBaseURL), "/"),
		BackendTimeout:          backendTimeout,
		UrgencyClassifierURL:    valueOrDefault("URGENCY_CLASSIFIER_URL", classifier.DefaultUrgencyURL),
		DepartmentClassifierURL: valueOrDefault("DEPARTMENT_CLASSIFIER_URL", classifier.DefaultDepartmentURL),
		DatabaseURL:             databaseURLFromEnv(),
		RedisURL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		LocationCacheTTL:        cacheTTL,
		ResendAPIKey:            strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailerFromAddresses: map[string]string{
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "Sambodhan <noreply@sambodhan.gov.np>"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@sambodhan.local"),
		},
		LogLevel: level,
	}

	if !strings.HasPrefix(cfg.BackendAPIURL, "http://") && !strings.HasPrefix(cfg.BackendAPIURL, "https://") {
		return nil, fmt.Errorf("BACKEND_API_URL must be an http(s) URL")
	}

	return cfg, nil
}

// databaseURLFromEnv returns DATABASE_URL or a URL assembled from PG*/POSTGRES_*
// variables. An empty result disables the activity log database.
func databaseURLFromEnv() string {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL != "" {
		return databaseURL
	}
	host := valueFromEnvKeys("PGHOST", "POSTGRES_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := valueFromEnvKeys("PGPORT", "POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	dbname := valueFromEnvKeys("PGDATABASE", "POSTGRES_DB")
	user := valueFromEnvKeys("PGUSER", "POSTGRES_USER")
	password := valueFromEnvKeys("PGPASSWORD", "POSTGRES_PASSWORD")
	sslmode := valueFromEnvKeys("PGSSLMODE", "POSTGRES_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}
	if dbname == "" || user == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func valueFromEnvKeys(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func (a *App) runMigrations(ctx context.Context) error {
	if a.db == nil {
		return errors.New("database is not configured")
	}
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		var exists bool
		if err := a.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.Join("migrations", file))
		if err != nil {
			return err
		}

		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		a.log.Info("applied migration", "file", file)
	}

	return nil
}

func (a *App) newRouter() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(a.loggingMiddleware())
	if a.metrics != nil {
		r.Use(a.metrics.middleware())
		r.GET("/metrics", a.metrics.handler())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a.registerAdminRoutes(r)
	a.registerCitizenRoutes(r)
	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", c.GetString("requestID"),
		)
	}
}

// backendContext carries the caller's bearer token and request id to the
// grievance backend. The request context bounds every upstream call.
func (a *App) backendContext(c *gin.Context) context.Context {
	ctx := grievanceapi.WithRequestID(c.Request.Context(), c.GetString("requestID"))
	if token, err := c.Cookie(adminTokenCookieName); err == nil && token != "" {
		ctx = grievanceapi.WithToken(ctx, token)
	}
	return ctx
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) secureCookies() bool {
	return strings.EqualFold(a.cfg.Env, "production")
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}
	var backendErr *grievanceapi.Error
	if errors.As(err, &backendErr) {
		status := backendErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		message := backendErr.Detail
		if message == "" {
			message = http.StatusText(status)
		}
		c.JSON(status, gin.H{"error": "backend_error", "message": message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
