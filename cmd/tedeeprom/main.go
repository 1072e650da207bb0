// Package main is the entrypoint for the tedeeprom webhook exporter.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/tedeeprom/tedeeprom/internal/capture"
	"github.com/tedeeprom/tedeeprom/internal/catalog"
	"github.com/tedeeprom/tedeeprom/internal/config"
	"github.com/tedeeprom/tedeeprom/internal/event"
	"github.com/tedeeprom/tedeeprom/internal/handler"
	"github.com/tedeeprom/tedeeprom/internal/metrics"
	"github.com/tedeeprom/tedeeprom/internal/middleware"
	"github.com/tedeeprom/tedeeprom/internal/repository"
	"github.com/tedeeprom/tedeeprom/internal/server"
	"github.com/tedeeprom/tedeeprom/internal/storage"
)

// shutdownGrace bounds cleanup after a failed startup.
const shutdownGrace = 5 * time.Second

// component is a dependency that must be stopped on shutdown.
type component struct {
	name string
	stop server.ShutdownFunc
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	recorder := metrics.NewPrometheus()

	var components []component
	fail := func(msg string, attrs ...any) {
		logger.Error(msg, attrs...)
		stopCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		for i := len(components) - 1; i >= 0; i-- {
			_ = components[i].stop(stopCtx)
		}
		cancel()
		os.Exit(1)
	}

	// Redis is shared by metric storage and the stream capture sink.
	var redisClient *redis.Client
	if cfg.StorageBackend == config.StorageRedis || cfg.CaptureBackend == config.CaptureRedis {
		redisClient, err = storage.NewRedisClient(ctx, storage.RedisConfig{
			URL:          cfg.RedisURL,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisReadTimeout,
		})
		if err != nil {
			fail("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
		}
		components = append(components, component{"redis", func(context.Context) error { return redisClient.Close() }})
		logger.Info("connected to Redis", "redis_url", redactURL(cfg.RedisURL))
	}

	var store storage.Storage
	switch cfg.StorageBackend {
	case config.StorageRedis:
		store = storage.NewRedis(redisClient, cfg.RedisPrefix)
	default:
		logger.Warn("using in-memory metric storage; samples are lost on restart")
		store = storage.NewMemory()
	}

	sink, captureCheck, extra, err := buildCaptureSink(ctx, cfg, redisClient, logger)
	if err != nil {
		fail("failed to initialize request capture",
			slog.String("backend", cfg.CaptureBackend),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
	}
	components = append(components, extra...)

	capturer := capture.NewCapturer(sink, logger, recorder, capture.DefaultTimeout)
	components = append(components, component{"capture", func(context.Context) error { return capturer.Close() }})

	router := event.NewRouter(catalog.New(store, cfg.MetricNamespace))

	webhookHandler := handler.NewWebhookHandler(router, capturer, recorder, logger)
	metricsHandler := handler.NewMetricsHandler(store, recorder, logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthChecker{
		"storage": store,
		"capture": captureCheck,
	})

	r := setupRouter(webhookHandler, metricsHandler, healthHandler, recorder.Handler(), cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, c := range components {
		srv.OnShutdown(c.name, c.stop)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage", cfg.StorageBackend,
		"capture", cfg.CaptureBackend,
		"namespace", cfg.MetricNamespace,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildCaptureSink selects the raw-request capture backend. The returned
// checker is nil when the sink has nothing to ping.
func buildCaptureSink(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (capture.Sink, handler.HealthChecker, []component, error) {
	switch cfg.CaptureBackend {
	case config.CaptureFile:
		sink, err := capture.NewFileSink(cfg.CaptureFile)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("capturing requests to file", "path", cfg.CaptureFile)
		return sink, nil, nil, nil

	case config.CaptureRedis:
		sink := capture.NewStreamSink(redisClient, cfg.CaptureStream, cfg.CaptureStreamMaxLen)
		logger.Info("capturing requests to Redis stream", "stream", cfg.CaptureStream, "max_len", cfg.CaptureStreamMaxLen)
		return sink, sink, nil, nil

	case config.CapturePostgres:
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect database %s: %w", redactURL(cfg.DatabaseURL), err)
		}
		logger.Info("capturing requests to PostgreSQL", "database_url", redactURL(cfg.DatabaseURL))

		pruner := capture.NewPruner(repo, cfg.CaptureRetention, cfg.CapturePruneEvery, logger)
		pruner.Start()

		// Stop order is LIFO: the pruner stops before the pool closes.
		components := []component{
			{"postgres", func(context.Context) error { repo.Close(); return nil }},
			{"capture-pruner", pruner.Stop},
		}
		return capture.NewPostgresSink(repo), repo, components, nil

	default:
		return capture.NoopSink{}, nil, nil, nil
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	webhookHandler *handler.WebhookHandler,
	metricsHandler *handler.MetricsHandler,
	healthHandler *handler.HealthHandler,
	selfMetrics http.Handler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	r.Get("/metrics", metricsHandler.Metrics)
	r.Handle("/internal/metrics", selfMetrics)

	// Bridges are configured with a bare URL and may use any method.
	r.Group(func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.MaxRequestBodySize))
		r.HandleFunc("/webhook", webhookHandler.Receive)
		r.HandleFunc("/", webhookHandler.Receive)
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
