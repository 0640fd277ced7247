package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/keanulaw/NeoCare-App/internal/api"
	"github.com/keanulaw/NeoCare-App/internal/booking"
	"github.com/keanulaw/NeoCare-App/internal/config"
	"github.com/keanulaw/NeoCare-App/internal/dialog"
	"github.com/keanulaw/NeoCare-App/internal/events"
	"github.com/keanulaw/NeoCare-App/internal/google"
	"github.com/keanulaw/NeoCare-App/internal/metrics"
	"github.com/keanulaw/NeoCare-App/internal/recommend"
	"github.com/keanulaw/NeoCare-App/internal/schedule"
	"github.com/keanulaw/NeoCare-App/internal/store"
	"github.com/keanulaw/NeoCare-App/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("NEOCARE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve timezone")
	}

	db, err := store.New(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ConsultantsPath != "" {
		consultants, err := config.LoadConsultants(cfg.ConsultantsPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.ConsultantsPath).Msg("failed to load consultants")
		}
		for _, c := range consultants {
			if err := db.UpsertConsultant(ctx, c); err != nil {
				logger.Fatal().Err(err).Str("consultant_id", c.ID).Msg("failed to seed consultant")
			}
		}
		logger.Info().Int("count", len(consultants)).Msg("consultants seeded")
	}

	recommender := recommend.NewClient(cfg.Recommendation.BaseURL, cfg.Recommendation.APIKey)
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		recommender.UseRedisCache(rdb, cfg.RecommendationCacheTTL())
	}

	resolver := schedule.NewResolver(db)
	bus := events.NewBus()

	if cfg.Sheets.Enabled {
		sheetsService, err := google.NewSheetsService(ctx,
			cfg.Sheets.CredentialsPath, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init sheets sync")
		}
		sheetsService.Subscribe(ctx, bus)
	}

	committer := booking.NewService(db, resolver, bus, &logger)

	sessions := dialog.NewSessionStore(cfg.SessionTimeout())
	go sessionCleanupLoop(ctx, sessions, &logger)

	engine := dialog.NewEngine(dialog.Config{
		Sessions:      sessions,
		Recommender:   recommender,
		Consultants:   db,
		Slots:         resolver,
		Committer:     committer,
		LookaheadDays: cfg.Booking.LookaheadDays,
		PreviewDates:  cfg.Booking.PreviewDates,
		Now:           func() time.Time { return time.Now().In(loc) },
		Logger:        &logger,
	})

	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" {
			logger.Fatal().Msg("set telegram.bot_token in config")
		}
		bot, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, engine, db, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		go func() {
			if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram bot stopped")
			}
		}()
	}

	if cfg.Backup.Enabled {
		go backupLoop(ctx, db, cfg, &logger)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(engine, db, resolver, loc,
		cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, &logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("booking engine started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("shutdown complete")
}

func backupLoop(ctx context.Context, db *store.DB, cfg *config.Config, logger *zerolog.Logger) {
	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
	retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runBackup := func() {
		timestamp := time.Now().Format("20060102_150405")
		dest := filepath.Join(cfg.Backup.Path, fmt.Sprintf("neocare_%s.db", timestamp))
		if err := db.Backup(dest); err != nil {
			logger.Error().Err(err).Msg("backup failed")
			return
		}
		if deleted, err := db.CleanupBackups(cfg.Backup.Path, retention); err != nil {
			logger.Error().Err(err).Msg("backup cleanup failed")
		} else if deleted > 0 {
			logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
		}
	}

	// First backup shortly after startup, then on the interval.
	select {
	case <-time.After(time.Minute):
		runBackup()
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-ticker.C:
			runBackup()
		case <-ctx.Done():
			return
		}
	}
}

func sessionCleanupLoop(ctx context.Context, sessions *dialog.SessionStore, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.Cleanup(); removed > 0 {
				logger.Info().Int("removed", removed).Msg("expired sessions cleaned up")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *store.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
