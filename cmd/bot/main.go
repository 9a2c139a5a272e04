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

	"shala/internal/attend"
	"shala/internal/bot"
	"shala/internal/config"
	"shala/internal/db"
	"shala/internal/metrics"
	"shala/internal/model"
	"shala/internal/notify"
	"shala/internal/schedule"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SHALA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc := cfg.Location()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureDefaultTemplate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("seed weekly template")
	}

	var rdb *redis.Client
	var cache *schedule.Cache
	if cfg.Redis.Address != "" && cfg.Redis.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = schedule.NewCache(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second)
	}

	venues, err := schedule.NewVenueTable(cfg.Venues)
	if err != nil {
		logger.Fatal().Err(err).Msg("build venue table")
	}
	resolver := schedule.NewResolver(database, cache, logger)
	attendance := attend.New(database, loc, logger)

	b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, bot.Deps{
		DB:               database,
		Resolver:         resolver,
		Cache:            cache,
		Venues:           venues,
		Attendance:       attendance,
		Admins:           cfg.Admins,
		ChannelID:        cfg.Telegram.ChannelID,
		Location:         loc,
		StateTimeout:     cfg.AdminStateTimeout(),
		TargetOffsetDays: cfg.Schedule.TargetOffsetDays,
		Logger:           &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	transport := b.Transport()
	dispatcher := notify.NewDispatcher(database, resolver, venues, transport, logger)
	cleaner := notify.NewCleaner(database, transport, logger)
	b.AttachNotify(dispatcher, cleaner)

	scheduler, err := buildScheduler(cfg, loc, database, dispatcher, cleaner, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build scheduler")
	}
	go scheduler.Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, database, cfg, &logger)
	}

	logger.Info().Msg("shala bot started")
	b.Start(ctx)
}

func buildScheduler(
	cfg *config.Config,
	loc *time.Location,
	database *db.DB,
	dispatcher *notify.Dispatcher,
	cleaner *notify.Cleaner,
	logger zerolog.Logger,
) (*notify.Scheduler, error) {
	s := notify.NewScheduler(loc, logger)

	type clockJob struct {
		name   string
		at     string
		offset int
		run    func(ctx context.Context, date string) error
	}
	jobs := []clockJob{
		{"post_morning", cfg.Schedule.MorningAt, cfg.Schedule.TargetOffsetDays, func(ctx context.Context, date string) error {
			return dispatcher.DispatchSlot(ctx, date, model.SlotMorning)
		}},
		{"post_evening", cfg.Schedule.EveningAt, cfg.Schedule.TargetOffsetDays, func(ctx context.Context, date string) error {
			return dispatcher.DispatchSlot(ctx, date, model.SlotEvening)
		}},
		{"post_absence", cfg.Schedule.AbsenceAt, cfg.Schedule.TargetOffsetDays, dispatcher.DispatchAbsence},
		{"cleanup_morning", cfg.Cleanup.Morning.At, cfg.Cleanup.Morning.OffsetDays, func(ctx context.Context, date string) error {
			return cleaner.Cleanup(ctx, date, model.SlotMorning)
		}},
		{"cleanup_evening", cfg.Cleanup.Evening.At, cfg.Cleanup.Evening.OffsetDays, func(ctx context.Context, date string) error {
			return cleaner.Cleanup(ctx, date, model.SlotEvening)
		}},
		{"cleanup_absence", cfg.Cleanup.Absence.At, cfg.Cleanup.Absence.OffsetDays, func(ctx context.Context, date string) error {
			return cleaner.Cleanup(ctx, date, model.SlotNoClasses)
		}},
		{"retention_sweep", cfg.Cleanup.SweepAt, -cfg.Cleanup.RetentionDays, func(ctx context.Context, date string) error {
			if err := cleaner.Sweep(ctx, date); err != nil {
				return err
			}
			_, err := database.PurgeOverridesBefore(ctx, date)
			return err
		}},
	}

	for _, j := range jobs {
		hour, minute, err := config.ParseClock(j.at)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", j.name, err)
		}
		s.AddJob(notify.Job{
			Name:       j.name,
			Hour:       hour,
			Minute:     minute,
			OffsetDays: j.offset,
			Run:        j.run,
		})
	}
	return s, nil
}

func startBackupLoop(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
	retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(database, cfg, retention, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(database, cfg, retention, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(database *db.DB, cfg *config.Config, retention time.Duration, logger *zerolog.Logger) {
	timestamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(cfg.Backup.Path, fmt.Sprintf("shala_%s.db", timestamp))

	logger.Info().Str("path", dest).Msg("starting database backup")
	if err := database.Backup(dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Msg("backup completed successfully")
	}

	deleted, err := database.CleanupBackups(cfg.Backup.Path, retention)
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
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
