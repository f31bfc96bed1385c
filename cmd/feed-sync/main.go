// cmd/feed-sync/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"feed-sync/internal/common/aws"
	"feed-sync/internal/common/config"
	"feed-sync/internal/common/database"
	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/observability"
	"feed-sync/internal/feed/engine"
	"feed-sync/internal/models"
	"feed-sync/internal/push"
	"feed-sync/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting feed sync...",
		zap.String("store", cfg.Store.Backend),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Document store ---
	var st store.DocStore
	switch cfg.Store.Backend {
	case config.BackendRedis:
		st = store.NewRedisStore(rdb.Client, cfg.Store.KeyPrefix, log)
	default:
		zapLog.Warn("using the in-process store; data is lost on exit")
		st = store.NewMemoryStore()
	}

	// --- Push stack ---
	deps := engine.Deps{
		Observability: obs,
		Alerts: apperrors.AlertFunc(func(a apperrors.Alert) {
			zapLog.Warn("alert", zap.String("code", string(a.Code)), zap.String("title", a.Title), zap.String("message", a.Message))
		}),
	}
	deps.Notifier, deps.Tokens = buildPush(ctx, cfg, pg, rdb, log, zapLog)

	// --- Engine ---
	eng := engine.New(engine.FromApp(cfg), st, deps, log)
	defer eng.Close()

	eng.Observe(func(s engine.State) {
		zapLog.Info("feed updated",
			zap.String("view", string(s.View)),
			zap.String("role", string(s.Role)),
			zap.Int("donorItems", len(s.DonorItems)),
			zap.Int("receiverItems", len(s.ReceiverItems)),
			zap.Int("unseen", s.UnseenCount),
		)
	})

	if cfg.Session.HighlightRequest != "" {
		key := models.HighlightKey{
			RequestID: cfg.Session.HighlightRequest,
			DonorName: cfg.Session.HighlightDonor,
			Status:    cfg.Session.HighlightStatus,
		}
		if err := eng.SetHighlight(ctx, key); err != nil {
			zapLog.Error("failed to set highlight", zap.Error(err))
		}
	}
	if err := eng.SetIdentity(ctx, cfg.Session.UID); err != nil {
		zapLog.Fatal("failed to attach feed", zap.Error(err))
	}
	if cfg.Session.UID == "" {
		zapLog.Warn("no session uid configured; feed stays signed out")
	}

	// --- Focus ticker ---
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Session.FocusIntervalSecs) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := eng.Focus(ctx); err != nil && ctx.Err() == nil {
					zapLog.Error("focus failed", zap.Error(err))
				}
			}
		}
	}()

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s, err := eng.State(r.Context())
		if err != nil || s.View == engine.ViewLoading {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"view":   string(s.View),
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		s, err := eng.State(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, detaching feed...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics server", zap.Error(err))
	}
	eng.Close()

	zapLog.Info("Feed sync stopped gracefully")
}

// buildPush wires SNS delivery when enabled and falls back to logging the
// notifications otherwise. Token lookup needs Postgres or Redis.
func buildPush(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, rdb *database.RedisClient, log logger.Logger, zapLog *zap.Logger) (push.Notifier, push.TokenLookup) {
	pushCfg := push.LoadConfig()
	pushCfg.Enabled = cfg.Push.Enabled
	pushCfg.TokenTable = cfg.Push.TokenTable
	pushCfg.TokenCacheTTL = time.Duration(cfg.Push.TokenCacheTTL) * time.Second
	if cfg.Push.Region != "" {
		pushCfg.AWSRegion = cfg.Push.Region
	}

	var notifier push.Notifier = push.NewLogNotifier(log)
	if pushCfg.Enabled {
		client, err := aws.NewSNSClient(ctx, pushCfg.AWSRegion, cfg.Push.Endpoint)
		if err != nil {
			zapLog.Error("SNS client init failed, push notifications will only be logged", zap.Error(err))
		} else {
			notifier = push.NewSNSNotifier(client, log)
			zapLog.Info("SNS push enabled", zap.String("region", pushCfg.AWSRegion))
		}
	}

	if pg == nil && rdb == nil {
		zapLog.Warn("no token backend configured; requesters will not be notified")
		return notifier, nil
	}
	if pg != nil {
		if err := pg.EnsureTokenTable(ctx, pushCfg.TokenTable); err != nil {
			zapLog.Error("failed to ensure token table", zap.Error(err))
		}
	}

	var (
		db *sql.DB
		rc *redis.Client
	)
	if pg != nil {
		db = pg.DB
	}
	if rdb != nil {
		rc = rdb.Client
	}
	return notifier, push.NewTokenStore(pushCfg, db, rc, log)
}
