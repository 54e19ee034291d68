// cmd/scanner/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"edgarwatch/internal/common/config"
	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/edgar"
	"edgarwatch/internal/models"
	"edgarwatch/internal/notify"
	"edgarwatch/internal/scan"
	"edgarwatch/internal/search"
	"edgarwatch/internal/store"
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
			delay *= 2 // Exponential backoff
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting filing scanner...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
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

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var indexer scan.FilingIndexer
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient, cfg.Database.Elasticsearch.FilingsIdx, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch not configured, search indexing disabled")
	}

	// --- Stores ---
	issuers := store.NewIssuerStore(pg, log)
	filings := store.NewFilingStore(pg, log)
	prefs := store.NewPreferenceStore(pg, log)
	devices := store.NewDeviceStore(pg, log)
	watchlists := store.NewWatchlistStore(pg, log)
	history := store.NewHistoryStore(pg, log)

	// --- Discovery client ---
	cursors := edgar.NewRedisCursorStore(redis.GetClient())
	edgarClient := edgar.NewClient(cfg.SEC, cursors, log)

	// --- Push transports ---
	dispatcher := notify.NewDispatcher(devices, history, log)
	if cfg.Push.Relay.Enabled {
		relay := notify.NewRelayTransport(cfg.Push.Relay.URL,
			time.Duration(cfg.SEC.RequestTimeout)*time.Millisecond, log)
		dispatcher.RegisterTransport(models.TokenKindRelay, relay)
		zapLog.Info("Relay push transport enabled")
	}
	if cfg.Push.Direct.Enabled {
		direct, err := notify.NewDirectTransport(ctx, cfg.Push, log)
		if err != nil {
			zapLog.Fatal("direct push transport failed", zap.Error(err))
		}
		dispatcher.RegisterTransport(models.TokenKindDirect, direct)
		zapLog.Info("Direct push transport enabled")
	}
	if !dispatcher.Configured() {
		zapLog.Warn("No push transport configured, filings will be recorded but not announced")
	}

	// --- Pipeline ---
	targeter := notify.NewTargeter(prefs, watchlists, log)
	orch := scan.NewOrchestrator(issuers, filings, edgarClient, edgarClient,
		time.Duration(cfg.SEC.LookbackMinutes)*time.Minute, log)
	pipeline := scan.NewPipeline(orch, targeter, dispatcher, indexer, log)

	// --- Schedule ---
	scheduler := cron.New()
	running := make(chan struct{}, 1)
	_, err = scheduler.AddFunc(fmt.Sprintf("@every %ds", cfg.Scan.IntervalSeconds), func() {
		select {
		case running <- struct{}{}:
			defer func() { <-running }()
		default:
			zapLog.Warn("previous scan pass still running, skipping")
			return
		}
		if err := pipeline.RunOnce(ctx); err != nil && ctx.Err() == nil {
			zapLog.Error("scan pass failed", zap.Error(err))
		}
	})
	if err != nil {
		zapLog.Fatal("scheduler setup failed", zap.Error(err))
	}
	scheduler.Start()
	zapLog.Info("Scan schedule started", zap.Int("intervalSeconds", cfg.Scan.IntervalSeconds))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// Run one pass immediately rather than waiting a full interval.
	go func() {
		if err := pipeline.RunOnce(ctx); err != nil && ctx.Err() == nil {
			zapLog.Error("initial scan pass failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zapLog.Info("Shutdown signal received, stopping scanner...")
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		zapLog.Warn("scan pass did not finish before shutdown deadline")
	}
	zapLog.Info("Scanner stopped gracefully")
}
