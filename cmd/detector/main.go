package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/infrastructure/cache"
	"github.com/davidleathers/claimsignal/internal/infrastructure/config"
	"github.com/davidleathers/claimsignal/internal/infrastructure/database"
	"github.com/davidleathers/claimsignal/internal/infrastructure/telemetry"
	"github.com/davidleathers/claimsignal/internal/metrics"
	"github.com/davidleathers/claimsignal/internal/service/detection"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		tenantID   = flag.String("tenant", "", "Tenant to run detection for")
		moduleName = flag.String("module", "", "Detection module (denial_rate, denied_dollars, payment_timing)")
		asOfArg    = flag.String("as-of", "", "Run date in YYYY-MM-DD form (default: today)")
	)
	flag.Parse()

	if err := run(*configPath, *tenantID, *moduleName, *asOfArg); err != nil {
		slog.Error("detection run failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, tenantID, moduleName, asOfArg string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := telemetry.SetupLogger(cfg.LogLevel)
	slog.SetDefault(log)

	asOf := time.Now().UTC()
	if asOfArg != "" {
		asOf, err = time.Parse("2006-01-02", asOfArg)
		if err != nil {
			return fmt.Errorf("invalid -as-of date %q: %w", asOfArg, err)
		}
	}

	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "claimsignal-detector",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	zapLogger, err := buildZapLogger(cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer zapLogger.Sync()

	pool, err := database.NewPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	var suppressionCache detection.SuppressionCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewSuppressionCache(&cfg.Redis, zapLogger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisCache.Close()
		suppressionCache = redisCache
	}

	registry, err := metrics.NewRegistry("claimsignal.detection")
	if err != nil {
		return fmt.Errorf("creating metrics registry: %w", err)
	}

	suppression := detection.NewSuppressionEngine(
		database.NewJudgmentRepository(pool),
		suppressionCache,
		database.NewSuppressionLogRepository(pool),
		zapLogger,
	)

	svc := detection.NewService(
		database.NewClaimRecordSource(pool),
		database.NewAggregateRepository(pool),
		database.NewSignalRepository(pool),
		suppression,
		database.NewRunLock(pool, zapLogger),
		detection.DefaultModuleConfigs(),
		zapLogger,
		detection.Options{
			Concurrency:  cfg.Engine.WorkerConcurrency,
			PublishRate:  cfg.Engine.PublishRatePerSecond,
			PublishBurst: cfg.Engine.PublishBurst,
			Metrics:      registry,
		},
	)

	summary, err := svc.RunDetection(ctx, tenantID, drift.Module(moduleName), asOf)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func buildZapLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
