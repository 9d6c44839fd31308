package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"zap2xml/config"
	"zap2xml/services/epg"
	"zap2xml/services/httpcache"
	"zap2xml/services/listings"
	"zap2xml/services/metrics"
	"zap2xml/utils"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, err := config.ParseFlags("zap2xml", args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "zap2xml: %v\n", err)
		return exitUsage
	}
	settings, err := flags.Settings()
	if err != nil {
		fmt.Fprintf(stderr, "zap2xml: %v\n", err)
		return exitUsage
	}

	logger, logCloser, err := utils.NewLogger(settings.Log, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "zap2xml: init logging: %v\n", err)
		return exitUsage
	}
	defer logCloser.Close()
	logger = logger.With("run", uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, settings.Cache)
	if err != nil {
		logger.Error("failed to open cache", "backend", settings.Cache.Backend, "error", err)
		return exitFailed
	}

	cache := httpcache.NewClient(store, httpcache.Options{
		HTTPClient:    &http.Client{Timeout: 60 * time.Second},
		ExpireAfter:   settings.CacheExpiry(),
		StaleIfError:  true,
		IgnoredParams: []string{"aid"},
		Attempts:      uint(settings.Cache.Retries),
		RetryDelay:    time.Duration(settings.Cache.RetryDelaySeconds) * time.Second,
		Logger:        logger,
	})
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}()

	fetcher := listings.NewClient(cache, listings.ParamsFromSettings(settings.Listings),
		listings.WithBaseURL(settings.Listings.BaseURL),
		listings.WithUserAgent(settings.Listings.UserAgent),
		listings.WithLogger(logger),
	)

	svc := epg.NewService(fetcher, cache, afero.NewOsFs(), epg.OptionsFromSettings(settings), logger)
	summary, runErr := svc.Run(ctx)

	if path := settings.Output.MetricsFile; path != "" {
		m := metrics.NewRunMetrics()
		m.Observe(summary, runErr, time.Now())
		if err := m.WriteFile(path); err != nil {
			logger.Warn("failed to write metrics", "path", path, "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return exitFailed
	}
	return exitOK
}

func openStore(ctx context.Context, cfg config.CacheSettings) (httpcache.Store, error) {
	switch cfg.Backend {
	case config.CacheBackendSQLite:
		return httpcache.OpenSQLiteStore(ctx, filepath.Join(cfg.Directory, "cache.db"))
	case config.CacheBackendRedis:
		return httpcache.OpenRedisStore(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.KeyPrefix)
	default:
		return httpcache.NewFileStore(afero.NewOsFs(), cfg.Directory)
	}
}
