package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notionblog/internal/config"
	"notionblog/internal/freshness"
	"notionblog/internal/gateway"
	"notionblog/internal/loader"
	"notionblog/internal/logging"
	"notionblog/internal/notion"
	"notionblog/internal/posts"
	"notionblog/internal/render"
	"notionblog/internal/web"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("blog server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	site, err := config.LoadSiteConfig(cfg.SiteConfigPath)
	if err != nil {
		return err
	}

	notionClient := notion.NewClient(notion.Config{
		BaseURL: cfg.NotionAPIBase,
		Token:   cfg.NotionKey,
		Version: cfg.NotionVersion,
		Logger:  logger.Named("notion"),
	})

	resultCache, closeCache, err := newResultCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	gatewayService := gateway.NewService(notionClient, gateway.ServiceOptions{
		Cache:  resultCache,
		TTL:    cfg.RefreshCacheTTL,
		Logger: logger.Named("gateway"),
	})

	freshnessCache, err := freshness.NewMemory(freshness.MemoryOptions{
		Logger: logger.Named("freshness"),
		MaxTTL: 2 * cfg.ImageConfirmedTTL,
	})
	if err != nil {
		return fmt.Errorf("create freshness cache: %w", err)
	}
	defer func() { _ = freshnessCache.Close() }()

	policy := loader.DefaultPolicy()
	policy.Ceiling = cfg.ImageRetryLimit
	policy.Cooldown = cfg.ImageCooldown
	policy.RenderedTTL = cfg.ImageRenderedTTL
	policy.ConfirmedTTL = cfg.ImageConfirmedTTL
	loaderOpts := loader.Options{
		Cache:     freshnessCache,
		Refresher: gatewayService,
		Policy:    policy,
		Logger:    logger.Named("loader"),
	}

	postService := posts.NewService(notionClient, cfg.NotionDatabaseID, posts.Options{
		CacheTTL: cfg.ContentCacheTTL,
		Logger:   logger.Named("posts"),
	})
	renderer := render.New(loader.NewFactory(loaderOpts), render.Options{
		RootURL: cfg.RootURL,
		Logger:  logger.Named("render"),
	})

	handler, err := web.NewHandler(web.Deps{
		Config:   cfg,
		Site:     site,
		Posts:    postService,
		Renderer: renderer,
		Gateway:  gateway.NewHandler(gatewayService, logger.Named("gateway")),
		Loader:   loaderOpts,
		Metrics:  promhttp.Handler(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("handler setup failed: %w", err)
	}

	return serve(cfg.ListenAddr, handler, logger)
}

// newResultCache layers the in-process cache over redis when a redis URL is
// configured, so gateway results are shared between instances.
func newResultCache(cfg config.Config, logger *zap.Logger) (gateway.ResultCache, func(), error) {
	memory := gateway.NewMemoryCache(cfg.RefreshCacheTTL)
	if cfg.RedisURL == "" {
		return memory, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	shared := gateway.NewRedisCache(client, logger.Named("redis"))

	logger.Info("gateway results shared through redis", zap.String("addr", opts.Addr))
	return gateway.NewTiered(cfg.RefreshCacheTTL, memory, shared), func() { _ = client.Close() }, nil
}

func serve(addr string, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("blog server listening", zap.String("addr", addr))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("blog server shutting down")
	return server.Shutdown(shutdownCtx)
}
