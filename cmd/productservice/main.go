package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"productservice/internal/api"
	"productservice/internal/cache"
	"productservice/internal/config"
	"productservice/internal/invalidation"
	"productservice/internal/logger"
	"productservice/internal/models"
	"productservice/internal/observability"
	"productservice/internal/product"
	"productservice/internal/ratelimit"
	"productservice/internal/storage"
	"productservice/internal/version"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var configFile = flag.String("config", "", "Path to configuration file")

// pingFunc adapts a function to api.RedisPinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	flag.Parse()

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ver := version.GetInfo()

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	// One Redis connection pool backs buckets, cache entries and the bus.
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = newRedisClient(cfg.Redis)
		defer redisClient.Close()
	}

	interceptor, bucketCloser, err := initializeRateLimiting(cfg, redisClient, log)
	if err != nil {
		slog.Error("Failed to initialize rate limiting", "error", err)
		os.Exit(1)
	}
	if bucketCloser != nil {
		defer bucketCloser.Close()
	}

	resultCache, cacheCloser, err := initializeCache(cfg, redisClient, log)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	if cacheCloser != nil {
		defer cacheCloser.Close()
	}

	serviceOpts := product.Options{Interceptor: interceptor, Logger: log}
	handlerOpts := []api.HandlerOption{
		api.WithStorage(activeStorage),
		api.WithInterceptor(interceptor),
		api.WithConfig(cfg),
	}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, api.WithRedis(pingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})))
	}

	var (
		publisher   *invalidation.Publisher
		coordinator *invalidation.Coordinator
	)
	if resultCache != nil {
		serviceOpts.Cache = resultCache

		if cfg.Invalidation.Enabled {
			publisher, coordinator, err = initializeInvalidation(cfg, redisClient, resultCache, log)
			if err != nil {
				slog.Error("Failed to initialize cache invalidation", "error", err)
				os.Exit(1)
			}
			serviceOpts.Publisher = publisher
			handlerOpts = append(handlerOpts, api.WithInvalidator(coordinator))
		} else {
			slog.Warn("Cache invalidation disabled; other instances serve stale entries until they expire",
				"ttl", resultCache.TTL())
		}
	}

	// Initialize product service
	productService := product.NewService(activeStorage, serviceOpts)

	handlers := api.NewHandlers(productService, handlerOpts...)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider, log)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server",
			"addr", server.Addr,
			"rate_limiting", ratelimit.Mode(interceptor.Capability()),
			"storage", cfg.Storage.Type)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// In-flight requests are done; let their announcements go out before the
	// listener and the Redis connection close.
	if publisher != nil {
		publisher.Wait()
	}
	if coordinator != nil {
		if err := coordinator.Stop(); err != nil {
			slog.Error("Failed to stop cache coordinator", "error", err)
		}
	}

	slog.Info("Server shutdown complete")
}

func newRedisClient(cfg models.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// Per-call deadlines (store_timeout, op_timeout, publish_timeout)
		// only bound socket reads with this set.
		ContextTimeoutEnabled: true,
	})
}

// initializeRateLimiting builds the interceptor over the configured bucket
// store. A Redis store is probed once: when unreachable, rate limiting is
// disabled if fail_open is set and startup fails otherwise.
func initializeRateLimiting(cfg *models.Config, client *redis.Client, log *slog.Logger) (*ratelimit.Interceptor, io.Closer, error) {
	if !cfg.RateLimit.Enabled {
		slog.Warn("Rate limiting disabled by configuration")
		return ratelimit.NewInterceptor(ratelimit.Disabled{Reason: "disabled by configuration"}, nil, log), nil, nil
	}

	registry, err := ratelimit.NewRegistry(cfg.RateLimit)
	if err != nil {
		return nil, nil, err
	}

	var store ratelimit.BucketStore
	var closer io.Closer
	switch cfg.RateLimit.Store {
	case models.BackendRedis:
		store = ratelimit.NewRedisStore(client)
	case models.BackendMemory:
		memory := ratelimit.NewMemoryStore(nil, time.Minute)
		store, closer = memory, memory
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit store: %s", cfg.RateLimit.Store)
	}

	limiter, err := ratelimit.NewRateLimiter(registry, store, ratelimit.OptionsFromConfig(cfg.RateLimit, log))
	if err != nil {
		return nil, closer, err
	}

	table := ratelimit.NewPolicyTable(registry)
	if err := product.RegisterPolicies(table); err != nil {
		return nil, closer, err
	}

	var capability ratelimit.Capability = ratelimit.Enabled{Limiter: limiter}
	if cfg.RateLimit.Store == models.BackendRedis {
		probeCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+time.Second)
		defer cancel()
		capability, err = ratelimit.Probe(probeCtx, client, limiter, cfg.RateLimit.FailOpen)
		if err != nil {
			return nil, closer, err
		}
	}
	if disabled, ok := capability.(ratelimit.Disabled); ok {
		slog.Warn("Rate limiting disabled", "reason", disabled.Reason)
	} else {
		slog.Info("Rate limiting enabled", "store", cfg.RateLimit.Store, "tiers", registry.Len(), "operations", table.Operations())
	}

	return ratelimit.NewInterceptor(capability, table, log), closer, nil
}

// initializeCache returns a nil cache when caching is disabled.
func initializeCache(cfg *models.Config, client *redis.Client, log *slog.Logger) (*cache.Cache, io.Closer, error) {
	if !cfg.Cache.Enabled {
		return nil, nil, nil
	}

	var store cache.Store
	var closer io.Closer
	switch cfg.Cache.Type {
	case models.BackendRedis:
		store = cache.NewRedisStore(client)
	case models.BackendMemory:
		memory := cache.NewMemoryStore(cfg.Cache.Memory.MaxSize, cfg.Cache.TTL)
		store, closer = memory, memory
	default:
		return nil, nil, fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}

	c, err := cache.New(cfg.Cache.Name, store, cache.Options{
		TTL:       cfg.Cache.TTL,
		OpTimeout: cfg.Cache.OpTimeout,
		Logger:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, closer, nil
}

// initializeInvalidation subscribes this instance to the invalidation
// channel. A memory bus only reaches this process.
func initializeInvalidation(cfg *models.Config, client *redis.Client, evictor invalidation.Evictor, log *slog.Logger) (*invalidation.Publisher, *invalidation.Coordinator, error) {
	var bus invalidation.Bus
	switch cfg.Invalidation.Type {
	case models.BackendRedis:
		bus = invalidation.NewRedisBus(client)
	case models.BackendMemory:
		slog.Warn("In-memory invalidation bus; other instances will not be notified")
		bus = invalidation.NewMemoryBus(0)
	default:
		return nil, nil, fmt.Errorf("unsupported invalidation type: %s", cfg.Invalidation.Type)
	}

	coordinator, err := invalidation.NewCoordinator(bus, cfg.Invalidation.Channel, evictor, log)
	if err != nil {
		return nil, nil, err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+time.Second)
	defer cancel()
	if err := coordinator.Start(startCtx); err != nil {
		return nil, nil, err
	}

	publisher := invalidation.NewPublisher(bus, cfg.Invalidation.Channel, cfg.Invalidation.PublishTimeout, log)
	return publisher, coordinator, nil
}
