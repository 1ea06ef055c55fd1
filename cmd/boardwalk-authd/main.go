package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/boardwalk-dev/boardwalk/pkg/api"
	"github.com/boardwalk-dev/boardwalk/pkg/audit"
	"github.com/boardwalk-dev/boardwalk/pkg/authz"
	"github.com/boardwalk-dev/boardwalk/pkg/config"
	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	table, err := authz.LoadRoleTableFile(cfg.Authz.RoleTablePath)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.Authz.RoleTablePath).Error("failed to load role table")
		os.Exit(1)
	}
	logger.WithFields(map[string]interface{}{
		"path":  cfg.Authz.RoleTablePath,
		"roles": len(table.Roles()),
	}).Info("role table loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolver tier chain: memory -> (redis) -> role table.
	tableResolver := authz.NewTableResolver(table, logger, metrics)
	var next authz.PermissionResolver = tableResolver
	var redisCache *authz.RedisCache
	if cfg.Authz.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Authz.RedisURL)
		if err != nil {
			logger.WithError(err).Error("invalid redis URL")
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			// Degraded but functional: every resolve falls through to the
			// role table until redis comes back.
			logger.WithError(err).Warn("redis unreachable at startup, continuing degraded")
		}
		redisCache = authz.NewRedisCache(client, tableResolver, authz.RedisCacheConfig{TTL: cfg.Authz.CacheTTL}, logger, metrics)
		next = redisCache
	}
	memoryCache := authz.NewMemoryCache(next, authz.MemoryCacheConfig{
		TTL:  cfg.Authz.CacheTTL,
		Size: cfg.Authz.CacheSize,
	}, metrics)
	if redisCache != nil {
		redisCache.SetLocalCache(memoryCache)
		go func() {
			if err := redisCache.ListenInvalidations(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Warn("invalidation listener stopped")
			}
		}()
	}

	engine := authz.NewEngine(tableResolver, memoryCache, authz.Config{
		EventBufferSize: cfg.Authz.EventBufferSize,
	}, logger, metrics)

	// Audit collaborator: structured log always, JSONL file when configured.
	sinks := []audit.Logger{audit.NewSlogLogger(logger)}
	if cfg.Authz.AuditLogPath != "" {
		fileSink, err := audit.NewFileLogger(audit.FileLoggerConfig{Path: cfg.Authz.AuditLogPath})
		if err != nil {
			logger.WithError(err).Error("failed to open audit log")
			os.Exit(1)
		}
		sinks = append(sinks, fileSink)
	}
	collector := audit.NewCollector(engine.Events(), audit.NewMultiLogger(sinks...), logger, metrics)
	go func() {
		if err := collector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Warn("audit collector stopped")
		}
	}()

	if cfg.Authz.WatchRoleTable {
		watcher, err := authz.NewTableWatcher(engine, cfg.Authz.RoleTablePath, logger, metrics)
		if err != nil {
			logger.WithError(err).Error("failed to watch role table")
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Warn("role table watcher stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(engine, logger, metrics),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("boardwalk authorization server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}
