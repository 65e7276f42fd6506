package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasktree/internal/cache"
	"github.com/mesh-intelligence/tasktree/internal/server"
	"github.com/mesh-intelligence/tasktree/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task API over HTTP",
	Long:  "Attach the task store, start the HTTP API, and run until interrupted. SIGINT and SIGTERM drain in-flight requests before exit.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "serve:", err)
			os.Exit(exitSysError)
		}

		// The cache is best-effort: an unreachable Redis downgrades to
		// uncached reads instead of blocking startup.
		var taskCache *cache.Cache
		if cfg.Cache.Enabled {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Addr,
				Password: cfg.Cache.Password,
				DB:       cfg.Cache.DB,
			})
			if err := client.Ping(cmd.Context()).Err(); err != nil {
				logger.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("redis unreachable, caching disabled")
				client.Close()
			} else {
				taskCache = cache.New(client, cfg.Cache.Prefix, cfg.Cache.TTL)
				logger.Info().Str("addr", cfg.Cache.Addr).Dur("ttl", cfg.Cache.TTL).Msg("read cache enabled")
			}
		}

		svc := service.New(backend, taskCache, logger)
		srv := server.New(svc, logger)

		go func() {
			if err := srv.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal().Err(err).Msg("http server failed")
			}
		}()
		logger.Info().
			Str("addr", cfg.Server.Addr()).
			Str("driver", cfg.Driver).
			Msg("taskd listening")

		wait := gfshutdown.GracefulShutdown(context.Background(), cfg.Server.ShutdownGrace, map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"store": func(ctx context.Context) error {
				return backend.Detach()
			},
			"cache": func(ctx context.Context) error {
				if taskCache == nil {
					return nil
				}
				stats := taskCache.Stats()
				logger.Info().Int64("hits", stats.Hits).Int64("misses", stats.Misses).Msg("cache drained")
				return taskCache.Close()
			},
		})

		code := <-wait
		logger.Info().Int("code", code).Msg("taskd stopped")
		os.Exit(code)
		return nil
	},
}
