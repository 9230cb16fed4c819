package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the parking availability HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		interval := time.Duration(cfg.Datasets.RefreshIntervalMins) * time.Minute
		go refreshLoop(ctx, env, interval)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Engine, cfg.Server.CORSOrigins, time.Duration(cfg.Server.RequestTimeoutSecs)*time.Second),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// refreshLoop re-syncs remote sources (when configured) and republishes the
// snapshot every interval. Failures keep the previous snapshot.
func refreshLoop(ctx context.Context, env *engineEnv, interval time.Duration) {
	if interval <= 0 {
		return
	}
	if env.Syncer == nil {
		env.Holder.Run(ctx, interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncAndRefresh(ctx, env)
		}
	}
}

// syncAndRefresh downloads the configured sources, points the file loader at
// whatever arrived, and republishes the snapshot.
func syncAndRefresh(ctx context.Context, env *engineEnv) {
	results, err := env.Syncer.Sync(ctx)
	if err != nil {
		zap.L().Warn("dataset sync failed", zap.Error(err))
	}
	if env.Files != nil {
		if moved := env.Files.Follow(results); len(moved) > 0 {
			zap.L().Info("dataset sources moved", zap.Strings("tables", moved))
		}
	}
	if err := env.Holder.Refresh(ctx); err != nil {
		zap.L().Warn("dataset refresh failed, keeping previous snapshot", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
