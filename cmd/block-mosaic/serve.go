package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/block-mosaic/internal/httpapi"
	"github.com/ironsheep/block-mosaic/internal/resultcache"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion service",
	Long: `Starts the mosaic service, exposing POST /minecraftify (alias /convert),
GET /health, GET /palette, POST /palette/reload and GET /metrics.

When REDIS_ADDR is set, finished mosaics are cached in Redis keyed by the
upload bytes, the width, the palette and the grid options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		addr := a.cfg.Addr()
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}
		return serveHTTP(a, addr)
	},
}

func serveHTTP(a *app, addr string) error {
	cfg := a.cfg
	logger := a.logger.Named("serve")

	if err := a.warm(); err != nil {
		// Requests will report the broken palette until it is fixed and reloaded.
		logger.Error("palette unavailable at startup", "error", err)
	}

	var results resultcache.Store = resultcache.Nop{}
	if cfg.RedisAddr != "" {
		store := resultcache.NewRedis(cfg.RedisAddr,
			resultcache.WithTTL(cfg.RedisTTL),
			resultcache.WithPrefix(cfg.RedisPrefix+"result:"),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := store.Ping(ctx); err != nil {
			logger.Warn("result cache unreachable, caching may fail", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		results = store
	}
	defer results.Close()

	handler := httpapi.NewHandler(httpapi.Options{
		Converter:      a.conv,
		Palettes:       a.palettes,
		Source:         cfg.Source(),
		Results:        results,
		Recorder:       a.recorder,
		Logger:         a.logger,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		DefaultWidth:   cfg.DefaultWidth,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env,
			"descriptor", cfg.Source().Descriptor, "version", Version)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt or terminate signals.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			if err := srv.Close(); err != nil {
				logger.Error("failed to close server", "error", err)
			}
			return err
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address, overriding API_HOST and API_PORT (e.g. :8080)")
}
