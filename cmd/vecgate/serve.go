package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecgate"
	"github.com/hupe1980/vecgate/blobstore/minio"
	"github.com/hupe1980/vecgate/blobstore/s3"
	"github.com/hupe1980/vecgate/internal/config"
	"github.com/hupe1980/vecgate/internal/server"
	"github.com/hupe1980/vecgate/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load an index and serve search requests over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	f.StringP("index-location", "i", config.DefaultIndexLocation, "index path or URL (file://, s3://, minio://)")
	f.String("addr", ":8000", "listen address")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "text", "log format (text, json)")
	f.Int("max-k", vecgate.DefaultMaxK, "largest accepted k")
	f.Int("workers", 0, "search workers (0 = GOMAXPROCS)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	level, err := vecgate.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	logger, err := vecgate.NewFormatLogger(os.Stderr, cfg.Log.Format, levelVar)
	if err != nil {
		return err
	}
	server.SetHertzLogger(os.Stderr, levelVar)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown", "error", err)
			}
		}()
	}

	handle, err := vecgate.Load(ctx, cfg.Index.Location, loadOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warn("close index", "error", err)
		}
	}()

	metrics := telemetry.NewPrometheus()
	metrics.RegisterIndex(handle.Info())

	exec, err := vecgate.NewExecutor(handle, executorOptions(cfg, logger, metrics)...)
	if err != nil {
		return err
	}
	defer exec.Close()
	metrics.RegisterWorkers(exec)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ExitWait:     cfg.Server.ExitWait,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, exec, server.WithLogger(logger), server.WithMetrics(metrics))

	logger.Info("listening", "addr", cfg.Server.Addr, "workers", exec.Workers())
	srv.Spin()
	return nil
}

func loadOptions(cfg *config.Config, logger *vecgate.Logger) []vecgate.Option {
	return []vecgate.Option{
		vecgate.WithLogger(logger),
		vecgate.WithCacheDir(cfg.Index.CacheDir),
		vecgate.WithS3Options(func(o *s3.Options) {
			o.Region = cfg.S3.Region
			o.Endpoint = cfg.S3.Endpoint
			o.UsePathStyle = cfg.S3.PathStyle
		}),
		vecgate.WithMinIO(minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Secure:    cfg.MinIO.Secure,
			Region:    cfg.MinIO.Region,
		}),
	}
}

func executorOptions(cfg *config.Config, logger *vecgate.Logger, metrics vecgate.MetricsCollector) []vecgate.Option {
	q := cfg.Query
	opts := []vecgate.Option{
		vecgate.WithLogger(logger),
		vecgate.WithMetricsCollector(metrics),
		vecgate.WithStrictDimensions(q.StrictDimensions),
		vecgate.WithMaxK(q.MaxK),
		vecgate.WithMaxBatch(q.MaxBatch),
		vecgate.WithWorkers(q.Workers),
		vecgate.WithConcurrencyLimit(q.MaxConcurrent, q.QueueTimeout),
		vecgate.WithRateLimit(q.RateLimit, q.RateBurst),
		vecgate.WithMemoryLimit(q.MemoryLimit),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, vecgate.WithResultCache(cfg.Cache.MaxEntries))
	}
	return opts
}
