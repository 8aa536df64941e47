package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"audiovault/internal/api"
	"audiovault/internal/catalog"
	"audiovault/internal/config"
	"audiovault/internal/downloads"
	"audiovault/internal/extractor"
	"audiovault/internal/logging"
	"audiovault/internal/media"
	"audiovault/internal/metrics"
	"audiovault/internal/progress"
	"audiovault/internal/runner"
)

// newServeCmd creates the 'serve' subcommand running the HTTP service and the
// worker pool until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the download service",
		Long: `Runs the HTTP API and the extraction worker pool. The service keeps a
catalog of completed downloads next to the artifact files and serves both
over HTTP.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()

	if err := os.MkdirAll(cfg.Library.DownloadsDir, 0o750); err != nil {
		return fmt.Errorf("create downloads directory: %w", err)
	}

	store, err := catalog.New(cfg.Library.CatalogPath)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}

	tracker := progress.NewTracker(progress.WithObserver(func(id string, status media.Status) {
		logger.Debug("job status changed", zap.String("id", id), zap.String("status", string(status)))
	}))

	ext, err := extractor.New(extractor.Config{
		ExtractorPath: cfg.Tools.ExtractorPath,
		FFmpegPath:    cfg.Tools.FFmpegPath,
		DownloadsDir:  cfg.Library.DownloadsDir,
		Timeout:       cfg.ToolTimeout(),
	}, logger.Named("extractor"))
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	queue := runner.NewQueue(cfg.Jobs.QueueDepth)
	workerCfg := runner.Config{
		BaseURL:      cfg.Server.BaseURL,
		DownloadsDir: cfg.Library.DownloadsDir,
	}
	var workers []*runner.Worker
	for i := 0; i < cfg.Jobs.Concurrency; i++ {
		workers = append(workers, runner.NewWorker(
			queue,
			store,
			tracker,
			ext,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	pool := runner.NewPool(workers)

	svc := downloads.NewService(store, tracker, ext, queue, cfg.Library.DownloadsDir, logger.Named("downloads"))
	apiServer := api.NewServer(svc, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolDone := make(chan struct{})
	go func() {
		logger.Info("worker pool started", zap.Int("workers", cfg.Jobs.Concurrency))
		pool.Run(ctx)
		close(poolDone)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-poolDone
	logger.Info("shutdown complete")
	return nil
}
