package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"auspex/internal/apiserver"
	"auspex/internal/lifecycle"
	"auspex/internal/logging"
	"auspex/internal/tracing"
	"auspex/internal/watcher"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the auspex HTTP server",
	Long: `Start the HTTP server exposing health, metrics, artifact reads and
analysis triggering. With --watch, capture file changes start an
analysis run automatically once the change burst settles.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config api.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Re-run the pipeline when capture files change")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, paths, err := loadRuntime()
	HandleError(err, "Configuration error")
	logger := logging.GetLogger("serve")
	logger.Info("Starting auspex v%s", Version)

	pipe, trail := buildPipeline(cfg, paths)
	defer trail.Close()

	manager := lifecycle.NewManager()

	if cfg.Tracing.Enabled {
		provider, err := tracing.New(cfg.Tracing)
		if err != nil {
			logger.Warn("Failed to initialize tracing (continuing without): %v", err)
		} else {
			HandleError(manager.Register(provider), "Tracing registration error")
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.API.Addr
	}
	HandleError(manager.Register(apiserver.New(addr, paths, pipe, Version)), "API server registration error")

	if serveWatch {
		HandleError(manager.Register(watcher.New(paths, pipe, watcher.DefaultDebounce)), "Watcher registration error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	HandleError(manager.Start(ctx), "Startup error")
	logger.Info("auspex serving on %s (watch=%v)", addr, serveWatch)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
	logger.Info("Shutdown complete")
}
