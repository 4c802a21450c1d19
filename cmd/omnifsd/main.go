// Command omnifsd serves a container over HTTP: it opens (or formats)
// an omnifs container, wires it to a pipeline.Pipeline through
// engine.Dispatcher, and exposes the pipeline over internal/httpapi.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omnifs/omnifs/internal/config"
	"github.com/omnifs/omnifs/internal/engine"
	"github.com/omnifs/omnifs/internal/httpapi"
	"github.com/omnifs/omnifs/internal/pipeline"
	"github.com/omnifs/omnifs/pkg/logging"
	"github.com/omnifs/omnifs/pkg/logging/slogext"
	"github.com/omnifs/omnifs/pkg/logging/slogpretty"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config.yaml")
	containerPath := flag.String("container", "omnifs.container", "path to the container file")
	queueCapacity := flag.Int("queue-capacity", 256, "pipeline request queue capacity")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger := setupPrettySlog()
	ctx := logging.MakeContextWithLogger(context.Background(), logger)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openOrFormat(*containerPath, cfg)
	if err != nil {
		logger.Error("failed to open container", slogext.Err(err))
		os.Exit(1)
	}
	defer e.Shutdown(context.Background())

	p := pipeline.New(engine.NewDispatcher(e), *queueCapacity)
	p.Start(ctx)
	defer p.Stop()

	h := httpapi.NewHandler(p, cfg.QueueTimeout)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: httpapi.RequestIDMiddleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("omnifsd listening", slog.Int("port", cfg.Port), slog.String("container", *containerPath))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited", slogext.Err(err))
		os.Exit(1)
	}
}

func openOrFormat(path string, cfg *config.Config) (*engine.Engine, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return engine.Format(path, cfg, nil)
	}
	return engine.Open(path, cfg, nil)
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	return slog.New(opts.NewPrettyHandler(os.Stdout))
}
