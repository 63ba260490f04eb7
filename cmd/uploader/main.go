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
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/code-explainer-uploader/internal/bootstrap"
	"github.com/kirillkom/code-explainer-uploader/internal/config"
	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
	"github.com/kirillkom/code-explainer-uploader/internal/observability/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	dir := flag.String("dir", "", "directory to upload")
	zipPath := flag.String("zip", "", "existing .zip archive to upload")
	kindFlag := flag.String("kind", "docs", "job kind: docs or report")
	health := flag.Bool("health", false, "query the service health endpoint and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}
	logger := logging.NewJSONLogger("uploader", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		return 1
	}
	defer app.Close()

	logger.Debug("uploader_started", "api_url", app.Transport.BaseURL(), "output_dir", cfg.OutputDir)

	if *health {
		status, err := app.Transport.Health(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "service at %s unavailable: %v\n", app.Transport.BaseURL(), err)
			return 1
		}
		fmt.Println(status)
		return 0
	}

	kind, err := parseKind(*kindFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if cfg.MetricsPort != "" {
		shutdown := serveMetrics(app, logger)
		defer shutdown()
	}

	unsubscribe := app.Orchestrator.Subscribe(ports.ObserverFunc(printEvent))
	defer unsubscribe()

	if err := selectInput(ctx, app, *dir, *zipPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "selection failed: %v\n", err)
		return 2
	}
	if state := app.Orchestrator.State(); !state.HasArchive() {
		if state.LastOutcome != nil {
			fmt.Fprintln(os.Stderr, state.LastOutcome.Message())
		}
		return 1
	}

	outcome, err := app.Orchestrator.Submit(ctx, kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit rejected: %v\n", err)
		return 1
	}
	if !outcome.IsSuccess() {
		fmt.Fprintln(os.Stderr, outcome.Message())
		return 1
	}
	fmt.Println(outcome.Success.Path)
	return 0
}

func parseKind(value string) (domain.JobKind, error) {
	switch value {
	case "docs", "documentation":
		return domain.JobKindDocumentation, nil
	case "report", "analysis_report":
		return domain.JobKindAnalysisReport, nil
	default:
		return domain.JobKindNone, fmt.Errorf("unknown kind %q: use docs or report", value)
	}
}

func selectInput(ctx context.Context, app *bootstrap.App, dir, zipPath string, files []string) error {
	switch {
	case zipPath != "":
		data, err := os.ReadFile(zipPath)
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		return app.Orchestrator.SelectArchive(ctx, filepath.Base(zipPath), data)
	case dir != "":
		entries, err := app.Selection.ReadDir(ctx, dir)
		if err != nil {
			return err
		}
		return app.Orchestrator.SelectDirectory(ctx, filepath.Base(filepath.Clean(dir)), entries)
	case len(files) > 0:
		entries := make([]domain.SelectedEntry, 0, len(files))
		for _, path := range files {
			entry, err := app.Selection.ReadFile(ctx, path)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return app.Orchestrator.SelectFiles(ctx, entries)
	default:
		return fmt.Errorf("nothing selected: pass -dir, -zip or file paths")
	}
}

func printEvent(event domain.Event) {
	switch event.Type {
	case domain.EventTypeProgress:
		fmt.Fprintf(os.Stderr, "\r%-10s %3d%%", event.State.Phase, event.Progress)
		if event.Progress == 100 {
			fmt.Fprintln(os.Stderr)
		}
	case domain.EventTypeOutcome:
		if event.Outcome != nil && !event.Outcome.IsSuccess() {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func serveMetrics(app *bootstrap.App, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	server := &http.Server{
		Addr:              ":" + app.Config.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics_listening", "port", app.Config.MetricsPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics_shutdown_failed", "error", err)
		}
	}
}
