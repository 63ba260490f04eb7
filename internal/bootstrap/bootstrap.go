package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/code-explainer-uploader/internal/config"
	"github.com/kirillkom/code-explainer-uploader/internal/core/usecase"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/archive/zipbuilder"
	natsevents "github.com/kirillkom/code-explainer-uploader/internal/infrastructure/events/nats"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/resilience"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/resolver"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/selection/localtree"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/transport/httpclient"
	"github.com/kirillkom/code-explainer-uploader/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Orchestrator *usecase.Orchestrator
	Transport    *httpclient.Client
	Selection    *localtree.Reader
	Metrics      *metrics.JobMetrics

	closeFn func()
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	storage, err := localfs.New(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init artifact storage: %w", err)
	}

	jobMetrics := metrics.NewJobMetrics("uploader")
	resilienceCfg := ResilienceConfig(cfg)
	resilienceCfg.OnStateChange = jobMetrics.BreakerStateChanged
	executor := resilience.NewExecutor(resilienceCfg, logger)
	transport := httpclient.NewWithOptions(cfg.APIURL, httpclient.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})

	orchestrator := usecase.NewOrchestrator(
		zipbuilder.New(),
		transport,
		resolver.New(storage, logger),
		usecase.Options{Recorder: jobMetrics, Logger: logger},
	)

	closeFn := func() {}
	if cfg.NATSURL != "" {
		publisher, err := natsevents.New(cfg.NATSURL, cfg.NATSSubject, natsevents.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		unsubscribe := orchestrator.Subscribe(publisher)
		closeFn = func() {
			unsubscribe()
			publisher.Close()
		}
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Orchestrator: orchestrator,
		Transport:    transport,
		Selection:    localtree.New(cfg.ExcludeDirs),
		Metrics:      jobMetrics,

		closeFn: closeFn,
	}, nil
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	if cfg.BreakerOpenTimeoutSeconds > 0 {
		out.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second
	}
	return out
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
