package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/resilience"
)

// Publisher forwards orchestrator events to NATS so other processes can
// follow job progress. It implements ports.StateObserver.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	timeout  time.Duration
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	PublishTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 10
	}
	publishTimeout := options.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("code-explainer-uploader"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
		timeout:  publishTimeout,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// OnStateChange publishes the event on <subject>.<type>. Publish failures
// are logged; they never affect the job.
func (p *Publisher) OnStateChange(event domain.Event) {
	payload, err := encodeEvent(event)
	if err != nil {
		p.logger.Error("nats_encode_failed", "seq", event.Seq, "error", err)
		return
	}
	subject := subjectFor(p.subject, event.Type)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	call := func(context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		p.logger.Warn("nats_publish_failed", "subject", subject, "seq", event.Seq, "error", err)
	}
}

func subjectFor(base string, eventType domain.EventType) string {
	if eventType == "" {
		return base
	}
	return base + "." + string(eventType)
}

type eventMessage struct {
	Seq         int64              `json:"seq"`
	Timestamp   time.Time          `json:"timestamp"`
	Type        domain.EventType   `json:"type"`
	JobID       string             `json:"job_id,omitempty"`
	Phase       domain.Phase       `json:"phase"`
	ActiveJob   domain.JobKind     `json:"active_job,omitempty"`
	Progress    int                `json:"progress"`
	ArchiveName string             `json:"archive_name,omitempty"`
	ArchiveSize int64              `json:"archive_size,omitempty"`
	Outcome     *domain.JobOutcome `json:"outcome,omitempty"`
}

func encodeEvent(event domain.Event) ([]byte, error) {
	msg := eventMessage{
		Seq:       event.Seq,
		Timestamp: event.Timestamp,
		Type:      event.Type,
		JobID:     event.JobID,
		Phase:     event.State.Phase,
		ActiveJob: event.State.ActiveJob,
		Progress:  event.State.ProgressPercent,
		Outcome:   event.Outcome,
	}
	if event.Type == domain.EventTypeProgress {
		msg.Progress = event.Progress
	}
	if event.State.Archive != nil {
		msg.ArchiveName = event.State.Archive.Name
		msg.ArchiveSize = event.State.Archive.SizeBytes
	}
	return json.Marshal(msg)
}
