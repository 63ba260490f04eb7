package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

// ProgressFunc receives a percentage in [0,100]; values never decrease
// within one operation.
type ProgressFunc func(percent int)

// ArchiveBuilder packs selected entries into a single zip payload.
type ArchiveBuilder interface {
	Build(ctx context.Context, name string, entries []domain.SelectedEntry, onProgress ProgressFunc) (*domain.Archive, error)
}

// Transport executes a job request against the remote service. HTTP status
// is never judged here; only timeouts and connectivity become errors.
type Transport interface {
	Send(ctx context.Context, req domain.JobRequest, onProgress ProgressFunc) (domain.RawResponse, error)
}

// ResponseResolver turns a raw response into an outcome and persists the
// artifact on success.
type ResponseResolver interface {
	Resolve(ctx context.Context, kind domain.JobKind, raw domain.RawResponse) domain.JobOutcome
}

// ArtifactStorage persists generated artifacts.
type ArtifactStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
}

// StateObserver is notified about orchestrator changes in order.
type StateObserver interface {
	OnStateChange(event domain.Event)
}

// JobRecorder receives job lifecycle measurements.
type JobRecorder interface {
	ObserveArchive(sizeBytes int64, duration time.Duration, err error)
	StartJob(kind domain.JobKind)
	FinishJob(kind domain.JobKind, outcome domain.JobOutcome, uploadBytes int64, duration time.Duration)
	StaleResponse(kind domain.JobKind)
}

// ObserverFunc adapts a plain function to StateObserver.
type ObserverFunc func(event domain.Event)

func (f ObserverFunc) OnStateChange(event domain.Event) {
	f(event)
}
