package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
)

const looseFilesArchiveName = "selected_files"

type Options struct {
	// Timeout overrides the transport deadline; zero means domain.DefaultTimeout.
	Timeout  time.Duration
	Recorder ports.JobRecorder
	Logger   *slog.Logger
	NewID    func() string
}

// Orchestrator owns the selected archive and the single in-flight job.
// Observers are called synchronously and in order; they may read State but
// must not call the mutating methods from inside the callback.
type Orchestrator struct {
	builder   ports.ArchiveBuilder
	transport ports.Transport
	resolver  ports.ResponseResolver
	recorder  ports.JobRecorder
	logger    *slog.Logger
	timeout   time.Duration
	newID     func() string

	notifyMu sync.Mutex

	mu          sync.RWMutex
	state       domain.OrchestratorState
	token       uint64
	jobID       string
	cancelBuild context.CancelFunc
	seq         int64
	observers   map[int]ports.StateObserver
	nextObs     int
	progressLog rate.Sometimes
}

func NewOrchestrator(
	builder ports.ArchiveBuilder,
	transport ports.Transport,
	resolver ports.ResponseResolver,
	opts Options,
) *Orchestrator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultTimeout
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Orchestrator{
		builder:     builder,
		transport:   transport,
		resolver:    resolver,
		recorder:    recorder,
		logger:      logger,
		timeout:     timeout,
		newID:       newID,
		state:       domain.OrchestratorState{Phase: domain.PhaseIdle},
		observers:   make(map[int]ports.StateObserver),
		progressLog: rate.Sometimes{Interval: time.Second},
	}
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() domain.OrchestratorState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Subscribe registers an observer and returns a function that removes it.
func (o *Orchestrator) Subscribe(observer ports.StateObserver) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextObs
	o.nextObs++
	o.observers[id] = observer

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.observers, id)
	}
}

// SelectFiles accepts loose files. A single .zip file is taken as a
// ready-made archive and skips compression.
func (o *Orchestrator) SelectFiles(ctx context.Context, entries []domain.SelectedEntry) error {
	if len(entries) == 0 {
		return domain.ErrInvalidInput
	}
	if len(entries) == 1 && entries[0].IsArchive() {
		return o.SelectArchive(ctx, entries[0].RelativePath, entries[0].Bytes)
	}
	return o.buildArchive(ctx, looseFilesArchiveName, entries)
}

// SelectDirectory compresses a directory selection named after its root.
func (o *Orchestrator) SelectDirectory(ctx context.Context, name string, entries []domain.SelectedEntry) error {
	if len(entries) == 0 {
		return domain.ErrInvalidInput
	}
	return o.buildArchive(ctx, name, entries)
}

// SelectArchive wraps a user-supplied zip without rebuilding it.
func (o *Orchestrator) SelectArchive(_ context.Context, name string, data []byte) error {
	if len(data) == 0 {
		return domain.ErrInvalidInput
	}
	archive := domain.NewArchive(domain.ArchiveName(name), bytes.Clone(data))

	err := o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		if err := selectionGuard(*s); err != nil {
			return nil, err
		}
		o.token++
		*s = domain.OrchestratorState{Phase: domain.PhaseReady, Archive: archive}
		return []domain.Event{
			{Type: domain.EventTypeProgress, Progress: 100},
			{Type: domain.EventTypeState},
		}, nil
	})
	if err != nil {
		return err
	}
	o.logger.Info("archive_selected", "name", archive.Name, "size_bytes", archive.SizeBytes)
	return nil
}

// Clear drops the archive and the last outcome. It is refused while a job is
// in flight; an archive build in progress is abandoned.
func (o *Orchestrator) Clear() error {
	return o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		if s.ActiveJob != domain.JobKindNone {
			return nil, domain.ErrJobAlreadyRunning
		}
		if s.Phase == domain.PhaseIdle && s.Archive == nil && s.LastOutcome == nil {
			return nil, nil
		}
		if o.cancelBuild != nil {
			o.cancelBuild()
			o.cancelBuild = nil
		}
		o.token++
		*s = domain.OrchestratorState{Phase: domain.PhaseIdle}
		return []domain.Event{{Type: domain.EventTypeState}}, nil
	})
}

// Submit runs one remote job against the held archive and blocks until it
// settles. Failures are returned as outcomes; the error is non-nil only when
// the job could not start.
func (o *Orchestrator) Submit(ctx context.Context, kind domain.JobKind) (domain.JobOutcome, error) {
	if !kind.Valid() {
		return domain.JobOutcome{}, domain.ErrInvalidInput
	}

	var (
		token   uint64
		jobID   string
		archive *domain.Archive
	)
	err := o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		switch {
		case s.ActiveJob != domain.JobKindNone:
			return nil, domain.ErrJobAlreadyRunning
		case s.Phase == domain.PhaseZipping:
			return nil, domain.ErrBusy
		case s.Archive == nil:
			return nil, domain.ErrNoArchive
		}
		o.token++
		token = o.token
		jobID = o.newID()
		o.jobID = jobID
		archive = s.Archive

		s.Phase = domain.PhaseSubmitting
		s.ActiveJob = kind
		s.ProgressPercent = 0
		s.LastOutcome = nil
		return []domain.Event{{Type: domain.EventTypeState}}, nil
	})
	if err != nil {
		return domain.JobOutcome{}, err
	}

	started := time.Now()
	o.recorder.StartJob(kind)
	o.logger.Info("job_started",
		"job_id", jobID,
		"kind", kind,
		"archive", archive.Name,
		"size_bytes", archive.SizeBytes,
	)

	outcome := o.run(ctx, token, jobID, kind, archive)

	o.settle(token, outcome)
	o.recorder.FinishJob(kind, outcome, archive.SizeBytes, time.Since(started))
	logAttrs := []any{"job_id", jobID, "kind", kind, "duration_ms", time.Since(started).Milliseconds()}
	if outcome.Failure != nil {
		o.logger.Warn("job_settled", append(logAttrs, "outcome", outcome.Failure.Kind, "message", outcome.Failure.Message)...)
	} else {
		o.logger.Info("job_settled", append(logAttrs, "outcome", "success", "filename", outcome.Success.Filename)...)
	}
	return outcome, nil
}

type sendResult struct {
	raw domain.RawResponse
	err error
}

func (o *Orchestrator) run(ctx context.Context, token uint64, jobID string, kind domain.JobKind, archive *domain.Archive) domain.JobOutcome {
	jobCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := domain.NewJobRequest(jobID, kind, archive, o.timeout)
	results := make(chan sendResult, 1)
	go func() {
		raw, err := o.transport.Send(jobCtx, req, func(pct int) {
			o.progress(token, pct)
		})
		results <- sendResult{raw: raw, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return outcomeFromError(res.err)
		}
		return o.resolver.Resolve(ctx, kind, res.raw)
	case <-jobCtx.Done():
		go o.discardLate(jobID, kind, results)
		return outcomeFromError(jobCtx.Err())
	}
}

// discardLate drains a response that arrived after its request was
// abandoned. It never touches state.
func (o *Orchestrator) discardLate(jobID string, kind domain.JobKind, results <-chan sendResult) {
	res := <-results
	if res.err != nil {
		o.logger.Debug("aborted_request_returned", "job_id", jobID, "kind", kind, "error", res.err)
		return
	}
	o.recorder.StaleResponse(kind)
	o.logger.Warn("stale_response_discarded",
		"job_id", jobID,
		"kind", kind,
		"status", res.raw.StatusCode,
		"body_bytes", len(res.raw.Body),
	)
}

func (o *Orchestrator) settle(token uint64, outcome domain.JobOutcome) {
	_ = o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		if token != o.token || s.ActiveJob == domain.JobKindNone {
			return nil, nil
		}
		o.token++
		result := outcome
		s.ActiveJob = domain.JobKindNone
		s.ProgressPercent = 0
		s.LastOutcome = &result
		s.Phase = domain.PhaseSettled
		settled := *s
		s.Phase = domain.PhaseReady
		return []domain.Event{
			{Type: domain.EventTypeOutcome, JobID: o.jobID, State: settled, Outcome: &result},
			{Type: domain.EventTypeState, JobID: o.jobID},
		}, nil
	})
}

func (o *Orchestrator) buildArchive(ctx context.Context, name string, entries []domain.SelectedEntry) error {
	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var token uint64
	err := o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		if err := selectionGuard(*s); err != nil {
			return nil, err
		}
		o.token++
		token = o.token
		o.cancelBuild = cancel
		*s = domain.OrchestratorState{Phase: domain.PhaseZipping}
		return []domain.Event{{Type: domain.EventTypeState}}, nil
	})
	if err != nil {
		return err
	}

	started := time.Now()
	archive, buildErr := o.builder.Build(buildCtx, name, entries, func(pct int) {
		o.progress(token, pct)
	})
	applied := false
	_ = o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		if token != o.token || s.Phase != domain.PhaseZipping {
			return nil, nil
		}
		applied = true
		o.token++
		o.cancelBuild = nil
		if buildErr != nil || archive == nil {
			failure := domain.FailureOutcome(domain.ErrorKindArchive, "")
			*s = domain.OrchestratorState{Phase: domain.PhaseReady, LastOutcome: &failure}
			return []domain.Event{{Type: domain.EventTypeState}}, nil
		}
		*s = domain.OrchestratorState{Phase: domain.PhaseReady, Archive: archive}
		return []domain.Event{{Type: domain.EventTypeState}}, nil
	})

	if !applied {
		o.logger.Info("archive_discarded", "name", name, "reason", "selection cleared")
		return domain.ErrSelectionCleared
	}

	var size int64
	if archive != nil {
		size = archive.SizeBytes
	}
	o.recorder.ObserveArchive(size, time.Since(started), buildErr)
	switch {
	case buildErr != nil:
		o.logger.Error("archive_failed", "name", name, "entries", len(entries), "error", buildErr)
	default:
		o.logger.Info("archive_built",
			"name", archive.Name,
			"entries", len(entries),
			"size_bytes", archive.SizeBytes,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	return nil
}

// progress applies a percentage reported by the builder or the transport.
// Values from a superseded operation or lower than the current one are
// dropped.
func (o *Orchestrator) progress(token uint64, pct int) {
	if pct < 0 {
		return
	}
	if pct > 100 {
		pct = 100
	}
	var phase domain.Phase
	_ = o.apply(func(s *domain.OrchestratorState) ([]domain.Event, error) {
		if token != o.token {
			return nil, nil
		}
		if s.Phase != domain.PhaseZipping && s.Phase != domain.PhaseSubmitting {
			return nil, nil
		}
		if pct < s.ProgressPercent || (pct == s.ProgressPercent && pct != 0) {
			return nil, nil
		}
		s.ProgressPercent = pct
		phase = s.Phase
		return []domain.Event{{Type: domain.EventTypeProgress, Progress: pct}}, nil
	})

	if phase == "" {
		return
	}
	if pct == 100 {
		o.logger.Debug("progress", "phase", phase, "percent", pct)
		return
	}
	o.progressLog.Do(func() {
		o.logger.Debug("progress", "phase", phase, "percent", pct)
	})
}

// apply mutates state under the lock and delivers the produced events in
// order. notifyMu keeps delivery order identical to mutation order.
func (o *Orchestrator) apply(mutate func(s *domain.OrchestratorState) ([]domain.Event, error)) error {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	events, err := mutate(&o.state)
	if err != nil || len(events) == 0 {
		o.mu.Unlock()
		return err
	}
	now := time.Now().UTC()
	for i := range events {
		o.seq++
		events[i].Seq = o.seq
		events[i].Timestamp = now
		if events[i].JobID == "" && o.state.ActiveJob != domain.JobKindNone {
			events[i].JobID = o.jobID
		}
		if events[i].State.Phase == "" {
			events[i].State = o.state
		}
	}
	observers := make([]ports.StateObserver, 0, len(o.observers))
	for _, obs := range o.observers {
		observers = append(observers, obs)
	}
	o.mu.Unlock()

	for _, event := range events {
		for _, obs := range observers {
			obs.OnStateChange(event)
		}
	}
	return nil
}

func selectionGuard(s domain.OrchestratorState) error {
	switch {
	case s.ActiveJob != domain.JobKindNone:
		return domain.ErrJobAlreadyRunning
	case s.Phase == domain.PhaseZipping:
		return domain.ErrBusy
	default:
		return nil
	}
}

func outcomeFromError(err error) domain.JobOutcome {
	if errors.Is(err, context.Canceled) {
		return domain.FailureOutcome(domain.ErrorKindNetwork, "The request was cancelled before the service answered.")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureOutcome(domain.ErrorKindTimeout, "")
	}
	return domain.FailureOutcome(domain.KindOf(err), "")
}

type noopRecorder struct{}

func (noopRecorder) ObserveArchive(int64, time.Duration, error)                        {}
func (noopRecorder) StartJob(domain.JobKind)                                           {}
func (noopRecorder) FinishJob(domain.JobKind, domain.JobOutcome, int64, time.Duration) {}
func (noopRecorder) StaleResponse(domain.JobKind)                                      {}
