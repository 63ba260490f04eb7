package domain

// Phase is the UI-visible orchestrator state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseZipping    Phase = "zipping"
	PhaseReady      Phase = "ready"
	PhaseSubmitting Phase = "submitting"
	PhaseSettled    Phase = "settled"
)

// OrchestratorState is the snapshot handed to observers. Archive is shared
// by pointer and must never be mutated.
type OrchestratorState struct {
	Phase           Phase       `json:"phase"`
	Archive         *Archive    `json:"-"`
	ActiveJob       JobKind     `json:"active_job,omitempty"`
	ProgressPercent int         `json:"progress_percent"`
	LastOutcome     *JobOutcome `json:"last_outcome,omitempty"`
}

func (s OrchestratorState) HasArchive() bool {
	return s.Archive != nil
}

// CanSubmit reports whether the job triggers should be enabled.
func (s OrchestratorState) CanSubmit() bool {
	return s.Phase == PhaseReady && s.Archive != nil && s.ActiveJob == JobKindNone
}
