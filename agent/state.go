package agent

import "fmt"

// State is a step of the ingestion pipeline.
type State string

const (
	StateInit          State = "INIT"
	StateMediaStored   State = "MEDIA_STORED"
	StateRecordCreated State = "RECORD_CREATED"
	StateAgentRunning  State = "AGENT_RUNNING"
	StateAgentDone     State = "AGENT_DONE"
	StateReconciled    State = "RECONCILED"
	StateFailed        State = "FAILED"
)

// PipelineError reports the last state reached before the pipeline failed.
// LogID is zero when no record was created.
type PipelineError struct {
	State State
	LogID int64
	Err   error
}

func (e *PipelineError) Error() string {
	if e.LogID > 0 {
		return fmt.Sprintf("ingestion failed at %s (log %d): %v", e.State, e.LogID, e.Err)
	}
	return fmt.Sprintf("ingestion failed at %s: %v", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
