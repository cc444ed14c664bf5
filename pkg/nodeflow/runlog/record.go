package runlog

import (
	"encoding/json"
	"time"
)

// Version is the current record format version.
// Increment when making breaking changes to record structure.
const Version = 1

// Record is the persisted outcome of a flow run.
type Record struct {
	// Metadata
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	FlowName  string    `json:"flow_name"`
	StartedAt time.Time `json:"started_at"`

	// Outcome
	DurationMs float64 `json:"duration_ms"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`

	// Execution detail, JSON-serialized by the caller
	Tree  json.RawMessage `json:"tree,omitempty"`
	Final json.RawMessage `json:"final,omitempty"`
}

// New creates a record for a run that has started.
func New(runID, flowName string, startedAt time.Time) *Record {
	return &Record{
		Version:   Version,
		RunID:     runID,
		FlowName:  flowName,
		StartedAt: startedAt.UTC(),
	}
}

// WithResult sets the run outcome.
func (r *Record) WithResult(duration time.Duration, runErr error) *Record {
	r.DurationMs = float64(duration.Milliseconds())
	r.Success = runErr == nil
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// WithTree attaches the JSON-serialized execution tree.
func (r *Record) WithTree(data []byte) *Record {
	r.Tree = data
	return r
}

// WithFinal attaches the JSON-serialized final global state.
func (r *Record) WithFinal(data []byte) *Record {
	r.Final = data
	return r
}

// Marshal serializes a record to JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
