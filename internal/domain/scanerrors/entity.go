package scanerrors

import "time"

// Phase names the orchestration step that failed.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseClone    Phase = "clone"
	PhaseScan     Phase = "scan"
	PhaseParse    Phase = "parse"
	PhaseOther    Phase = "other"
)

// ScanError represents a persisted scan error entry
type ScanError struct {
	ID          int64     `json:"id"`
	ScanID      string    `json:"scan_id"`
	Phase       Phase     `json:"phase"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
