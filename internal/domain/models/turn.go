package models

import (
	"time"
)

// SideEffectLog records what an execution actually touched.
type SideEffectLog struct {
	FilesWritten []string `json:"files_written,omitempty"`
	FilesRead    []string `json:"files_read,omitempty"`
	URLsFetched  []string `json:"urls_fetched,omitempty"`
	HTTPStatuses []int    `json:"http_statuses,omitempty"`
	Processes    []string `json:"processes,omitempty"`
	MemoryWrites []string `json:"memory_writes,omitempty"`
}

// ExecutionResult is the structured outcome of running one tool.
type ExecutionResult struct {
	Success     bool           `json:"success"`
	Value       any            `json:"value,omitempty"`
	Output      string         `json:"output,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	ErrorMsg    string         `json:"error_msg,omitempty"`
	Timeout     bool           `json:"timeout,omitempty"`
	Truncated   bool           `json:"truncated,omitempty"`
	SideEffects SideEffectLog  `json:"side_effects"`
	Duration    time.Duration  `json:"duration"`
	Citations   []CitationRef  `json:"citations,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Execution error kinds.
const (
	ErrorKindCapabilityDenied = "capability_denied"
	ErrorKindTimeout          = "timeout"
	ErrorKindToolInternal     = "tool_internal"
	ErrorKindOutputTooLarge   = "output_too_large"
	ErrorKindCancelled        = "cancelled"
)

func FailedResult(kind, msg string) *ExecutionResult {
	return &ExecutionResult{
		Success:   false,
		ErrorKind: kind,
		ErrorMsg:  msg,
	}
}

// Turn is one completed interaction, persisted after the reply is chosen.
type Turn struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Timestamp   time.Time        `json:"timestamp"`
	Utterance   string           `json:"utterance"`
	Context     *ContextBundle   `json:"context,omitempty"`
	Plan        *ActionPlan      `json:"plan,omitempty"`
	Wall        *WallVerdict     `json:"wall,omitempty"`
	Result      *ExecutionResult `json:"result,omitempty"`
	Verdict     *Verdict         `json:"verdict,omitempty"`
	Reply       string           `json:"reply"`
	Success     bool             `json:"success"`
	CommittedAt time.Time        `json:"committed_at,omitempty"`
}

func NewTurn(id, userID, utterance string) *Turn {
	return &Turn{
		ID:        id,
		UserID:    userID,
		Utterance: utterance,
		Timestamp: time.Now(),
	}
}

// TurnOutcome is the orchestrator's reply to the caller.
type TurnOutcome struct {
	TurnID            string        `json:"turn_id"`
	Reply             string        `json:"reply"`
	Verdict           VerdictStatus `json:"verdict,omitempty"`
	WallDecision      WallDecision  `json:"wall_decision,omitempty"`
	ResultSummary     string        `json:"result_summary,omitempty"`
	Degraded          bool          `json:"degraded,omitempty"`
	NeedsConfirmation bool          `json:"needs_confirmation,omitempty"`
}

// PendingConfirmation is the marker stored instead of a full Turn when the
// wall answers NeedsConfirmation or NeedsOwnerAuth. The next inbound turn
// from the same user carrying a matching token resumes the plan.
type PendingConfirmation struct {
	UserID    string      `json:"user_id"`
	Token     string      `json:"token"`
	Plan      *ActionPlan `json:"plan"`
	Utterance string      `json:"utterance"`
	OwnerAuth bool        `json:"owner_auth"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (p *PendingConfirmation) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
