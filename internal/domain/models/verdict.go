package models

// VerdictStatus is the verifier's tri-state outcome for a turn.
type VerdictStatus string

const (
	VerdictPass  VerdictStatus = "pass"
	VerdictWarn  VerdictStatus = "warn"
	VerdictBlock VerdictStatus = "block"
)

// Reason codes attached to verdicts.
const (
	ReasonPostConditionFailed = "post_condition_failed"
	ReasonCoverageLow         = "claim_coverage_low"
	ReasonVerifierDegraded    = "verifier_degraded"
	ReasonNoCitations         = "no_citations"
	ReasonExecutionFailed     = "execution_failed"
)

// CitationRef uniquely identifies a piece of retrieved evidence. ContentHash
// is a sha256 digest over the cited byte range.
type CitationRef struct {
	SourceURI   string `json:"source_uri"`
	ByteStart   int    `json:"byte_start"`
	ByteEnd     int    `json:"byte_end"`
	ContentHash string `json:"content_hash"`
}

// Claim is a sentence-level assertion extracted from a reply, to be entailed
// by some subset of the turn's citations.
type Claim struct {
	Text      string       `json:"text"`
	Supported bool         `json:"supported"`
	Score     float64      `json:"score"`
	Evidence  *CitationRef `json:"evidence,omitempty"`
}

// Verdict is the verifier's decision for one execution result.
type Verdict struct {
	Status   VerdictStatus `json:"status"`
	Reasons  []string      `json:"reasons,omitempty"`
	Evidence []CitationRef `json:"evidence,omitempty"`
	Claims   []Claim       `json:"claims,omitempty"`
	Coverage float64       `json:"coverage,omitempty"`
}

func PassVerdict() *Verdict {
	return &Verdict{Status: VerdictPass}
}

func WarnVerdict(reasons ...string) *Verdict {
	return &Verdict{Status: VerdictWarn, Reasons: reasons}
}

func BlockVerdict(reasons ...string) *Verdict {
	return &Verdict{Status: VerdictBlock, Reasons: reasons}
}

// Surfaceable reports whether a reply carrying this verdict may reach the
// user. Blocked verdicts force a refusal reply.
func (v *Verdict) Surfaceable() bool {
	return v.Status == VerdictPass || v.Status == VerdictWarn
}

// WallDecision is the validation wall's final disposition for a plan.
type WallDecision string

const (
	WallApproved          WallDecision = "approved"
	WallNeedsConfirmation WallDecision = "needs_confirmation"
	WallNeedsOwnerAuth    WallDecision = "needs_owner_auth"
	WallRejected          WallDecision = "rejected"
)

// Wall tiers, in evaluation order.
const (
	TierSchema   = "schema"
	TierPolicy   = "policy"
	TierLint     = "lint"
	TierDecision = "decision"
	TierAudit    = "audit"
)

// TierOutcome records one tier's result for the audit trail.
type TierOutcome struct {
	Tier    string `json:"tier"`
	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// WallVerdict is the full wall output: the decision plus which tier produced
// it and the per-tier trail.
type WallVerdict struct {
	Decision WallDecision  `json:"decision"`
	Tier     string        `json:"tier,omitempty"`
	Code     string        `json:"code,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Tiers    []TierOutcome `json:"tiers,omitempty"`
}

func (w *WallVerdict) Approved() bool {
	return w.Decision == WallApproved
}
