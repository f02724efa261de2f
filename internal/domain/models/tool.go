package models

// RiskTier classifies how dangerous a tool invocation is. The tier drives
// rate limits and the confirmation policy in the validation wall.
type RiskTier string

const (
	RiskSafe      RiskTier = "safe"
	RiskReview    RiskTier = "review"
	RiskConfirm   RiskTier = "confirm"
	RiskOwnerRoot RiskTier = "owner-root"
)

// AtLeast reports whether the tier is at or above the given tier.
func (r RiskTier) AtLeast(other RiskTier) bool {
	return riskOrder(r) >= riskOrder(other)
}

func riskOrder(r RiskTier) int {
	switch r {
	case RiskSafe:
		return 0
	case RiskReview:
		return 1
	case RiskConfirm:
		return 2
	case RiskOwnerRoot:
		return 3
	default:
		return -1
	}
}

// ValidRiskTier reports whether the string names a known tier.
func ValidRiskTier(s string) bool {
	return riskOrder(RiskTier(s)) >= 0
}

// SideEffect describes what a tool touches outside its own computation.
type SideEffect string

const (
	SideEffectReadOnly    SideEffect = "read-only"
	SideEffectWritesFS    SideEffect = "writes-fs"
	SideEffectNetwork     SideEffect = "network"
	SideEffectOSControl   SideEffect = "os-control"
	SideEffectMemoryWrite SideEffect = "memory-write"
)

// Capability is a permission granted to a tool at execution time, derived
// from its side-effect descriptor.
type Capability string

const (
	CapFSRead      Capability = "fs_read"
	CapFSWrite     Capability = "fs_write"
	CapNetwork     Capability = "network"
	CapOSControl   Capability = "os_control"
	CapMemoryWrite Capability = "memory_write"
)

// CapabilitiesFor maps a side-effect descriptor to the capability set a
// handler receives. Every tool can read its own scratch directory.
func CapabilitiesFor(effect SideEffect) []Capability {
	switch effect {
	case SideEffectWritesFS:
		return []Capability{CapFSRead, CapFSWrite}
	case SideEffectNetwork:
		return []Capability{CapNetwork}
	case SideEffectOSControl:
		return []Capability{CapFSRead, CapOSControl}
	case SideEffectMemoryWrite:
		return []Capability{CapMemoryWrite}
	default:
		return []Capability{CapFSRead}
	}
}

// ToolSpec is an immutable registry entry describing one invocable tool.
// ArgSchema is a JSON Schema document validated and compiled at registration.
// DeadlineMs overrides the executor's default deadline for slow tools; zero
// means the default applies, and the executor clamps either to its maximum.
type ToolSpec struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	ArgSchema       map[string]any `json:"arg_schema"`
	Risk            RiskTier       `json:"risk"`
	RateClass       string         `json:"rate_class"`
	PostConditionID string         `json:"post_condition_id"`
	SideEffect      SideEffect     `json:"side_effect"`
	DeadlineMs      int            `json:"deadline_ms,omitempty"`
}
