package models

// PlanMeta carries optional planner annotations alongside an ActionPlan.
type PlanMeta struct {
	RiskHint  string   `json:"risk_hint,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
	Citations []string `json:"citations,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
}

// ActionPlan is the planner's output: exactly one tool invocation with
// arguments constrained by the tool's schema. No implicit chains.
type ActionPlan struct {
	ID       string         `json:"id"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	Meta     *PlanMeta      `json:"meta,omitempty"`
}

func NewActionPlan(id, toolName string, args map[string]any) *ActionPlan {
	if args == nil {
		args = map[string]any{}
	}
	return &ActionPlan{
		ID:       id,
		ToolName: toolName,
		Args:     args,
	}
}

// StringArg returns a string argument or the empty string.
func (p *ActionPlan) StringArg(key string) string {
	if v, ok := p.Args[key].(string); ok {
		return v
	}
	return ""
}
