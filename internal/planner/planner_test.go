package planner

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/adapters/id"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	handler := ports.ToolHandlerFunc(func(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
		return &models.ExecutionResult{Success: true}, nil
	})
	stringArg := func(name string) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				name: map[string]any{"type": "string"},
			},
			"required": []string{name},
		}
	}
	specs := []*models.ToolSpec{
		{Name: "respond", ArgSchema: stringArg("text"), Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "recall_memory", ArgSchema: stringArg("query"), Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "remember", ArgSchema: stringArg("content"), Risk: models.RiskSafe, SideEffect: models.SideEffectMemoryWrite},
		{Name: "get_weather", ArgSchema: stringArg("location"), Risk: models.RiskSafe, SideEffect: models.SideEffectNetwork},
		{Name: "calculate", ArgSchema: stringArg("expression"), Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "system_info", ArgSchema: stringArg("query"), Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "list_files", ArgSchema: stringArg("path"), Risk: models.RiskReview, SideEffect: models.SideEffectReadOnly},
		{Name: "read_file", ArgSchema: stringArg("path"), Risk: models.RiskReview, SideEffect: models.SideEffectReadOnly},
		{Name: "delete_file", ArgSchema: stringArg("path"), Risk: models.RiskConfirm, SideEffect: models.SideEffectWritesFS},
		{Name: "web_search", ArgSchema: stringArg("query"), Risk: models.RiskReview, SideEffect: models.SideEffectNetwork},
	}
	for _, spec := range specs {
		require.NoError(t, r.Register(spec, handler))
	}
	r.Seal()
	return r
}

func TestRuleStrategyClassification(t *testing.T) {
	s := NewRuleStrategy(id.New())
	ctx := context.Background()

	tests := []struct {
		utterance string
		wantTool  string
		wantArg   string
		wantValue string
	}{
		{"My name is Alex and I am a software developer.", "remember", "content", "My name is Alex and I am a software developer."},
		{"What do you remember about me?", "recall_memory", "query", "What do you remember about me?"},
		{"Weather in London.", "get_weather", "location", "london"},
		{"What's the weather like?", "get_weather", "location", "current location"},
		{"Calculate 25 * 47 + 183.", "calculate", "expression", "25 * 47 + 183"},
		{"what time is it?", "system_info", "query", "time_date"},
		{"list files please", "list_files", "path", "."},
		{"read file notes.txt", "read_file", "path", "notes.txt"},
		{"delete file /etc/passwd", "delete_file", "path", "/etc/passwd"},
		{"search for recent go releases", "web_search", "query", "search for recent go releases"},
		{"hello there, how are you?", "respond", "text", "hello there, how are you?"},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			plan, err := s.Plan(ctx, tt.utterance, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTool, plan.ToolName)
			assert.Equal(t, tt.wantValue, plan.StringArg(tt.wantArg))
		})
	}
}

// scriptedLLM returns canned outputs in order.
type scriptedLLM struct {
	outputs []string
	errs    []error
	calls   int
}

func (s *scriptedLLM) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", errors.New("script exhausted")
}

func TestModelStrategyParsesCleanPlan(t *testing.T) {
	reg := testRegistry(t)
	llm := &scriptedLLM{outputs: []string{`{"tool_name": "get_weather", "args": {"location": "London"}}`}}
	s := NewModelStrategy(llm, reg, id.New(), 2, slog.Default())

	plan, err := s.Plan(context.Background(), "Weather in London.", nil)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", plan.ToolName)
	assert.Equal(t, "London", plan.StringArg("location"))
	assert.Equal(t, "model", plan.Meta.Strategy)
}

func TestModelStrategyRetriesOnProse(t *testing.T) {
	reg := testRegistry(t)
	llm := &scriptedLLM{outputs: []string{
		`Sure! Here is the plan: {"tool_name": "respond", "args": {"text": "hi"}}`,
		`{"tool_name": "respond", "args": {"text": "hi"}}`,
	}}
	s := NewModelStrategy(llm, reg, id.New(), 2, slog.Default())

	plan, err := s.Plan(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "respond", plan.ToolName)
	assert.Equal(t, 2, llm.calls)
}

func TestModelStrategyExhaustsRetries(t *testing.T) {
	reg := testRegistry(t)
	llm := &scriptedLLM{outputs: []string{"not json", "still not json", "nope"}}
	s := NewModelStrategy(llm, reg, id.New(), 2, slog.Default())

	_, err := s.Plan(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPlanningFailure))
	assert.Equal(t, 3, llm.calls)
}

func TestModelStrategyRejectsUnknownTool(t *testing.T) {
	reg := testRegistry(t)
	llm := &scriptedLLM{outputs: []string{
		`{"tool_name": "launch_missiles", "args": {}}`,
		`{"tool_name": "launch_missiles", "args": {}}`,
		`{"tool_name": "launch_missiles", "args": {}}`,
	}}
	s := NewModelStrategy(llm, reg, id.New(), 2, slog.Default())

	_, err := s.Plan(context.Background(), "do it", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPlanningFailure))
}

func TestModelStrategyRejectsSchemaViolation(t *testing.T) {
	reg := testRegistry(t)
	llm := &scriptedLLM{outputs: []string{
		`{"tool_name": "get_weather", "args": {"location": 42}}`,
	}}
	s := NewModelStrategy(llm, reg, id.New(), 0, slog.Default())

	_, err := s.Plan(context.Background(), "weather", nil)
	require.Error(t, err)
}

func TestPlannerFallsBackToRules(t *testing.T) {
	reg := testRegistry(t)
	llm := &scriptedLLM{errs: []error{errors.New("model offline"), errors.New("model offline"), errors.New("model offline")}}
	primary := NewModelStrategy(llm, reg, id.New(), 2, slog.Default())
	secondary := NewRuleStrategy(id.New())
	p := New(primary, secondary, reg, config.PlannerConfig{MaxRetries: 2, DeadlineMs: 5000}, slog.Default())

	plan, err := p.Plan(context.Background(), "Weather in London.", nil)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", plan.ToolName)
	assert.Equal(t, "rules", plan.Meta.Strategy)
}

func TestPlannerGrammarRoundTrip(t *testing.T) {
	// any plan the planner emits parses back to an equal plan
	reg := testRegistry(t)
	llm := &scriptedLLM{outputs: []string{`{"tool_name": "calculate", "args": {"expression": "2 + 2"}}`}}
	s := NewModelStrategy(llm, reg, id.New(), 0, slog.Default())

	plan, err := s.Plan(context.Background(), "calculate 2 + 2", nil)
	require.NoError(t, err)

	reparsed, err := s.parse(`{"tool_name": "calculate", "args": {"expression": "2 + 2"}}`)
	require.NoError(t, err)
	assert.Equal(t, plan.ToolName, reparsed.ToolName)
	assert.Equal(t, plan.Args, reparsed.Args)
}
