package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

const systemPrompt = `You are the action planner of a voice assistant. Given the user's utterance and their memory context, respond with exactly one JSON object selecting one tool call:

{"tool_name": "<registered tool>", "args": {...}}

No prose before or after the object. Arguments must satisfy the tool's schema. Prefer "respond" for plain conversation.`

// ModelStrategy asks a language model for a grammar-constrained ActionPlan.
// The grammar is regenerated from the registry at construction; models
// without constrained decoding still converge through parse-and-retry.
type ModelStrategy struct {
	llm        ports.LanguageModel
	reg        *registry.Registry
	ids        ports.IDGenerator
	maxRetries int
	logger     *slog.Logger

	grammar map[string]any
}

func NewModelStrategy(llm ports.LanguageModel, reg *registry.Registry, ids ports.IDGenerator, maxRetries int, logger *slog.Logger) *ModelStrategy {
	return &ModelStrategy{
		llm:        llm,
		reg:        reg,
		ids:        ids,
		maxRetries: maxRetries,
		logger:     logger,
		grammar:    reg.Grammar(),
	}
}

func (s *ModelStrategy) Name() string { return "model" }

func (s *ModelStrategy) Plan(ctx context.Context, utterance string, bundle *models.ContextBundle) (*models.ActionPlan, error) {
	prompt := s.renderPrompt(utterance, bundle)

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := s.llm.Complete(ctx, ports.CompletionRequest{
			System:  systemPrompt,
			Prompt:  prompt,
			Grammar: s.grammar,
		})
		if err != nil {
			lastErr = err
			continue
		}

		plan, err := s.parse(text)
		if err != nil {
			lastErr = err
			s.logger.Debug("planner output rejected", "attempt", attempt+1, "error", err)
			continue
		}
		plan.Meta = &models.PlanMeta{Strategy: s.Name()}
		return plan, nil
	}

	return nil, domain.NewDomainError(domain.ErrPlanningFailure, fmt.Sprintf("model strategy exhausted %d attempts: %v", s.maxRetries+1, lastErr))
}

func (s *ModelStrategy) renderPrompt(utterance string, bundle *models.ContextBundle) string {
	var b strings.Builder
	if bundle != nil {
		if rendered := memory.RenderBundle(bundle); rendered != "" {
			b.WriteString(rendered)
			b.WriteString("\n")
		}
	}
	b.WriteString("## Available tools\n")
	for _, spec := range s.reg.List(registry.Filter{}) {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
	}
	b.WriteString("\n## Utterance\n")
	b.WriteString(utterance)
	return b.String()
}

// parse accepts only a single well-formed JSON object, with no prose prefix
// or suffix, naming a registered tool with schema-valid args.
func (s *ModelStrategy) parse(text string) (*models.ActionPlan, error) {
	trimmed := strings.TrimSpace(text)

	var raw struct {
		ToolName string         `json:"tool_name"`
		Args     map[string]any `json:"args"`
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewDomainError(domain.ErrGrammarViolated, "output is not a JSON object: "+err.Error())
	}
	if dec.More() {
		return nil, domain.NewDomainError(domain.ErrGrammarViolated, "trailing content after plan object")
	}
	if raw.ToolName == "" {
		return nil, domain.NewDomainError(domain.ErrGrammarViolated, "tool_name missing")
	}
	if _, err := s.reg.Lookup(raw.ToolName); err != nil {
		return nil, domain.NewDomainError(domain.ErrUnknownTool, raw.ToolName)
	}
	if err := s.reg.ValidateArgs(raw.ToolName, raw.Args); err != nil {
		return nil, err
	}
	return models.NewActionPlan(s.ids.GeneratePlanID(), raw.ToolName, raw.Args), nil
}
