package planner

import (
	"context"
	"regexp"
	"strings"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// RuleStrategy is a deterministic keyword classifier over the utterance. It
// serves as the fallback when the model is unavailable, as offline mode, and
// as ground truth in tests.
type RuleStrategy struct {
	ids ports.IDGenerator
}

func NewRuleStrategy(ids ports.IDGenerator) *RuleStrategy {
	return &RuleStrategy{ids: ids}
}

func (s *RuleStrategy) Name() string { return "rules" }

var (
	mathExprRe   = regexp.MustCompile(`(\d+(?:\.\d+)?\s*[+\-*/×÷^]\s*\d+(?:\.\d+)?(?:[\s\d+\-*/×÷^.()]*)?)`)
	deleteFileRe = regexp.MustCompile(`delete (?:the )?file\s+(\S+)`)
	readFileRe   = regexp.MustCompile(`read (?:the )?file\s+(\S+)`)
)

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (s *RuleStrategy) Plan(ctx context.Context, utterance string, bundle *models.ContextBundle) (*models.ActionPlan, error) {
	lower := strings.ToLower(strings.TrimSpace(utterance))

	plan := func(tool string, args map[string]any) (*models.ActionPlan, error) {
		p := models.NewActionPlan(s.ids.GeneratePlanID(), tool, args)
		p.Meta = &models.PlanMeta{Strategy: s.Name()}
		return p, nil
	}

	// Recall questions take priority over everything so "what is my name"
	// never falls into the calculator branch.
	if containsAny(lower, "what do you remember", "do you remember", "recall", "what is my name", "who am i", "what were they") {
		return plan("recall_memory", map[string]any{"query": utterance})
	}

	// Statements about the user become explicit memory writes.
	if strings.HasPrefix(lower, "remember ") || containsAny(lower, "my name is", "i am a ", "i work as") {
		content := utterance
		if rest, ok := strings.CutPrefix(utterance, "remember "); ok {
			content = rest
		} else if rest, ok := strings.CutPrefix(utterance, "Remember "); ok {
			content = rest
		}
		return plan("remember", map[string]any{"content": content})
	}

	if m := deleteFileRe.FindStringSubmatch(lower); m != nil {
		return plan("delete_file", map[string]any{"path": strings.TrimRight(m[1], ".!?")})
	}
	if m := readFileRe.FindStringSubmatch(lower); m != nil {
		return plan("read_file", map[string]any{"path": strings.TrimRight(m[1], ".!?")})
	}

	if containsAny(lower, "search", "research", "investigate", "look up", "find out") {
		return plan("web_search", map[string]any{"query": utterance})
	}

	if containsAny(lower, "weather", "temperature", "forecast") {
		location := "current location"
		if _, after, ok := strings.Cut(lower, "weather in "); ok {
			location = strings.TrimRight(strings.TrimSpace(after), ".!?")
		} else if _, after, ok := strings.Cut(lower, "weather for "); ok {
			location = strings.TrimRight(strings.TrimSpace(after), ".!?")
		}
		return plan("get_weather", map[string]any{"location": location})
	}

	if expr := mathExprRe.FindString(utterance); expr != "" || strings.Contains(lower, "calculate") {
		if expr == "" {
			expr = strings.TrimSpace(strings.TrimPrefix(lower, "calculate"))
		}
		return plan("calculate", map[string]any{"expression": strings.TrimRight(strings.TrimSpace(expr), ".!?")})
	}

	if containsAny(lower, "what time", "current time", "time is it", "date", "today") {
		return plan("system_info", map[string]any{"query": "time_date"})
	}

	if containsAny(lower, "list files", "show files", "files in", "current directory") {
		return plan("list_files", map[string]any{"path": "."})
	}

	return plan("respond", map[string]any{"text": utterance})
}
