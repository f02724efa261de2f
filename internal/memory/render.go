package memory

import (
	"fmt"
	"strings"

	"github.com/longregen/cogito/internal/domain/models"
)

// RenderBundle produces the textual form of a context bundle, both for the
// planner prompt and for budget accounting during assembly.
func RenderBundle(bundle *models.ContextBundle) string {
	var b strings.Builder

	if bundle.Profile != nil {
		b.WriteString("## User profile\n")
		if themes := bundle.Profile.TopThemes(3); len(themes) > 0 {
			fmt.Fprintf(&b, "Dominant themes: %s\n", strings.Join(themes, ", "))
		}
		if tools := bundle.Profile.TopTools(3); len(tools) > 0 {
			fmt.Fprintf(&b, "Frequent tools: %s\n", strings.Join(tools, ", "))
		}
		fmt.Fprintf(&b, "Turns: %d, success rate: %.0f%%\n", bundle.Profile.TurnCount, bundle.Profile.SuccessRate()*100)
		b.WriteString("\n")
	}

	if len(bundle.Recent) > 0 {
		b.WriteString("## Recent turns (newest first)\n")
		for _, rec := range bundle.Recent {
			fmt.Fprintf(&b, "- user: %s\n  assistant: %s\n", rec.Utterance, rec.Reply)
		}
		b.WriteString("\n")
	}

	if len(bundle.Semantic) > 0 {
		b.WriteString("## Related memories\n")
		for _, m := range bundle.Semantic {
			fmt.Fprintf(&b, "- [%.2f] user: %s\n  assistant: %s\n", m.Similarity, m.Record.Utterance, m.Record.Reply)
		}
		b.WriteString("\n")
	}

	if len(bundle.Exemplars) > 0 {
		b.WriteString("## Themes\n")
		for _, ex := range bundle.Exemplars {
			fmt.Fprintf(&b, "- %s: %s\n", ex.Label, firstLine(ex.Record.Utterance))
		}
		b.WriteString("\n")
	}

	if bundle.Degraded {
		b.WriteString("(semantic retrieval unavailable, recent context only)\n")
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
