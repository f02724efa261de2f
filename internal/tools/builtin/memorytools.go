package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/ports"
)

// MemoryTools backs the remember and recall_memory handlers with the memory
// service and the citation store.
type MemoryTools struct {
	svc       *memory.Service
	citations ports.CitationStore
}

func NewMemoryTools(svc *memory.Service, citations ports.CitationStore) *MemoryTools {
	return &MemoryTools{svc: svc, citations: citations}
}

// Remember stores an explicit fact about the user.
func (m *MemoryTools) Remember(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	content, ok := args["content"].(string)
	if !ok || strings.TrimSpace(content) == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "content must be a non-empty string"), nil
	}
	if err := tc.Require(models.CapMemoryWrite); err != nil {
		return models.FailedResult(models.ErrorKindCapabilityDenied, err.Error()), nil
	}

	turn := models.NewTurn(tc.TurnID, tc.UserID, content)
	turn.Plan = models.NewActionPlan("", "remember", args)
	turn.Success = true
	turn.Reply = "Noted."

	id, err := m.svc.Commit(ctx, tc.UserID, turn)
	if err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, "memory commit failed: "+err.Error()), nil
	}
	tc.RecordMemoryWrite(id)

	return &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"memory_id": id},
		Output:  "I'll remember that.",
	}, nil
}

// RecallMemory searches the user's memories and cites the matched records.
func (m *MemoryTools) RecallMemory(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "query must be a non-empty string"), nil
	}

	matches, err := m.svc.Search(ctx, tc.UserID, query, 0)
	if err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, "memory search failed: "+err.Error()), nil
	}
	if len(matches) == 0 {
		// the empty result set is itself the evidence for the reply
		text := "No stored memories match that."
		ref := memoryCitation("none", text)
		if m.citations != nil {
			m.citations.Put(ref, []byte(text))
		}
		return &models.ExecutionResult{
			Success:   true,
			Value:     map[string]any{"matches": 0},
			Output:    text,
			Citations: []models.CitationRef{ref},
		}, nil
	}

	var b strings.Builder
	b.WriteString("Here's what I remember:\n")
	citations := make([]models.CitationRef, 0, len(matches))
	for _, m2 := range matches {
		text := m2.Record.Text()
		fmt.Fprintf(&b, "- %s\n", text)
		ref := memoryCitation(m2.Record.ID, text)
		if m.citations != nil {
			if _, err := m.citations.Put(ref, []byte(text)); err == nil {
				citations = append(citations, ref)
			}
		} else {
			citations = append(citations, ref)
		}
	}

	return &models.ExecutionResult{
		Success:   true,
		Value:     map[string]any{"matches": len(matches)},
		Output:    strings.TrimRight(b.String(), "\n"),
		Citations: citations,
	}, nil
}

func memoryCitation(memoryID, text string) models.CitationRef {
	sum := sha256.Sum256([]byte(text))
	return models.CitationRef{
		SourceURI:   "memory://" + memoryID,
		ByteStart:   0,
		ByteEnd:     len(text),
		ContentHash: hex.EncodeToString(sum[:]),
	}
}
