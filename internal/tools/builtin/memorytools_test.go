package builtin

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/adapters/id"
	"github.com/longregen/cogito/internal/adapters/memstore"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/ports"
)

type bucketEmbedder struct{}

func (bucketEmbedder) GenerateEmbedding(ctx context.Context, text string) (*ports.EmbeddingResult, error) {
	vec := []float32{1, 0, 0, 0}
	if strings.Contains(strings.ToLower(text), "alex") {
		vec = []float32{0, 1, 0, 0}
	}
	return &ports.EmbeddingResult{Embedding: vec, Model: "test", Dimensions: 4}, nil
}

func newMemoryService(t *testing.T) *memory.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.MemoryConfig{
		RecentK: 8, SemanticK: 5, SimilarityFloor: 0.25,
		ClusterJoinThreshold: 0.55, ForgetFloor: 0.7, ContextBudgetChars: 4096,
	}
	return memory.NewService(memstore.New(), bucketEmbedder{}, id.New(), nil, nil, cfg, logger)
}

func memContext(t *testing.T) *ports.ToolContext {
	t.Helper()
	return ports.NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, models.CapabilitiesFor(models.SideEffectMemoryWrite))
}

func TestRememberStoresMemory(t *testing.T) {
	svc := newMemoryService(t)
	tools := NewMemoryTools(svc, &memCitations{})
	tc := memContext(t)

	result, err := tools.Remember(context.Background(), map[string]any{"content": "My name is Alex and I am a software developer."}, tc)
	require.NoError(t, err)
	require.True(t, result.Success)

	memoryID := result.Value.(map[string]any)["memory_id"].(string)
	assert.True(t, strings.HasPrefix(memoryID, "mem_"))
	assert.Equal(t, []string{memoryID}, tc.SideEffects().MemoryWrites)
}

func TestRememberRequiresCapability(t *testing.T) {
	svc := newMemoryService(t)
	tools := NewMemoryTools(svc, nil)
	tc := ports.NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, models.CapabilitiesFor(models.SideEffectReadOnly))

	result, err := tools.Remember(context.Background(), map[string]any{"content": "something"}, tc)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindCapabilityDenied, result.ErrorKind)
}

func TestRecallFindsStoredMemory(t *testing.T) {
	svc := newMemoryService(t)
	cits := &memCitations{}
	tools := NewMemoryTools(svc, cits)
	tc := memContext(t)
	ctx := context.Background()

	_, err := tools.Remember(ctx, map[string]any{"content": "My name is Alex and I am a software developer."}, tc)
	require.NoError(t, err)

	result, err := tools.RecallMemory(ctx, map[string]any{"query": "what do you know about Alex?"}, tc)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Output, "Alex")
	require.NotEmpty(t, result.Citations)
	assert.True(t, strings.HasPrefix(result.Citations[0].SourceURI, "memory://mem_"))
	assert.True(t, cits.VerifyHash(result.Citations[0]))
}

func TestRecallEmpty(t *testing.T) {
	svc := newMemoryService(t)
	cits := &memCitations{}
	tools := NewMemoryTools(svc, cits)

	result, err := tools.RecallMemory(context.Background(), map[string]any{"query": "anything at all"}, memContext(t))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Output, "No stored memories")

	// even the empty answer carries evidence so claim checking can run
	require.Len(t, result.Citations, 1)
	assert.True(t, cits.VerifyHash(result.Citations[0]))
}
