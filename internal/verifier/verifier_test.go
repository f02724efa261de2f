package verifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

type fakeEntailment struct {
	score float64
	fail  bool
	calls int
}

func (f *fakeEntailment) Score(ctx context.Context, premise, hypothesis string) (float64, error) {
	scores, err := f.ScoreBatch(ctx, []ports.EntailmentPair{{Premise: premise, Hypothesis: hypothesis}})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

func (f *fakeEntailment) ScoreBatch(ctx context.Context, pairs []ports.EntailmentPair) ([]float64, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("nli backend offline")
	}
	out := make([]float64, len(pairs))
	for i := range out {
		out[i] = f.score
	}
	return out, nil
}

type fakeCitations struct {
	blobs map[string][]byte
}

func (f *fakeCitations) Put(ref models.CitationRef, content []byte) (string, error) {
	if f.blobs == nil {
		f.blobs = make(map[string][]byte)
	}
	f.blobs[ref.ContentHash] = content
	return ref.ContentHash, nil
}

func (f *fakeCitations) Get(hash string) ([]byte, error) {
	b, ok := f.blobs[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (f *fakeCitations) VerifyHash(ref models.CitationRef) bool {
	_, ok := f.blobs[ref.ContentHash]
	return ok
}

func testConfig() config.VerifierConfig {
	return config.VerifierConfig{
		EntailmentFloor: 0.6,
		CoverageBlock:   0.5,
		CoverageWarn:    0.8,
		BatchSize:       16,
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	handler := ports.ToolHandlerFunc(func(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
		return &models.ExecutionResult{Success: true}, nil
	})
	specs := []*models.ToolSpec{
		{Name: "calculate", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskSafe, PostConditionID: PostNumericResult, SideEffect: models.SideEffectReadOnly},
		{Name: "get_weather", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskSafe, PostConditionID: PostWeatherPayloadShape, SideEffect: models.SideEffectNetwork},
		{Name: "write_file", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskConfirm, PostConditionID: PostFileExistsAfterWrite, SideEffect: models.SideEffectWritesFS},
		{Name: "remember", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskSafe, PostConditionID: PostMemoryWritten, SideEffect: models.SideEffectMemoryWrite},
		{Name: "web_search", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskReview, PostConditionID: PostHTTPStatus2xx, SideEffect: models.SideEffectNetwork},
		{Name: "recall_memory", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "respond", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
	}
	for _, spec := range specs {
		require.NoError(t, r.Register(spec, handler))
	}
	r.Seal()
	return r
}

func newVerifier(t *testing.T, ent ports.EntailmentService, cits ports.CitationStore) *Verifier {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testRegistry(t), ent, cits, testConfig(), logger)
}

func searchResult(output string, refs ...models.CitationRef) *models.ExecutionResult {
	return &models.ExecutionResult{
		Success:   true,
		Output:    output,
		Citations: refs,
		SideEffects: models.SideEffectLog{
			URLsFetched:  []string{"https://en.wikipedia.org/wiki/Go"},
			HTTPStatuses: []int{200},
		},
	}
}

func TestExecutionFailureBlocks(t *testing.T) {
	v := newVerifier(t, &fakeEntailment{}, &fakeCitations{})
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "calculate", nil),
		models.FailedResult(models.ErrorKindTimeout, "deadline exceeded"))
	assert.Equal(t, models.VerdictBlock, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonExecutionFailed)
}

func TestNumericPostCondition(t *testing.T) {
	v := newVerifier(t, &fakeEntailment{}, &fakeCitations{})
	plan := models.NewActionPlan("pln_1", "calculate", map[string]any{"expression": "25 * 47 + 183"})

	verdict := v.Check(context.Background(), plan, &models.ExecutionResult{Success: true, Value: 1358.0})
	assert.Equal(t, models.VerdictPass, verdict.Status)

	verdict = v.Check(context.Background(), plan, &models.ExecutionResult{Success: true, Value: "1358"})
	assert.Equal(t, models.VerdictPass, verdict.Status)

	// safe tool: a failed post-condition warns rather than blocks
	verdict = v.Check(context.Background(), plan, &models.ExecutionResult{Success: true, Value: "not a number"})
	assert.Equal(t, models.VerdictWarn, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonPostConditionFailed)
}

func TestWeatherPayloadShape(t *testing.T) {
	v := newVerifier(t, &fakeEntailment{}, &fakeCitations{})
	plan := models.NewActionPlan("pln_1", "get_weather", map[string]any{"location": "London"})

	verdict := v.Check(context.Background(), plan, &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"location": "London", "temperature": 14.5, "condition": "cloudy"},
	})
	assert.Equal(t, models.VerdictPass, verdict.Status)

	verdict = v.Check(context.Background(), plan, &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"location": "London"},
	})
	assert.Equal(t, models.VerdictWarn, verdict.Status)

	// key presence is not enough: a nil temperature fails the shape check
	verdict = v.Check(context.Background(), plan, &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"location": "London", "temperature": nil, "condition": "unavailable"},
	})
	assert.Equal(t, models.VerdictWarn, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonPostConditionFailed)

	verdict = v.Check(context.Background(), plan, &models.ExecutionResult{
		Success: true,
		Value:   map[string]any{"location": "", "temperature": 14.5, "condition": "cloudy"},
	})
	assert.Equal(t, models.VerdictWarn, verdict.Status)
}

func TestFileWritePostConditionBlocksForConfirmTier(t *testing.T) {
	v := newVerifier(t, &fakeEntailment{}, &fakeCitations{})
	plan := models.NewActionPlan("pln_1", "write_file", map[string]any{"path": "notes.txt"})

	dir := t.TempDir()
	written := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(written, []byte("hello"), 0o600))

	verdict := v.Check(context.Background(), plan, &models.ExecutionResult{
		Success:     true,
		SideEffects: models.SideEffectLog{FilesWritten: []string{written}},
	})
	assert.Equal(t, models.VerdictPass, verdict.Status)

	// confirm-tier tool with a missing file blocks
	verdict = v.Check(context.Background(), plan, &models.ExecutionResult{
		Success:     true,
		SideEffects: models.SideEffectLog{FilesWritten: []string{filepath.Join(dir, "missing.txt")}},
	})
	assert.Equal(t, models.VerdictBlock, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonPostConditionFailed)
}

func TestResearchClaimsSupported(t *testing.T) {
	cits := &fakeCitations{}
	ref := models.CitationRef{SourceURI: "https://en.wikipedia.org/wiki/Go", ContentHash: "abc123"}
	_, err := cits.Put(ref, []byte("Go is a statically typed language designed at Google."))
	require.NoError(t, err)

	v := newVerifier(t, &fakeEntailment{score: 0.9}, cits)
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "web_search", nil),
		searchResult("Go is statically typed. Go was designed at Google.", ref))

	assert.Equal(t, models.VerdictPass, verdict.Status)
	require.Len(t, verdict.Claims, 2)
	for _, c := range verdict.Claims {
		assert.True(t, c.Supported)
	}
	assert.Equal(t, 1.0, verdict.Coverage)
}

func TestRecallClaimsChecked(t *testing.T) {
	cits := &fakeCitations{}
	ref := models.CitationRef{SourceURI: "memory://mem_1", ContentHash: "def456"}
	_, err := cits.Put(ref, []byte("User: my name is Alex. Assistant: noted."))
	require.NoError(t, err)

	ent := &fakeEntailment{score: 0.9}
	v := newVerifier(t, ent, cits)
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "recall_memory", nil),
		&models.ExecutionResult{
			Success:   true,
			Output:    "Your name is Alex.",
			Citations: []models.CitationRef{ref},
		})

	assert.Equal(t, models.VerdictPass, verdict.Status)
	require.Len(t, verdict.Claims, 1)
	assert.True(t, verdict.Claims[0].Supported)
	assert.Positive(t, ent.calls, "recall claims must go through entailment")

	// unsupported recall claims block like any other research output
	v = newVerifier(t, &fakeEntailment{score: 0.1}, cits)
	verdict = v.Check(context.Background(), models.NewActionPlan("pln_2", "recall_memory", nil),
		&models.ExecutionResult{
			Success:   true,
			Output:    "Your name is Alex.",
			Citations: []models.CitationRef{ref},
		})
	assert.Equal(t, models.VerdictBlock, verdict.Status)
}

func TestClaimAtFloorIsSupported(t *testing.T) {
	cits := &fakeCitations{}
	ref := models.CitationRef{ContentHash: "abc123"}
	_, err := cits.Put(ref, []byte("evidence text"))
	require.NoError(t, err)

	v := newVerifier(t, &fakeEntailment{score: 0.6}, cits)
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "web_search", nil),
		searchResult("The claim sits exactly at the floor.", ref))

	require.Len(t, verdict.Claims, 1)
	assert.True(t, verdict.Claims[0].Supported)
}

func TestLowCoverageBlocks(t *testing.T) {
	cits := &fakeCitations{}
	ref := models.CitationRef{ContentHash: "abc123"}
	_, err := cits.Put(ref, []byte("unrelated evidence"))
	require.NoError(t, err)

	v := newVerifier(t, &fakeEntailment{score: 0.1}, cits)
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "web_search", nil),
		searchResult("First unsupported claim here. Second unsupported claim here.", ref))

	assert.Equal(t, models.VerdictBlock, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonCoverageLow)
}

func TestNoCitationsBlocks(t *testing.T) {
	v := newVerifier(t, &fakeEntailment{score: 0.9}, &fakeCitations{})
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "web_search", nil),
		searchResult("A claim without any citation backing."))

	assert.Equal(t, models.VerdictBlock, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonNoCitations)
}

func TestDegradedVerifierWarns(t *testing.T) {
	cits := &fakeCitations{}
	ref := models.CitationRef{ContentHash: "abc123"}
	_, err := cits.Put(ref, []byte("go is a statically typed language designed at google with garbage collection"))
	require.NoError(t, err)

	v := newVerifier(t, &fakeEntailment{fail: true}, cits)
	verdict := v.Check(context.Background(), models.NewActionPlan("pln_1", "web_search", nil),
		searchResult("Go is statically typed language. Go was designed at Google. Go has garbage collection.", ref))

	assert.Equal(t, models.VerdictWarn, verdict.Status)
	assert.Contains(t, verdict.Reasons, models.ReasonVerifierDegraded)
	assert.Len(t, verdict.Claims, 3)
	assert.True(t, verdict.Surfaceable())
}

func TestSplitClaims(t *testing.T) {
	claims := splitClaims("Go is fast. Yes! What about generics? Go has them since 1.18.")
	assert.Equal(t, []string{"Go is fast", "What about generics", "Go has them since 1.18"}, claims)

	assert.Empty(t, splitClaims(""))
	assert.Empty(t, splitClaims("Ok."))
}

func TestKeywordOverlap(t *testing.T) {
	full := keywordOverlap("the quick brown fox jumps", "quick brown fox")
	assert.Equal(t, 1.0, full)

	none := keywordOverlap("completely unrelated text", "quick brown fox")
	assert.Equal(t, 0.0, none)
}
