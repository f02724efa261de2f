package ports

import (
	"context"

	"github.com/longregen/cogito/internal/domain/models"
)

// CompletionRequest is one language model invocation. Grammar, when set, is
// a JSON Schema the output must conform to; implementations without
// constrained decoding ignore it and rely on parse-and-retry upstream.
type CompletionRequest struct {
	System      string
	Prompt      string
	Grammar     map[string]any
	MaxTokens   int
	Temperature float64
}

// LanguageModel generates text from a prompt, honoring context cancellation
// and deadlines.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// EmbeddingResult contains the embedding vector and metadata
type EmbeddingResult struct {
	Embedding  []float32
	Model      string
	Dimensions int
}

// EmbeddingService generates vector embeddings for text
type EmbeddingService interface {
	GenerateEmbedding(ctx context.Context, text string) (*EmbeddingResult, error)
}

// EntailmentPair is one (premise, hypothesis) scoring request.
type EntailmentPair struct {
	Premise    string
	Hypothesis string
}

// EntailmentService scores whether a premise entails a hypothesis, in [0,1].
// ScoreBatch preserves input order.
type EntailmentService interface {
	Score(ctx context.Context, premise, hypothesis string) (float64, error)
	ScoreBatch(ctx context.Context, pairs []EntailmentPair) ([]float64, error)
}

// CitationStore is a content-addressed blob store for cited evidence.
type CitationStore interface {
	Put(ref models.CitationRef, content []byte) (string, error)
	Get(hash string) ([]byte, error)
	VerifyHash(ref models.CitationRef) bool
}

// TurnEvent is one lifecycle notification emitted while a turn moves
// through the pipeline.
type TurnEvent struct {
	TurnID  string `json:"turn_id"`
	UserID  string `json:"user_id"`
	Stage   string `json:"stage"`
	Detail  string `json:"detail,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// Turn lifecycle stages for TurnEvent.
const (
	StageContext   = "context"
	StagePlan      = "plan"
	StageWall      = "wall"
	StageExecute   = "execute"
	StageVerify    = "verify"
	StageCommit    = "commit"
	StageReply     = "reply"
	StageCancelled = "cancelled"
)

// TurnNotifier broadcasts turn lifecycle events to observers. Implementations
// must not block the pipeline.
type TurnNotifier interface {
	NotifyTurnEvent(event TurnEvent)
}

// NoopNotifier discards events.
type NoopNotifier struct{}

func (NoopNotifier) NotifyTurnEvent(TurnEvent) {}
