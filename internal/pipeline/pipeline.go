package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/audit"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/executor"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/verifier"
	"github.com/longregen/cogito/internal/wall"
)

const confirmationTTL = 5 * time.Minute

// Planner produces one ActionPlan for an utterance and its context bundle.
type Planner interface {
	Plan(ctx context.Context, utterance string, bundle *models.ContextBundle) (*models.ActionPlan, error)
}

// AuditSink receives the execution-stage entries the orchestrator emits
// after an approved plan has run. The wall writes its own decision entries.
type AuditSink interface {
	Append(rec *audit.Record) error
}

// TurnRequest is one inbound utterance plus its confirmation state.
type TurnRequest struct {
	UserID            string `json:"user_id"`
	Utterance         string `json:"utterance"`
	ConfirmationToken string `json:"confirmation_token,omitempty"`
	OwnerAuthorized   bool   `json:"owner_authorized,omitempty"`
}

// Orchestrator drives one utterance through the full pipeline: context
// assembly, planning, the validation wall, sandboxed execution,
// verification, reply selection, and the memory commit. Turns are strictly
// sequential per user.
type Orchestrator struct {
	memory   *memory.Service
	planner  Planner
	wall     *wall.Wall
	executor *executor.Executor
	verifier *verifier.Verifier
	turns    ports.TurnRepository
	auditor  AuditSink
	notifier ports.TurnNotifier
	ids      ports.IDGenerator
	cfg      config.MemoryConfig
	logger   *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	pending   map[string]*models.PendingConfirmation
	now       func() time.Time
}

func NewOrchestrator(
	mem *memory.Service,
	planner Planner,
	w *wall.Wall,
	exec *executor.Executor,
	ver *verifier.Verifier,
	turns ports.TurnRepository,
	auditor AuditSink,
	notifier ports.TurnNotifier,
	ids ports.IDGenerator,
	cfg config.MemoryConfig,
	logger *slog.Logger,
) *Orchestrator {
	if notifier == nil {
		notifier = ports.NoopNotifier{}
	}
	return &Orchestrator{
		memory:    mem,
		planner:   planner,
		wall:      w,
		executor:  exec,
		verifier:  ver,
		turns:     turns,
		auditor:   auditor,
		notifier:  notifier,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
		pending:   make(map[string]*models.PendingConfirmation),
		now:       time.Now,
	}
}

// HandleTurn processes one utterance end to end and returns the reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*models.TurnOutcome, error) {
	if req.UserID == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "user id is required")
	}
	if strings.TrimSpace(req.Utterance) == "" && req.ConfirmationToken == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "utterance is required")
	}

	lock := o.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	tracer := otel.Tracer("cogito/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.turn",
		trace.WithAttributes(attribute.String("user.id", req.UserID)))
	defer span.End()

	metrics.TurnsInFlight.Inc()
	defer metrics.TurnsInFlight.Dec()
	start := o.now()

	turn := models.NewTurn(o.ids.GenerateTurnID(), req.UserID, req.Utterance)
	outcome, commit := o.runTurn(ctx, turn, req)

	if commit && ctx.Err() == nil {
		o.commitTurn(ctx, turn)
	}
	metrics.TurnDuration.Observe(o.now().Sub(start).Seconds())
	metrics.TurnsTotal.WithLabelValues(turnLabel(turn, outcome)).Inc()
	o.notify(turn, ports.StageReply, outcome.Reply, "")
	return outcome, nil
}

// runTurn executes the pipeline stages. The bool reports whether a full
// Turn should be committed to memory.
func (o *Orchestrator) runTurn(ctx context.Context, turn *models.Turn, req TurnRequest) (*models.TurnOutcome, bool) {
	// a pending confirmation consumes this inbound turn
	if resumed, outcome, commit := o.resumePending(ctx, turn, req); resumed {
		return outcome, commit
	}

	bundle, err := o.memory.AssembleContext(ctx, req.UserID, req.Utterance, 0)
	if err != nil {
		o.logger.Warn("context assembly failed, proceeding without memory", "error", err)
		bundle = &models.ContextBundle{UserID: req.UserID, Query: req.Utterance, Degraded: true}
	}
	turn.Context = bundle
	o.notify(turn, ports.StageContext, "", "")

	plan, err := o.planner.Plan(ctx, req.Utterance, bundle)
	if err != nil {
		o.logger.Error("planning failed", "turn_id", turn.ID, "error", err)
		turn.Reply = "I couldn't work out what to do with that. Could you rephrase?"
		turn.Success = false
		return o.outcome(turn, bundle.Degraded), true
	}
	turn.Plan = plan
	o.notify(turn, ports.StagePlan, plan.ToolName, "")

	return o.throughWall(ctx, turn, req, plan, bundle.Degraded, req.OwnerAuthorized, false)
}

// throughWall runs the wall and everything after it. confirmed is true when
// this plan was resumed via a confirmation token.
func (o *Orchestrator) throughWall(ctx context.Context, turn *models.Turn, req TurnRequest, plan *models.ActionPlan, degraded, ownerAuth, confirmed bool) (*models.TurnOutcome, bool) {
	verdict, err := o.wall.Evaluate(ctx, wall.Request{
		TurnID:          turn.ID,
		UserID:          req.UserID,
		Plan:            plan,
		Confirmed:       confirmed,
		OwnerAuthorized: ownerAuth,
	})
	if err != nil {
		// an unauditable action must not surface
		o.logger.Error("audit failure, aborting turn", "turn_id", turn.ID, "error", err)
		turn.Reply = "I can't do that right now: my audit log is unavailable."
		turn.Success = false
		return o.outcome(turn, degraded), true
	}
	turn.Wall = verdict
	o.notify(turn, ports.StageWall, string(verdict.Decision), verdict.Code)

	switch verdict.Decision {
	case models.WallRejected:
		turn.Reply = refusalFor(verdict)
		turn.Success = false
		return o.outcome(turn, degraded), true

	case models.WallNeedsConfirmation, models.WallNeedsOwnerAuth:
		token := o.storePending(req.UserID, plan, req.Utterance, verdict.Decision == models.WallNeedsOwnerAuth)
		turn.Reply = confirmationPrompt(plan, verdict.Decision)
		out := o.outcome(turn, degraded)
		out.NeedsConfirmation = true
		out.ResultSummary = token
		// only the pending marker is stored, not a full turn
		return out, false
	}

	result := o.executor.Execute(ctx, turn.ID, req.UserID, plan)
	turn.Result = result
	o.notify(turn, ports.StageExecute, plan.ToolName, result.ErrorKind)

	if ctx.Err() != nil {
		turn.Reply = "Cancelled."
		turn.Success = false
		o.auditExecution(turn, audit.OutcomeCancelled)
		o.notify(turn, ports.StageCancelled, "", "")
		return o.outcome(turn, degraded), false
	}

	vdt := o.verifier.Check(ctx, plan, result)
	turn.Verdict = vdt
	o.notify(turn, ports.StageVerify, string(vdt.Status), "")

	turn.Reply = o.selectReply(result, vdt)
	turn.Success = result.Success && vdt.Surfaceable()

	outcome := audit.OutcomeFailure
	if turn.Success {
		outcome = audit.OutcomeSuccess
	}
	o.auditExecution(turn, outcome)
	return o.outcome(turn, degraded), true
}

// auditExecution appends the post-execution audit entry for an approved
// plan. The action already ran, so a write failure is logged rather than
// overriding the reply.
func (o *Orchestrator) auditExecution(turn *models.Turn, outcome string) {
	if o.auditor == nil {
		return
	}
	rec := &audit.Record{
		Stage:         audit.StageExecution,
		TurnID:        turn.ID,
		UserID:        turn.UserID,
		Outcome:       outcome,
		ResultSummary: summarizeResult(turn.Result),
		ReplyDigest:   replyDigest(turn.Reply),
	}
	if turn.Plan != nil {
		rec.ToolName = turn.Plan.ToolName
	}
	if turn.Verdict != nil {
		rec.Verdict = string(turn.Verdict.Status)
	}
	if err := o.auditor.Append(rec); err != nil {
		o.logger.Error("execution audit write failed", "turn_id", turn.ID, "error", err)
	}
}

const maxResultSummaryLen = 256

func summarizeResult(result *models.ExecutionResult) string {
	if result == nil {
		return ""
	}
	if !result.Success {
		s := result.ErrorKind
		if result.ErrorMsg != "" {
			s += ": " + result.ErrorMsg
		}
		return clipString(s, maxResultSummaryLen)
	}
	return clipString(result.Output, maxResultSummaryLen)
}

func replyDigest(reply string) string {
	if reply == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(reply))
	return hex.EncodeToString(sum[:])
}

func clipString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// selectReply applies the decision matrix.
func (o *Orchestrator) selectReply(result *models.ExecutionResult, vdt *models.Verdict) string {
	if !result.Success {
		switch result.ErrorKind {
		case models.ErrorKindTimeout:
			return "Sorry, that took too long and I had to stop it."
		case models.ErrorKindCapabilityDenied:
			return "I'm not allowed to do that."
		default:
			return "Sorry, something went wrong while doing that."
		}
	}
	switch vdt.Status {
	case models.VerdictPass:
		return result.Output
	case models.VerdictWarn:
		return "Take this with a grain of salt (" + strings.Join(vdt.Reasons, ", ") + "): " + result.Output
	default:
		return "I got an answer but couldn't verify it, so I'd rather not repeat it."
	}
}

// resumePending matches an inbound confirmation token against the user's
// pending marker. Any other inbound utterance clears the marker.
func (o *Orchestrator) resumePending(ctx context.Context, turn *models.Turn, req TurnRequest) (bool, *models.TurnOutcome, bool) {
	o.mu.Lock()
	p, ok := o.pending[req.UserID]
	if ok {
		delete(o.pending, req.UserID)
	}
	o.mu.Unlock()
	if !ok {
		return false, nil, false
	}

	if p.Expired(o.now()) {
		o.logger.Info("pending confirmation expired", "user_id", req.UserID)
		return false, nil, false
	}
	if req.ConfirmationToken == "" {
		// new utterance supersedes the pending plan
		return false, nil, false
	}
	if req.ConfirmationToken != p.Token {
		turn.Reply = "That confirmation didn't match, so I dropped the pending action."
		turn.Success = false
		return true, o.outcome(turn, false), true
	}

	turn.Plan = p.Plan
	if turn.Utterance == "" {
		turn.Utterance = p.Utterance
	}
	outcome, commit := o.throughWall(ctx, turn, req, p.Plan, false, req.OwnerAuthorized || p.OwnerAuth, true)
	return true, outcome, commit
}

func (o *Orchestrator) storePending(userID string, plan *models.ActionPlan, utterance string, ownerAuth bool) string {
	token := o.ids.GenerateConfirmationToken()
	now := o.now()
	o.mu.Lock()
	o.pending[userID] = &models.PendingConfirmation{
		UserID:    userID,
		Token:     token,
		Plan:      plan,
		Utterance: utterance,
		OwnerAuth: ownerAuth,
		CreatedAt: now,
		ExpiresAt: now.Add(confirmationTTL),
	}
	o.mu.Unlock()
	return token
}

func confirmationPrompt(plan *models.ActionPlan, decision models.WallDecision) string {
	if decision == models.WallNeedsOwnerAuth {
		return "Running " + plan.ToolName + " needs owner approval. Confirm with your owner token to proceed."
	}
	return "Just to check: you want me to run " + plan.ToolName + "? Confirm and I'll go ahead."
}

func (o *Orchestrator) commitTurn(ctx context.Context, turn *models.Turn) {
	turn.CommittedAt = o.now()
	if _, err := o.memory.Commit(ctx, turn.UserID, turn); err != nil {
		o.logger.Error("memory commit failed", "turn_id", turn.ID, "error", err)
	}
	if o.turns != nil {
		if err := o.turns.Save(ctx, turn); err != nil {
			o.logger.Warn("turn persistence failed", "turn_id", turn.ID, "error", err)
		}
	}
	o.notify(turn, ports.StageCommit, "", "")
}

func (o *Orchestrator) outcome(turn *models.Turn, degraded bool) *models.TurnOutcome {
	out := &models.TurnOutcome{
		TurnID:   turn.ID,
		Reply:    turn.Reply,
		Degraded: degraded,
	}
	if turn.Verdict != nil {
		out.Verdict = turn.Verdict.Status
	}
	if turn.Wall != nil {
		out.WallDecision = turn.Wall.Decision
	}
	return out
}

func (o *Orchestrator) notify(turn *models.Turn, stage, detail, outcome string) {
	o.notifier.NotifyTurnEvent(ports.TurnEvent{
		TurnID:  turn.ID,
		UserID:  turn.UserID,
		Stage:   stage,
		Detail:  detail,
		Outcome: outcome,
	})
}

func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.userLocks[userID] = lock
	}
	return lock
}

func turnLabel(turn *models.Turn, out *models.TurnOutcome) string {
	switch {
	case out.NeedsConfirmation:
		return "pending_confirmation"
	case turn.Wall != nil && turn.Wall.Decision == models.WallRejected:
		return "rejected"
	case turn.Success:
		return "success"
	default:
		return "failure"
	}
}

// PendingFor exposes whether a user has an unexpired pending confirmation.
func (o *Orchestrator) PendingFor(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.pending[userID]
	return ok && !p.Expired(o.now())
}
