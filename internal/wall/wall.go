package wall

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/audit"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/registry"
)

// Request carries one plan through the wall together with the turn's
// confirmation state, supplied by the orchestrator.
type Request struct {
	TurnID          string
	UserID          string
	Plan            *models.ActionPlan
	Confirmed       bool
	OwnerAuthorized bool
}

// Wall is the validation wall between the planner and the executor. Every
// plan passes five tiers in order: schema, policy, static analysis, risk
// decision, audit. The first failing tier short-circuits; the audit tier
// always runs so every decision leaves a durable record.
type Wall struct {
	cfg      config.WallConfig
	reg      *registry.Registry
	limiter  *rateLimiter
	auditLog *audit.Log
	logger   *slog.Logger

	// policyMu guards the runtime-adjustable policy slice: side-effect
	// gating and the domain allowlist, both replaceable via SetPolicy.
	policyMu         sync.RWMutex
	effectPolicies   map[string]bool
	allowlistDomains []string
}

type Option func(*Wall)

// WithClock substitutes the rate limiter's clock.
func WithClock(now func() time.Time) Option {
	return func(w *Wall) {
		w.limiter = newRateLimiter(w.cfg.RateLimits, now)
	}
}

// AllowSideEffect records a per-tool policy entry permitting a network or
// os-control tool. Tools with those side effects and no entry are rejected.
func AllowSideEffect(tools ...string) Option {
	return func(w *Wall) {
		for _, t := range tools {
			w.effectPolicies[t] = true
		}
	}
}

func New(cfg config.WallConfig, reg *registry.Registry, auditLog *audit.Log, logger *slog.Logger, opts ...Option) *Wall {
	w := &Wall{
		cfg:              cfg,
		reg:              reg,
		limiter:          newRateLimiter(cfg.RateLimits, time.Now),
		auditLog:         auditLog,
		effectPolicies:   make(map[string]bool),
		allowlistDomains: cfg.AllowlistDomains,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PolicyDoc is the runtime-adjustable slice of the wall configuration.
type PolicyDoc struct {
	SideEffectTools  []string `json:"side_effect_tools"`
	AllowlistDomains []string `json:"allowlist_domains"`
}

// SetPolicy atomically replaces side-effect gating and the domain
// allowlist. Path confinement and rate limits stay fixed at construction.
func (w *Wall) SetPolicy(doc PolicyDoc) {
	effects := make(map[string]bool, len(doc.SideEffectTools))
	for _, t := range doc.SideEffectTools {
		effects[t] = true
	}
	w.policyMu.Lock()
	w.effectPolicies = effects
	w.allowlistDomains = doc.AllowlistDomains
	w.policyMu.Unlock()
	w.logger.Info("wall policy updated",
		"side_effect_tools", len(doc.SideEffectTools), "allowlist_domains", len(doc.AllowlistDomains))
}

// Policy returns a snapshot of the current runtime policy.
func (w *Wall) Policy() PolicyDoc {
	w.policyMu.RLock()
	defer w.policyMu.RUnlock()
	doc := PolicyDoc{
		AllowlistDomains: append([]string(nil), w.allowlistDomains...),
	}
	for t := range w.effectPolicies {
		doc.SideEffectTools = append(doc.SideEffectTools, t)
	}
	sort.Strings(doc.SideEffectTools)
	return doc
}

// Evaluate runs the plan through all tiers and returns the wall's verdict.
// A non-nil error means the audit record could not be written; the plan must
// not execute regardless of the tiers' outcomes.
func (w *Wall) Evaluate(ctx context.Context, req Request) (*models.WallVerdict, error) {
	verdict := w.evaluateTiers(req)

	rec := &audit.Record{
		Stage:    audit.StageWall,
		TurnID:   req.TurnID,
		UserID:   req.UserID,
		ToolName: req.Plan.ToolName,
		Args:     req.Plan.Args,
		Decision: verdict.Decision,
		Tier:     verdict.Tier,
		Code:     verdict.Code,
		Tiers:    verdict.Tiers,
	}
	if spec, err := w.reg.Lookup(req.Plan.ToolName); err == nil {
		rec.Risk = string(spec.Risk)
	}
	if err := w.auditLog.Append(rec); err != nil {
		metrics.WallDecisionsTotal.WithLabelValues(models.TierAudit, "error").Inc()
		return nil, domain.NewDomainError(domain.ErrAuditFailure, "audit write failed: "+err.Error())
	}
	verdict.Tiers = append(verdict.Tiers, models.TierOutcome{Tier: models.TierAudit, Outcome: "ok"})

	metrics.WallDecisionsTotal.WithLabelValues(verdict.Tier, string(verdict.Decision)).Inc()
	return verdict, nil
}

func (w *Wall) evaluateTiers(req Request) *models.WallVerdict {
	var tiers []models.TierOutcome
	pass := func(tier string) {
		tiers = append(tiers, models.TierOutcome{Tier: tier, Outcome: "pass"})
	}
	reject := func(tier, code, detail string) *models.WallVerdict {
		tiers = append(tiers, models.TierOutcome{Tier: tier, Outcome: "reject", Code: code, Detail: detail})
		w.logger.Info("wall rejected plan",
			"turn_id", req.TurnID, "tool", req.Plan.ToolName, "tier", tier, "code", code)
		return &models.WallVerdict{
			Decision: models.WallRejected,
			Tier:     tier,
			Code:     code,
			Detail:   detail,
			Tiers:    tiers,
		}
	}

	spec, err := w.reg.Lookup(req.Plan.ToolName)
	if err != nil {
		return reject(models.TierSchema, "unknown_tool", req.Plan.ToolName)
	}
	if err := w.reg.ValidateArgs(req.Plan.ToolName, req.Plan.Args); err != nil {
		return reject(models.TierSchema, "schema_violation", err.Error())
	}
	pass(models.TierSchema)

	if !w.limiter.Allow(req.UserID, spec.Risk) {
		return reject(models.TierPolicy, "rate_limited", "rate limit exceeded for tier "+string(spec.Risk))
	}
	if v := w.checkPolicy(spec, req.Plan.Args); v != nil {
		return reject(models.TierPolicy, v.RuleID, v.Detail)
	}
	pass(models.TierPolicy)

	if pattern, detail := checkLint(req.Plan.Args); pattern != "" {
		return reject(models.TierLint, pattern, detail)
	}
	pass(models.TierLint)

	verdict := w.decide(spec, req)
	verdict.Tiers = append(tiers, models.TierOutcome{
		Tier:    models.TierDecision,
		Outcome: string(verdict.Decision),
	})
	return verdict
}

// decide maps the tool's risk tier and the request's confirmation state to
// the wall decision. Needs* outcomes are prompts, not rejections.
func (w *Wall) decide(spec *models.ToolSpec, req Request) *models.WallVerdict {
	switch spec.Risk {
	case models.RiskSafe:
		return &models.WallVerdict{Decision: models.WallApproved, Tier: models.TierDecision}
	case models.RiskReview:
		w.logger.Info("dry-run preview for review-tier tool",
			"turn_id", req.TurnID, "tool", spec.Name, "args", audit.Redact(req.Plan.Args))
		return &models.WallVerdict{Decision: models.WallApproved, Tier: models.TierDecision, Detail: "approved with dry-run log"}
	case models.RiskConfirm:
		if req.Confirmed {
			return &models.WallVerdict{Decision: models.WallApproved, Tier: models.TierDecision}
		}
		return &models.WallVerdict{
			Decision: models.WallNeedsConfirmation,
			Tier:     models.TierDecision,
			Code:     "confirmation_required",
			Detail:   "tool " + spec.Name + " requires explicit confirmation",
		}
	case models.RiskOwnerRoot:
		if req.OwnerAuthorized && req.Confirmed {
			return &models.WallVerdict{Decision: models.WallApproved, Tier: models.TierDecision}
		}
		return &models.WallVerdict{
			Decision: models.WallNeedsOwnerAuth,
			Tier:     models.TierDecision,
			Code:     "owner_auth_required",
			Detail:   "tool " + spec.Name + " requires owner authentication and confirmation",
		}
	default:
		return &models.WallVerdict{
			Decision: models.WallRejected,
			Tier:     models.TierDecision,
			Code:     "unknown_risk_tier",
			Detail:   string(spec.Risk),
		}
	}
}
