package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

// Planner produces exactly one well-formed ActionPlan per utterance. It
// attempts the primary strategy and falls transparently to the secondary;
// the fallback is logged but never user-visible.
type Planner struct {
	primary   ports.PlanStrategy
	secondary ports.PlanStrategy
	reg       *registry.Registry
	cfg       config.PlannerConfig
	logger    *slog.Logger
}

func New(primary, secondary ports.PlanStrategy, reg *registry.Registry, cfg config.PlannerConfig, logger *slog.Logger) *Planner {
	return &Planner{
		primary:   primary,
		secondary: secondary,
		reg:       reg,
		cfg:       cfg,
		logger:    logger,
	}
}

func (p *Planner) Plan(ctx context.Context, utterance string, bundle *models.ContextBundle) (*models.ActionPlan, error) {
	if utterance == "" {
		return nil, domain.NewDomainError(domain.ErrEmptyContent, "utterance is required")
	}

	deadline := time.Duration(p.cfg.DeadlineMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	plan, err := p.tryStrategy(ctx, p.primary, utterance, bundle)
	if err == nil {
		return plan, nil
	}
	if ctx.Err() != nil && p.secondary == nil {
		return nil, domain.NewDomainError(domain.ErrPlanningFailure, ctx.Err().Error())
	}
	if p.secondary == nil {
		return nil, err
	}

	metrics.PlannerFallbacksTotal.Inc()
	p.logger.Info("planner falling back to secondary strategy",
		"primary", p.primary.Name(), "secondary", p.secondary.Name(), "error", err)

	// the fallback gets a fresh deadline in case the primary burned it
	fbCtx, fbCancel := context.WithTimeout(context.WithoutCancel(ctx), deadline)
	defer fbCancel()

	plan, err2 := p.tryStrategy(fbCtx, p.secondary, utterance, bundle)
	if err2 != nil {
		return nil, domain.NewDomainError(domain.ErrPlanningFailure, "all strategies failed: "+err2.Error())
	}
	return plan, nil
}

func (p *Planner) tryStrategy(ctx context.Context, strategy ports.PlanStrategy, utterance string, bundle *models.ContextBundle) (*models.ActionPlan, error) {
	plan, err := strategy.Plan(ctx, utterance, bundle)
	if err != nil {
		metrics.PlannerRequestsTotal.WithLabelValues(strategy.Name(), "error").Inc()
		return nil, err
	}

	// unreachable under the grammar, checked defensively
	if _, err := p.reg.Lookup(plan.ToolName); err != nil {
		metrics.PlannerRequestsTotal.WithLabelValues(strategy.Name(), "unknown_tool").Inc()
		return nil, domain.NewDomainError(domain.ErrUnknownTool, plan.ToolName)
	}

	metrics.PlannerRequestsTotal.WithLabelValues(strategy.Name(), "ok").Inc()
	return plan, nil
}
