package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

// researchTools produce textual answers whose claims must be entailed by
// their citations. Memory recall counts: its claims cite the matched
// records.
var researchTools = map[string]bool{
	"web_search":    true,
	"recall_memory": true,
}

// Verifier gates replies after execution: tool-specific post-conditions
// first, then claim/citation entailment for research tools. It degrades to
// keyword overlap when the entailment capability is down; a degraded check
// can warn but never pass silently.
type Verifier struct {
	reg        *registry.Registry
	entailment ports.EntailmentService
	citations  ports.CitationStore
	cfg        config.VerifierConfig
	logger     *slog.Logger
}

func New(reg *registry.Registry, entailment ports.EntailmentService, citations ports.CitationStore, cfg config.VerifierConfig, logger *slog.Logger) *Verifier {
	return &Verifier{
		reg:        reg,
		entailment: entailment,
		citations:  citations,
		cfg:        cfg,
		logger:     logger,
	}
}

// Check produces the verdict for one executed plan.
func (v *Verifier) Check(ctx context.Context, plan *models.ActionPlan, result *models.ExecutionResult) *models.Verdict {
	verdict := v.check(ctx, plan, result)
	metrics.VerifierVerdictsTotal.WithLabelValues(string(verdict.Status)).Inc()
	return verdict
}

func (v *Verifier) check(ctx context.Context, plan *models.ActionPlan, result *models.ExecutionResult) *models.Verdict {
	if !result.Success {
		return models.BlockVerdict(models.ReasonExecutionFailed)
	}

	spec, err := v.reg.Lookup(plan.ToolName)
	if err != nil {
		return models.BlockVerdict(models.ReasonPostConditionFailed)
	}

	var reasons []string
	status := models.VerdictPass

	if cond, ok := postConditions[spec.PostConditionID]; ok && spec.PostConditionID != "" {
		if condErr := cond(plan, result); condErr != nil {
			v.logger.Info("post-condition failed",
				"tool", plan.ToolName, "condition", spec.PostConditionID, "error", condErr)
			if spec.Risk.AtLeast(models.RiskReview) {
				return models.BlockVerdict(models.ReasonPostConditionFailed)
			}
			status = models.VerdictWarn
			reasons = append(reasons, models.ReasonPostConditionFailed)
		}
	}

	verdict := &models.Verdict{Status: status, Reasons: reasons}
	if researchTools[plan.ToolName] {
		verdict = v.checkClaims(ctx, result, verdict)
	}
	return verdict
}

// checkClaims scores each claim in the reply against the turn's citations
// and folds coverage into the verdict.
func (v *Verifier) checkClaims(ctx context.Context, result *models.ExecutionResult, verdict *models.Verdict) *models.Verdict {
	claims := splitClaims(result.Output)
	if len(claims) == 0 {
		return verdict
	}
	if len(result.Citations) == 0 {
		return models.BlockVerdict(models.ReasonNoCitations)
	}

	evidence := v.loadEvidence(result.Citations)
	scored, degraded := v.scoreClaims(ctx, claims, evidence, result.Citations)

	supported := 0
	for _, c := range scored {
		if c.Supported {
			supported++
		}
	}
	coverage := float64(supported) / float64(len(scored))

	verdict.Claims = scored
	verdict.Coverage = coverage
	verdict.Evidence = result.Citations

	if coverage < v.cfg.CoverageBlock {
		verdict.Status = models.VerdictBlock
		verdict.Reasons = append(verdict.Reasons, models.ReasonCoverageLow)
		return verdict
	}
	if coverage < v.cfg.CoverageWarn {
		verdict.Status = models.VerdictWarn
		verdict.Reasons = append(verdict.Reasons, models.ReasonCoverageLow)
	}
	if degraded {
		verdict.Status = models.VerdictWarn
		verdict.Reasons = append(verdict.Reasons, models.ReasonVerifierDegraded)
	}
	return verdict
}

// loadEvidence resolves citation refs to their stored text. Unresolvable
// refs yield empty strings and score zero against every claim.
func (v *Verifier) loadEvidence(refs []models.CitationRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		if v.citations == nil {
			continue
		}
		content, err := v.citations.Get(ref.ContentHash)
		if err != nil {
			v.logger.Warn("citation not resolvable", "hash", ref.ContentHash, "error", err)
			continue
		}
		out[i] = string(content)
	}
	return out
}

// scoreClaims batches (evidence, claim) pairs through the entailment service
// and takes each claim's best score. A claim scoring exactly at the floor is
// supported. On entailment failure the whole pass falls back to keyword
// overlap and the verdict is marked degraded.
func (v *Verifier) scoreClaims(ctx context.Context, claims []string, evidence []string, refs []models.CitationRef) ([]models.Claim, bool) {
	pairs := make([]ports.EntailmentPair, 0, len(claims)*len(evidence))
	for _, claim := range claims {
		for _, ev := range evidence {
			pairs = append(pairs, ports.EntailmentPair{Premise: ev, Hypothesis: claim})
		}
	}

	scores, err := v.scoreBatches(ctx, pairs)
	degraded := false
	if err != nil {
		v.logger.Warn("entailment unavailable, falling back to keyword overlap", "error", err)
		metrics.EntailmentBatchesTotal.WithLabelValues("keyword").Inc()
		degraded = true
		scores = make([]float64, len(pairs))
		for i, p := range pairs {
			scores[i] = keywordOverlap(p.Premise, p.Hypothesis)
		}
	}

	out := make([]models.Claim, len(claims))
	for i, claim := range claims {
		best := 0.0
		bestIdx := -1
		for j := range evidence {
			s := scores[i*len(evidence)+j]
			if s > best || bestIdx == -1 {
				best = s
				bestIdx = j
			}
		}
		c := models.Claim{Text: claim, Score: best, Supported: best >= v.cfg.EntailmentFloor}
		if bestIdx >= 0 && bestIdx < len(refs) {
			ref := refs[bestIdx]
			c.Evidence = &ref
		}
		out[i] = c
	}
	return out, degraded
}

func (v *Verifier) scoreBatches(ctx context.Context, pairs []ports.EntailmentPair) ([]float64, error) {
	if v.entailment == nil {
		return nil, domain.ErrVerifierUnavailable
	}
	batchSize := v.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	out := make([]float64, 0, len(pairs))
	for start := 0; start < len(pairs); start += batchSize {
		end := min(start+batchSize, len(pairs))
		scores, err := v.entailment.ScoreBatch(ctx, pairs[start:end])
		if err != nil {
			return nil, err
		}
		if len(scores) != end-start {
			return nil, fmt.Errorf("entailment batch returned %d scores for %d pairs", len(scores), end-start)
		}
		metrics.EntailmentBatchesTotal.WithLabelValues("nli").Inc()
		out = append(out, scores...)
	}
	return out, nil
}
