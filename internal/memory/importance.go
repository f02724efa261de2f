package memory

import (
	"github.com/longregen/cogito/internal/domain/models"
)

// importanceFor scores a new record: weighted sum of success, tool risk,
// novelty (distance to the nearest existing embedding), and a flat base.
// Clamped to [0,1].
func importanceFor(success bool, risk models.RiskTier, novelty float64) float32 {
	score := 0.2
	if success {
		score += 0.3
	}
	if risk.AtLeast(models.RiskReview) {
		score += 0.2
	}
	if novelty < 0 {
		novelty = 0
	}
	if novelty > 1 {
		novelty = 1
	}
	score += 0.3 * novelty

	if score > 1 {
		score = 1
	}
	return float32(score)
}
