package pipeline

import "github.com/longregen/cogito/internal/domain/models"

// refusalReasons maps internal wall codes to the short human-facing phrasing
// used in refusal replies. Unknown codes fall back to a generic line.
var refusalReasons = map[string]string{
	"rate_limited":           "you've asked for that too many times in a row; give it a moment",
	"fs_outside_root":        "that path is outside the area I'm allowed to touch",
	"fs_denied_extension":    "I can't work with that kind of file",
	"fs_content_too_large":   "that content is larger than I'm allowed to write",
	"domain_not_allowlisted": "that site isn't on my allowed list",
	"url_unparseable":        "I couldn't make sense of that address",
	"side_effect_ungated":    "that action isn't enabled on this system",
	"schema_violation":       "the request didn't come together correctly",
	"unknown_tool":           "I don't have a tool for that",
	"sql_mutation":           "I can only run read-only queries",
	"unknown_risk_tier":      "that action isn't configured correctly",
}

// lint pattern names all map to the same phrasing.
var lintRefusal = "that command contains something I'm not allowed to run"

func refusalFor(verdict *models.WallVerdict) string {
	reason, ok := refusalReasons[verdict.Code]
	if !ok {
		if verdict.Tier == models.TierLint {
			reason = lintRefusal
		} else {
			reason = "it didn't pass my safety checks"
		}
	}
	return "I can't do that: " + reason + "."
}
