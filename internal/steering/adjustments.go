package steering

import (
	"strings"

	"github.com/tandem-cli/tandem/pkg/models"
)

// adjustmentRule is one declarative entry in the adjustment table. Rules are
// evaluated independently; every rule that matches emits its adjustment.
type adjustmentRule struct {
	name    string
	matches func(prompt string, featureCount int) bool
	build   func() models.Adjustment
}

func containsAny(prompt string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(prompt, w) {
			return true
		}
	}
	return false
}

// adjustmentRules is the declarative adjustment table.
var adjustmentRules = []adjustmentRule{
	{
		name: "coding-intent",
		matches: func(prompt string, _ int) bool {
			return containsAny(prompt, "code", "debug", "function", "compile", "refactor")
		},
		build: func() models.Adjustment {
			return models.Adjustment{
				Parameter: "temperature",
				Value:     0.1,
				Reason:    "coding tasks benefit from low temperature",
			}
		},
	},
	{
		name: "creative-intent",
		matches: func(prompt string, _ int) bool {
			return containsAny(prompt, "story", "poem", "creative", "imagine", "brainstorm")
		},
		build: func() models.Adjustment {
			return models.Adjustment{
				Parameter: "temperature",
				Value:     0.8,
				Reason:    "creative tasks benefit from high temperature",
			}
		},
	},
	{
		name: "high-feature-count",
		matches: func(_ string, featureCount int) bool {
			return featureCount > 5
		},
		build: func() models.Adjustment {
			return models.Adjustment{
				Parameter: "model",
				Value:     "higher-capacity",
				Reason:    "many matched features suggest a complex task",
			}
		},
	},
	{
		name: "analysis-intent",
		matches: func(prompt string, _ int) bool {
			return containsAny(prompt, "analyze", "analysis", "investigate", "examine")
		},
		build: func() models.Adjustment {
			return models.Adjustment{
				Parameter: "context_window",
				Value:     "extended",
				Reason:    "analysis tasks benefit from extended context",
			}
		},
	},
}

// proposeAdjustments evaluates every rule against the prompt and feature
// count and returns all adjustments whose rules matched.
func proposeAdjustments(prompt string, featureCount int) []models.Adjustment {
	lower := strings.ToLower(prompt)

	var out []models.Adjustment
	for _, rule := range adjustmentRules {
		if rule.matches(lower, featureCount) {
			out = append(out, rule.build())
		}
	}
	return out
}
