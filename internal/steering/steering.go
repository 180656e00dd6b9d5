// Package steering scores task-to-agent affinity and proposes runtime
// parameter adjustments. Its output is advisory: the orchestrator attaches
// it to results but never gates execution on it.
package steering

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tandem-cli/tandem/pkg/models"
)

// mainAgent is the synthetic baseline agent. Delegation is only advised when
// a real agent outscores it.
const mainAgent = "main"

const (
	baseMainScore            = 0.5
	featureWeight            = 0.2
	defaultDelegateThreshold = 0.7
)

// analysisCacheSize bounds the memoized analysis cache.
const analysisCacheSize = 256

// Controller analyzes tasks against the known agent pool and tracks rolling
// per-agent performance.
type Controller struct {
	mu sync.RWMutex
	// keywords maps agent names to their affinity keyword lists.
	keywords map[string][]string
	// generation increments whenever the agent set changes, invalidating
	// cached analyses.
	generation uint64
	// outcomes is the rolling window of recent dispatch outcomes.
	outcomes []bool
	// metrics holds smoothed per-agent performance values.
	metrics map[string]*PerformanceMetrics
	// delegateThreshold is the score a specialized agent must beat before
	// delegation is advised.
	delegateThreshold float64

	cache *lru.Cache[string, models.SteeringResult]
}

// PerformanceMetrics are exponentially smoothed per-agent values.
type PerformanceMetrics struct {
	// AverageResponseTime is smoothed with 0.9/0.1 weighting, in seconds.
	AverageResponseTime float64
	// ErrorRate is smoothed with 0.95/0.05 weighting.
	ErrorRate float64
	// QualityScore is nudged per outcome and clamped to [0, 1].
	QualityScore float64
	// Samples counts recorded outcomes.
	Samples int
}

// outcomeWindow is the number of recent outcomes used for the success rate.
const outcomeWindow = 20

// defaultSuccessRate is assumed until outcomes have been recorded.
const defaultSuccessRate = 0.8

// NewController creates a Controller with no known agents.
func NewController() *Controller {
	cache, _ := lru.New[string, models.SteeringResult](analysisCacheSize)
	return &Controller{
		keywords:          make(map[string][]string),
		metrics:           make(map[string]*PerformanceMetrics),
		delegateThreshold: defaultDelegateThreshold,
		cache:             cache,
	}
}

// SetDelegationThreshold overrides the delegation threshold. Values outside
// (0, 1] are ignored. Cached analyses are invalidated.
func (c *Controller) SetDelegationThreshold(v float64) {
	if v <= 0 || v > 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegateThreshold = v
	c.generation++
}

// DelegationThreshold returns the threshold currently in effect.
func (c *Controller) DelegationThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delegateThreshold
}

// SetAgentKeywords replaces the keyword list for one agent. Keywords are
// matched case-insensitively as substrings of the task prompt.
func (c *Controller) SetAgentKeywords(agent string, keywords []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keywords[agent] = keywords
	c.generation++
}

// RemoveAgent forgets an agent's keywords.
func (c *Controller) RemoveAgent(agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keywords, agent)
	c.generation++
}

// AnalyzeTask extracts features from the task prompt, scores every known
// agent against the synthetic main agent, and emits all matching parameter
// adjustments. Confidence is always within [0, 1]. Identical prompts against
// an unchanged agent set are served from cache.
func (c *Controller) AnalyzeTask(task *models.Task) models.SteeringResult {
	if task == nil || task.Prompt == "" {
		return models.SteeringResult{
			Confidence: 0,
			Reasoning:  "empty task prompt, nothing to analyze",
		}
	}

	c.mu.RLock()
	threshold := c.delegateThreshold
	key := fmt.Sprintf("%d|%s", c.generation, task.Prompt)
	c.mu.RUnlock()

	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	features := c.extractFeatures(task.Prompt)
	bestAgent, bestScore := c.scoreAgents(features)
	adjustments := proposeAdjustments(task.Prompt, len(features))

	shouldDelegate := bestScore > threshold && bestAgent != mainAgent

	recommended := ""
	if shouldDelegate {
		recommended = bestAgent
	}

	confidence := c.confidence(bestScore, len(features), len(adjustments))

	result := models.SteeringResult{
		ShouldDelegate:   shouldDelegate,
		RecommendedAgent: recommended,
		Adjustments:      adjustments,
		Confidence:       confidence,
		Reasoning: fmt.Sprintf("best agent %q scored %.2f across %d features; %d adjustments proposed",
			bestAgent, bestScore, len(features), len(adjustments)),
	}

	c.cache.Add(key, result)
	return result
}

// extractFeatures derives "agent:keyword" tags for every keyword hit plus
// structural tags from phrasing markers.
func (c *Controller) extractFeatures(prompt string) []string {
	lower := strings.ToLower(prompt)

	c.mu.RLock()
	agents := make([]string, 0, len(c.keywords))
	for name := range c.keywords {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	var features []string
	for _, agent := range agents {
		for _, kw := range c.keywords[agent] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				features = append(features, agent+":"+kw)
			}
		}
	}
	c.mu.RUnlock()

	if strings.Contains(prompt, "?") {
		features = append(features, "question")
	}
	if strings.HasPrefix(lower, "please ") || strings.Contains(lower, "can you") || strings.Contains(lower, "could you") {
		features = append(features, "request")
	}
	if strings.Contains(lower, "how to") || strings.Contains(lower, "how do") {
		features = append(features, "how-to")
	}

	return features
}

// scoreAgents initializes every known agent to 0 and the synthetic main
// agent to 0.5, then adds 0.2 per feature tagged to an agent. Agents are
// evaluated in sorted name order and ties keep the earlier name, so the
// result is deterministic.
func (c *Controller) scoreAgents(features []string) (string, float64) {
	c.mu.RLock()
	scores := map[string]float64{mainAgent: baseMainScore}
	names := make([]string, 0, len(c.keywords)+1)
	for name := range c.keywords {
		scores[name] = 0
		names = append(names, name)
	}
	c.mu.RUnlock()

	for _, f := range features {
		agent, _, ok := strings.Cut(f, ":")
		if !ok {
			continue // structural tag
		}
		if _, known := scores[agent]; known {
			scores[agent] += featureWeight
		}
	}

	names = append(names, mainAgent)
	sort.Strings(names)

	bestAgent, bestScore := "", -1.0
	for _, name := range names {
		if scores[name] > bestScore {
			bestAgent, bestScore = name, scores[name]
		}
	}
	return bestAgent, bestScore
}

// confidence combines the agent score, feature and adjustment counts, and
// the recent success rate, clamped to [0, 1].
func (c *Controller) confidence(bestScore float64, featureCount, adjustmentCount int) float64 {
	featureBonus := 0.05 * float64(featureCount)
	if featureBonus > 0.2 {
		featureBonus = 0.2
	}
	adjustmentBonus := 0.03 * float64(adjustmentCount)
	if adjustmentBonus > 0.1 {
		adjustmentBonus = 0.1
	}

	conf := 0.5 + 0.3*bestScore + featureBonus + adjustmentBonus + 0.1*c.recentSuccessRate()
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// recentSuccessRate returns the success fraction over the rolling outcome
// window, or the default when no outcomes have been recorded.
func (c *Controller) recentSuccessRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.outcomes) == 0 {
		return defaultSuccessRate
	}

	successes := 0
	for _, ok := range c.outcomes {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(len(c.outcomes))
}
