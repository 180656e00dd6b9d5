package steering

import "time"

// Smoothing constants for rolling performance metrics.
const (
	responseTimeDecay = 0.9
	errorRateDecay    = 0.95
	qualityUpNudge    = 0.01
	qualityDownNudge  = 0.02
)

// RecordOutcome updates the rolling outcome window and the named agent's
// smoothed performance metrics after an externally reported dispatch
// outcome.
func (c *Controller) RecordOutcome(agent string, success bool, responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes = append(c.outcomes, success)
	if len(c.outcomes) > outcomeWindow {
		c.outcomes = c.outcomes[len(c.outcomes)-outcomeWindow:]
	}

	m, ok := c.metrics[agent]
	if !ok {
		m = &PerformanceMetrics{QualityScore: 0.5}
		c.metrics[agent] = m
	}

	seconds := responseTime.Seconds()
	if m.Samples == 0 {
		m.AverageResponseTime = seconds
	} else {
		m.AverageResponseTime = responseTimeDecay*m.AverageResponseTime + (1-responseTimeDecay)*seconds
	}

	errSample := 0.0
	if !success {
		errSample = 1.0
	}
	m.ErrorRate = errorRateDecay*m.ErrorRate + (1-errorRateDecay)*errSample

	if success {
		m.QualityScore += qualityUpNudge
	} else {
		m.QualityScore -= qualityDownNudge
	}
	if m.QualityScore < 0 {
		m.QualityScore = 0
	}
	if m.QualityScore > 1 {
		m.QualityScore = 1
	}

	m.Samples++
}

// Metrics returns a copy of the named agent's performance metrics.
// The second return is false if no outcomes have been recorded for it.
func (c *Controller) Metrics(agent string) (PerformanceMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[agent]
	if !ok {
		return PerformanceMetrics{}, false
	}
	return *m, true
}
