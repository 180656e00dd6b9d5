package models

// Adjustment is a runtime parameter change proposed by the steering controller.
type Adjustment struct {
	// Parameter names the parameter to adjust, e.g. "temperature" or "model".
	Parameter string `json:"parameter"`
	// Value is the proposed new value.
	Value any `json:"value"`
	// Reason explains why the adjustment was proposed.
	Reason string `json:"reason"`
}

// SteeringResult is the advisory analysis computed per task.
// It recommends delegation and parameter adjustments but never gates
// execution.
type SteeringResult struct {
	// ShouldDelegate is true when a specialized agent scored above threshold.
	ShouldDelegate bool `json:"should_delegate"`
	// RecommendedAgent names the best-scoring agent, if delegation is advised.
	RecommendedAgent string `json:"recommended_agent,omitempty"`
	// Adjustments lists all parameter adjustments whose rules matched.
	Adjustments []Adjustment `json:"adjustments,omitempty"`
	// Confidence is the controller's confidence in this analysis, in [0, 1].
	Confidence float64 `json:"confidence"`
	// Reasoning is a human-readable summary of how the result was derived.
	Reasoning string `json:"reasoning"`
}
