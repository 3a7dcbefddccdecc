package model

// Signal is a directional trade recommendation for a digit contract.
type Signal string

const (
	SignalCall    Signal = "CALL"
	SignalPut     Signal = "PUT"
	SignalNeutral Signal = "NEUTRAL"
)

// Prediction is the output of a single signal generator (or of the
// combiner): a direction plus a self-reported confidence in [0,100].
// TrendStrength and Volatility are auxiliary scores in [0,1] used by the
// UI gauges; generators that do not compute them leave them zero.
type Prediction struct {
	Signal        Signal  `json:"signal"`
	Confidence    float64 `json:"confidence"` // percent, 0..100
	TrendStrength float64 `json:"trend_strength,omitempty"`
	Volatility    float64 `json:"volatility,omitempty"`
}

// Actionable reports whether the prediction carries a tradable direction.
func (p Prediction) Actionable() bool {
	return p.Signal == SignalCall || p.Signal == SignalPut
}
