package strategy

import (
	"math"

	"derivbot/internal/digits"
	"derivbot/internal/model"
)

const modelWindow = 10

// modelWeights are fixed coefficients over the normalized input window.
// The scorer is a deterministic placeholder for a trained network: same
// input window, same probability out, no training loop.
var modelWeights = [modelWindow]float64{
	0.42, -0.31, 0.17, 0.08, -0.23, 0.11, -0.05, 0.29, -0.14, 0.06,
}

const modelBias = -0.08

// Model scores the most recent 10 digits into a probability in [0,1],
// scaled x100 for confidence: CALL above 50, PUT otherwise. It also
// reports the trend-strength and volatility gauges computed over the
// last 20 digits.
type Model struct{}

// NewModel creates the placeholder predictive model.
func NewModel() *Model {
	return &Model{}
}

func (m *Model) Name() string { return "model" }

func (m *Model) Weight() float64 { return 0.4 }

func (m *Model) Predict(h *digits.History) model.Prediction {
	confidence := m.Score(h) * 100

	signal := model.SignalPut
	if confidence > 50 {
		signal = model.SignalCall
	}

	return model.Prediction{
		Signal:        signal,
		Confidence:    confidence,
		TrendStrength: directionalBias(h),
		Volatility:    volatility(h),
	}
}

// Score maps the most recent 10 digits to a probability in [0,1].
func (m *Model) Score(h *digits.History) float64 {
	recent := h.Recent(modelWindow)

	z := modelBias
	for i, d := range recent {
		// Center each digit around the 0-9 midpoint before weighting.
		z += modelWeights[i] * (float64(d) - 4.5) / 4.5
	}
	return 1 / (1 + math.Exp(-z))
}

// directionalBias measures how one-sided the digit moves were over the
// last 20 digits: dominant move count over total moves, 0.5 when flat.
func directionalBias(h *digits.History) float64 {
	recent := h.Recent(20)

	var up, down int
	for i := 1; i < len(recent); i++ {
		if recent[i] > recent[i-1] {
			up++
		}
		if recent[i] < recent[i-1] {
			down++
		}
	}
	total := up + down
	if total == 0 {
		return 0.5
	}
	dominant := up
	if down > dominant {
		dominant = down
	}
	return float64(dominant) / float64(total)
}

// volatility sums absolute digit-to-digit changes over the last 20
// digits, normalized to [0,1].
func volatility(h *digits.History) float64 {
	recent := h.Recent(20)
	if len(recent) < 2 {
		return 0
	}

	changes := 0
	for i := 1; i < len(recent); i++ {
		d := recent[i] - recent[i-1]
		if d < 0 {
			d = -d
		}
		changes += d
	}
	v := float64(changes) / (float64(len(recent)) * 9)
	if v > 1 {
		v = 1
	}
	return v
}
