package strategy

import (
	"derivbot/internal/digits"
	"derivbot/internal/model"
)

const trendWindow = 10

// Trend compares the most recent digit against the mean of the last 10.
// Above the mean reads bullish (CALL), below bearish (PUT), equal is
// NEUTRAL. Strength is the normalized distance from the mean, scaled by
// short-term momentum to produce the confidence.
type Trend struct{}

// NewTrend creates the trend predictor.
func NewTrend() *Trend {
	return &Trend{}
}

func (t *Trend) Name() string { return "trend" }

func (t *Trend) Weight() float64 { return 0.3 }

func (t *Trend) Predict(h *digits.History) model.Prediction {
	recent := h.Recent(trendWindow)
	if len(recent) == 0 {
		return model.Prediction{Signal: model.SignalNeutral, Confidence: 0}
	}

	sum := 0
	for _, d := range recent {
		sum += d
	}
	mean := float64(sum) / float64(len(recent))
	last := float64(recent[0])

	signal := model.SignalNeutral
	strength := 0.5
	switch {
	case last > mean:
		signal = model.SignalCall
		strength = (last - mean) / 9
	case last < mean:
		signal = model.SignalPut
		strength = (mean - last) / 9
	}
	if strength > 1 {
		strength = 1
	}

	confidence := strength * Momentum(h) * 100

	return model.Prediction{
		Signal:        signal,
		Confidence:    confidence,
		TrendStrength: strength,
	}
}
