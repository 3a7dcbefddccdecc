package strategy

import (
	"derivbot/internal/digits"
	"derivbot/internal/model"
)

const patternWindow = 20

// Pattern counts repeating, ascending and descending runs in the most
// recent 20 digits. Confidence is the dominant pattern's share of all
// observed patterns; 50 when no pattern has appeared yet.
type Pattern struct{}

// NewPattern creates the pattern predictor.
func NewPattern() *Pattern {
	return &Pattern{}
}

func (p *Pattern) Name() string { return "pattern" }

func (p *Pattern) Weight() float64 { return 0.3 }

func (p *Pattern) Predict(h *digits.History) model.Prediction {
	recent := h.Recent(patternWindow)

	var repeating, ascending, descending int
	for i := 1; i < len(recent); i++ {
		if recent[i] == recent[i-1] {
			repeating++
		}
	}
	for i := 2; i < len(recent); i++ {
		if recent[i] > recent[i-1] && recent[i-1] > recent[i-2] {
			ascending++
		}
		if recent[i] < recent[i-1] && recent[i-1] < recent[i-2] {
			descending++
		}
	}

	total := repeating + ascending + descending
	confidence := 50.0
	if total > 0 {
		dominant := repeating
		if ascending > dominant {
			dominant = ascending
		}
		if descending > dominant {
			dominant = descending
		}
		confidence = float64(dominant) / float64(total) * 100
	}

	signal := model.SignalPut
	if confidence > 50 {
		signal = model.SignalCall
	}

	return model.Prediction{Signal: signal, Confidence: confidence}
}
