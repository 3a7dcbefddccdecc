package strategy

import "derivbot/internal/model"

// Combine blends weighted predictor outputs into one decision.
//
// Confidence is the weighted average of the contributors' confidences,
// with weights renormalized over whichever subset is present. The final
// signal is the direction with the greatest accumulated weight; on equal
// weight the direction of the FIRST contributor (registration order)
// wins. That tie-break is deliberate and stable, not an iteration
// artifact. No contributors yields confidence 0 and a NEUTRAL signal,
// which never trades.
func Combine(outputs []Weighted) model.Prediction {
	if len(outputs) == 0 {
		return model.Prediction{Signal: model.SignalNeutral, Confidence: 0}
	}

	var weightedConfidence, totalWeight float64
	for _, o := range outputs {
		weightedConfidence += o.Prediction.Confidence * o.Weight
		totalWeight += o.Weight
	}
	confidence := 0.0
	if totalWeight > 0 {
		confidence = weightedConfidence / totalWeight
	}

	// Accumulate weight per signal, tracking first-seen order for ties.
	type tally struct {
		weight float64
		order  int
	}
	tallies := make(map[model.Signal]*tally, 3)
	var aux model.Prediction
	for i, o := range outputs {
		sig := o.Prediction.Signal
		if t, ok := tallies[sig]; ok {
			t.weight += o.Weight
		} else {
			tallies[sig] = &tally{weight: o.Weight, order: i}
		}
		// Carry the gauge scores from whichever contributor reports them.
		if o.Prediction.TrendStrength > 0 && aux.TrendStrength == 0 {
			aux.TrendStrength = o.Prediction.TrendStrength
		}
		if o.Prediction.Volatility > 0 && aux.Volatility == 0 {
			aux.Volatility = o.Prediction.Volatility
		}
	}

	final := model.SignalNeutral
	best := tally{weight: -1, order: len(outputs)}
	for sig, t := range tallies {
		if t.weight > best.weight || (t.weight == best.weight && t.order < best.order) {
			best = *t
			final = sig
		}
	}

	return model.Prediction{
		Signal:        final,
		Confidence:    confidence,
		TrendStrength: aux.TrendStrength,
		Volatility:    aux.Volatility,
	}
}
