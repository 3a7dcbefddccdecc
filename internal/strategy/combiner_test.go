package strategy

import (
	"math"
	"testing"

	"derivbot/internal/model"
)

func TestCombine_Empty(t *testing.T) {
	got := Combine(nil)
	if got.Signal != model.SignalNeutral {
		t.Errorf("Signal = %v, want NEUTRAL", got.Signal)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
	if got.Actionable() {
		t.Error("empty combination must not be actionable")
	}
}

func TestCombine_WeightedConfidence(t *testing.T) {
	// Pattern CALL@60 and trend PUT@80 with equal weights renormalized
	// to 0.5/0.5: confidence (60+80)/2 = 70, tie broken by the first
	// contributor (pattern), so the signal is CALL.
	outputs := []Weighted{
		{Name: "pattern", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalCall, Confidence: 60}},
		{Name: "trend", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalPut, Confidence: 80}},
	}

	got := Combine(outputs)
	if math.Abs(got.Confidence-70) > 1e-9 {
		t.Errorf("Confidence = %v, want 70", got.Confidence)
	}
	if got.Signal != model.SignalCall {
		t.Errorf("Signal = %v, want CALL (first-contributor tie-break)", got.Signal)
	}
}

func TestCombine_TieBreakIsOrderDependent(t *testing.T) {
	outputs := []Weighted{
		{Name: "trend", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalPut, Confidence: 80}},
		{Name: "pattern", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalCall, Confidence: 60}},
	}

	got := Combine(outputs)
	if got.Signal != model.SignalPut {
		t.Errorf("Signal = %v, want PUT when trend comes first", got.Signal)
	}
}

func TestCombine_MajorityWeightWins(t *testing.T) {
	outputs := []Weighted{
		{Name: "model", Weight: 0.4, Prediction: model.Prediction{Signal: model.SignalCall, Confidence: 85}},
		{Name: "pattern", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalPut, Confidence: 55}},
		{Name: "trend", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalPut, Confidence: 45}},
	}

	got := Combine(outputs)
	// PUT accumulates 0.6 vs CALL 0.4.
	if got.Signal != model.SignalPut {
		t.Errorf("Signal = %v, want PUT", got.Signal)
	}
	want := 85*0.4 + 55*0.3 + 45*0.3
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", got.Confidence, want)
	}
}

func TestCombine_SingleContributor(t *testing.T) {
	outputs := []Weighted{
		{Name: "model", Weight: 0.4, Prediction: model.Prediction{Signal: model.SignalCall, Confidence: 62}},
	}
	got := Combine(outputs)
	if got.Signal != model.SignalCall || math.Abs(got.Confidence-62) > 1e-9 {
		t.Errorf("got %+v, want CALL@62", got)
	}
}

func TestCombine_CarriesGaugeScores(t *testing.T) {
	outputs := []Weighted{
		{Name: "model", Weight: 0.4, Prediction: model.Prediction{
			Signal: model.SignalCall, Confidence: 70, TrendStrength: 0.8, Volatility: 0.3,
		}},
		{Name: "pattern", Weight: 0.3, Prediction: model.Prediction{Signal: model.SignalCall, Confidence: 55}},
	}
	got := Combine(outputs)
	if got.TrendStrength != 0.8 || got.Volatility != 0.3 {
		t.Errorf("gauges = (%v, %v), want (0.8, 0.3)", got.TrendStrength, got.Volatility)
	}
}
