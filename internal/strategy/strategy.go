// Package strategy provides the signal generators and the decision combiner.
//
// A Predictor consumes the shared digit history and emits a Prediction
// (direction + confidence). The Set runs every enabled predictor in
// registration order and blends their outputs into one weighted decision.
package strategy

import (
	"derivbot/internal/digits"
	"derivbot/internal/model"
)

// Predictor is the interface implemented by all signal generators.
// Predictors are pure functions of the history window: no hidden state.
type Predictor interface {
	// Name returns the unique name of the predictor.
	Name() string

	// Weight returns the fixed blending weight of this predictor.
	Weight() float64

	// Predict derives a directional signal from the digit history.
	Predict(h *digits.History) model.Prediction
}

// Weighted pairs a predictor's output with its blending weight for the
// combiner.
type Weighted struct {
	Name       string
	Weight     float64
	Prediction model.Prediction
}

// Set holds the enabled predictors in registration order. The order is
// load-bearing: it is the documented tie-break for the combiner.
type Set struct {
	predictors []Predictor
}

// NewSet creates an empty predictor set.
func NewSet() *Set {
	return &Set{}
}

// Register appends a predictor. Registration order decides ties.
func (s *Set) Register(p Predictor) {
	s.predictors = append(s.predictors, p)
}

// Names returns the registered predictor names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.predictors))
	for i, p := range s.predictors {
		names[i] = p.Name()
	}
	return names
}

// Evaluate runs every predictor against the history and combines the
// results. The individual outputs are returned alongside the final
// decision for UI display.
func (s *Set) Evaluate(h *digits.History) (model.Prediction, []Weighted) {
	outputs := make([]Weighted, 0, len(s.predictors))
	for _, p := range s.predictors {
		outputs = append(outputs, Weighted{
			Name:       p.Name(),
			Weight:     p.Weight(),
			Prediction: p.Predict(h),
		})
	}
	return Combine(outputs), outputs
}
