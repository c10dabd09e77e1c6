// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package artifact

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSchema indicates the supplied features do not satisfy the artifact's
// declared feature contract.
var ErrSchema = errors.New("feature schema mismatch")

// Features is the named feature set presented to an artifact for inference.
// Categorical context arrives pre-encoded as indicator entries, e.g.
// "skill_category=technical" -> 1.
type Features map[string]float64

// Model is the portable, serialized form of the trained demand classifier:
// a multinomial logistic model exported as plain weight matrices. The
// scoring path treats the training ecosystem as opaque and consumes only
// this interchange form.
type Model struct {
	// FeatureNames is the ordered feature schema. Names containing '='
	// are one-hot indicator features and default to 0 when absent; all
	// other names are required.
	FeatureNames []string

	// Classes orders the rows of Weights and Intercepts.
	Classes []string

	// Weights is a len(Classes) x len(FeatureNames) matrix.
	Weights [][]float64

	// Intercepts has one bias per class.
	Intercepts []float64
}

// Validate checks the internal dimensional consistency of the model.
func (m *Model) Validate() error {
	if len(m.Classes) < 2 {
		return fmt.Errorf("model must have at least 2 classes, got %d", len(m.Classes))
	}
	if len(m.FeatureNames) == 0 {
		return errors.New("model has empty feature schema")
	}
	if len(m.Weights) != len(m.Classes) || len(m.Intercepts) != len(m.Classes) {
		return fmt.Errorf("weight rows (%d) and intercepts (%d) must match class count (%d)",
			len(m.Weights), len(m.Intercepts), len(m.Classes))
	}
	for i, row := range m.Weights {
		if len(row) != len(m.FeatureNames) {
			return fmt.Errorf("weight row %d has %d columns, schema has %d features",
				i, len(row), len(m.FeatureNames))
		}
	}
	return nil
}

// Prediction is the raw classifier output for one feature set.
type Prediction struct {
	// Class is the argmax label.
	Class string

	// Probability is the softmax probability of Class.
	Probability float64

	// Margin is the probability gap between the top two classes.
	Margin float64

	// Probabilities holds the full distribution keyed by class.
	Probabilities map[string]float64
}

// Predict runs inference over the features. It fails with ErrSchema when a
// required feature is missing, and never mutates the model.
func (m *Model) Predict(f Features) (*Prediction, error) {
	x, err := m.vectorize(f)
	if err != nil {
		return nil, err
	}

	nClasses := len(m.Classes)
	nFeatures := len(m.FeatureNames)

	xv := mat.NewVecDense(nFeatures, x)
	logits := make([]float64, nClasses)
	for c := 0; c < nClasses; c++ {
		wv := mat.NewVecDense(nFeatures, m.Weights[c])
		logits[c] = mat.Dot(wv, xv) + m.Intercepts[c]
	}

	probs := softmax(logits)

	best, second := 0, -1
	for c := 1; c < nClasses; c++ {
		switch {
		case probs[c] > probs[best]:
			second = best
			best = c
		case second < 0 || probs[c] > probs[second]:
			second = c
		}
	}

	dist := make(map[string]float64, nClasses)
	for c, class := range m.Classes {
		dist[class] = probs[c]
	}

	p := &Prediction{
		Class:         m.Classes[best],
		Probability:   probs[best],
		Probabilities: dist,
	}
	if second >= 0 {
		p.Margin = probs[best] - probs[second]
	}
	return p, nil
}

// vectorize maps named features onto the model's ordered schema.
func (m *Model) vectorize(f Features) ([]float64, error) {
	x := make([]float64, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		v, ok := f[name]
		if !ok {
			if strings.Contains(name, "=") {
				continue // absent indicator features are 0
			}
			return nil, fmt.Errorf("%w: required feature %q missing", ErrSchema, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: feature %q is not finite", ErrSchema, name)
		}
		x[i] = v
	}
	return x, nil
}

// FeatureImportance is one entry of the artifact's importance ranking.
type FeatureImportance struct {
	Name   string
	Weight float64
	Value  float64
	// Contribution is Weight*Value toward the class logit.
	Contribution float64
}

// TopFeatures ranks the features by absolute contribution to the given
// class, largest first. Used by the explanation engine.
func (m *Model) TopFeatures(class string, f Features, k int) ([]FeatureImportance, error) {
	row := -1
	for c, name := range m.Classes {
		if name == class {
			row = c
			break
		}
	}
	if row < 0 {
		return nil, fmt.Errorf("unknown class %q", class)
	}

	x, err := m.vectorize(f)
	if err != nil {
		return nil, err
	}

	ranked := make([]FeatureImportance, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		ranked[i] = FeatureImportance{
			Name:         name,
			Weight:       m.Weights[row][i],
			Value:        x[i],
			Contribution: m.Weights[row][i] * x[i],
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Contribution) > math.Abs(ranked[j].Contribution)
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// softmax converts logits to a probability distribution. Shifting by the
// max keeps the exponentials stable.
func softmax(logits []float64) []float64 {
	shifted := make([]float64, len(logits))
	maxLogit := floats.Max(logits)
	for i, l := range logits {
		shifted[i] = math.Exp(l - maxLogit)
	}
	total := floats.Sum(shifted)
	for i := range shifted {
		shifted[i] /= total
	}
	return shifted
}
