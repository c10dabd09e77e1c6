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

	"gonum.org/v1/gonum/mat"
)

// ErrImbalancedData is raised by the offline training path when a class is
// absent or critically under-represented in the training set. It is never
// surfaced to the scoring path.
var ErrImbalancedData = errors.New("imbalanced training data")

// Sample is one labeled training example.
type Sample struct {
	Features Features
	Label    string
}

// TrainConfig controls the offline trainer.
type TrainConfig struct {
	// Classes is the canonical label set, in output order.
	Classes []string

	// ModelVersion is the semantic version recorded on the artifact
	// ("major.minor").
	ModelVersion string

	// LearningRate for batch gradient descent. Default 0.1.
	LearningRate float64

	// Epochs of full-batch descent. Default 500.
	Epochs int

	// MinClassShare is the minimum fraction of samples any class must
	// hold. Default 0.05.
	MinClassShare float64
}

// applyDefaults fills zero values.
func (c *TrainConfig) applyDefaults() {
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.Epochs == 0 {
		c.Epochs = 500
	}
	if c.MinClassShare == 0 {
		c.MinClassShare = 0.05
	}
}

// Train fits a multinomial logistic model on the samples and returns the
// portable artifact with its training metrics.
//
// The feature schema is the sorted union of all feature names observed in
// the samples, so the artifact's contract reflects exactly what it was
// trained on.
func Train(cfg TrainConfig, samples []Sample) (*Model, map[string]float64, error) {
	cfg.applyDefaults()

	if len(cfg.Classes) < 2 {
		return nil, nil, fmt.Errorf("training requires at least 2 classes, got %d", len(cfg.Classes))
	}
	if len(samples) == 0 {
		return nil, nil, errors.New("training requires at least one sample")
	}

	if err := checkBalance(cfg, samples); err != nil {
		return nil, nil, err
	}

	features := collectFeatureNames(samples)
	classIndex := make(map[string]int, len(cfg.Classes))
	for i, class := range cfg.Classes {
		classIndex[class] = i
	}

	n, d, c := len(samples), len(features), len(cfg.Classes)

	// Design matrix and one-hot labels.
	x := mat.NewDense(n, d, nil)
	y := mat.NewDense(n, c, nil)
	for i, sample := range samples {
		for j, name := range features {
			if v, ok := sample.Features[name]; ok && !math.IsNaN(v) {
				x.Set(i, j, v)
			}
		}
		ci, ok := classIndex[sample.Label]
		if !ok {
			return nil, nil, fmt.Errorf("sample %d has unknown label %q", i, sample.Label)
		}
		y.Set(i, ci, 1)
	}

	w := mat.NewDense(c, d, nil)
	b := make([]float64, c)
	var loss float64

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		// Logits = X Wᵀ, then row-wise softmax.
		var logits mat.Dense
		logits.Mul(x, w.T())
		probs := mat.NewDense(n, c, nil)
		loss = 0
		for i := 0; i < n; i++ {
			row := make([]float64, c)
			for j := 0; j < c; j++ {
				row[j] = logits.At(i, j) + b[j]
			}
			row = softmax(row)
			probs.SetRow(i, row)
			for j := 0; j < c; j++ {
				if y.At(i, j) == 1 {
					loss -= math.Log(math.Max(row[j], 1e-12))
				}
			}
		}
		loss /= float64(n)

		// Gradient: (P - Y)ᵀ X / n.
		var diff mat.Dense
		diff.Sub(probs, y)
		var grad mat.Dense
		grad.Mul(diff.T(), x)
		grad.Scale(cfg.LearningRate/float64(n), &grad)
		w.Sub(w, &grad)

		for j := 0; j < c; j++ {
			var biasGrad float64
			for i := 0; i < n; i++ {
				biasGrad += diff.At(i, j)
			}
			b[j] -= cfg.LearningRate * biasGrad / float64(n)
		}
	}

	model := &Model{
		FeatureNames: features,
		Classes:      cfg.Classes,
		Weights:      denseRows(w),
		Intercepts:   b,
	}
	if err := model.Validate(); err != nil {
		return nil, nil, fmt.Errorf("trained model invalid: %w", err)
	}

	metrics := map[string]float64{
		"loss":     loss,
		"accuracy": accuracy(model, samples),
		"samples":  float64(n),
		"features": float64(d),
	}
	return model, metrics, nil
}

// checkBalance rejects training sets with absent or starved classes.
func checkBalance(cfg TrainConfig, samples []Sample) error {
	counts := make(map[string]int, len(cfg.Classes))
	for _, s := range samples {
		counts[s.Label]++
	}

	total := float64(len(samples))
	for _, class := range cfg.Classes {
		count := counts[class]
		if count == 0 {
			return fmt.Errorf("%w: class %q has no samples", ErrImbalancedData, class)
		}
		if share := float64(count) / total; share < cfg.MinClassShare {
			return fmt.Errorf("%w: class %q holds %.1f%% of samples, minimum is %.1f%%",
				ErrImbalancedData, class, share*100, cfg.MinClassShare*100)
		}
	}
	return nil
}

// collectFeatureNames returns the sorted union of feature names, required
// numeric names first, indicator names after.
func collectFeatureNames(samples []Sample) []string {
	seen := make(map[string]struct{})
	for _, s := range samples {
		for name := range s.Features {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		iInd := strings.Contains(names[i], "=")
		jInd := strings.Contains(names[j], "=")
		if iInd != jInd {
			return !iInd
		}
		return names[i] < names[j]
	})
	return names
}

// denseRows copies a gonum matrix into row slices for gob encoding.
func denseRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, m)
	}
	return rows
}

// accuracy computes training-set accuracy of the fitted model.
func accuracy(model *Model, samples []Sample) float64 {
	var correct int
	for _, s := range samples {
		p, err := model.Predict(s.Features)
		if err == nil && p.Class == s.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
