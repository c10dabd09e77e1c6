// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"errors"
	"fmt"
)

// Sentinel errors for the scoring pipeline. Callers match them with
// errors.Is; wrapping adds detail without losing identity.
var (
	// ErrModelUnavailable indicates the model artifact is missing, corrupt
	// or unreadable. Recovered by falling back to the rule scorer for the
	// whole batch.
	ErrModelUnavailable = errors.New("model artifact unavailable")

	// ErrInference indicates the artifact loaded but its feature contract
	// does not match the context, or it produced malformed output. Fatal
	// for the ML path of the batch; triggers whole-batch fallback.
	ErrInference = errors.New("model inference failed")

	// ErrInsufficientData indicates a feature context could not be built
	// because reference data is missing. The single context is skipped and
	// counted; never fatal to the batch.
	ErrInsufficientData = errors.New("insufficient reference data")

	// ErrPredictionNotFound is returned by explanation lookups for unknown
	// prediction IDs.
	ErrPredictionNotFound = errors.New("prediction not found")

	// ErrRunNotFound is returned by run ledger lookups for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
)

// FatalEngineError means the rule scorer itself could not execute. It aborts
// the entire recalculation with no RunRecord written and is never recovered
// internally.
type FatalEngineError struct {
	Reason string
	Err    error
}

func (e *FatalEngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal engine error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal engine error: %s", e.Reason)
}

func (e *FatalEngineError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is (or wraps) a FatalEngineError.
func IsFatal(err error) bool {
	var fatal *FatalEngineError
	return errors.As(err, &fatal)
}
