// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package api exposes the forecasting pipeline over HTTP: triggering
// recalculations, browsing the run ledger, on-demand explanations, and
// model artifact administration.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/skillcast/skillcast/internal/logging"
)

// Response is the envelope every endpoint returns, success or failure.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Error carries a machine-readable code alongside the human message.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Meta is response metadata for tracing and timing.
type Meta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// responseWriter writes enveloped JSON responses for one request.
type responseWriter struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

func newResponseWriter(w http.ResponseWriter, r *http.Request) *responseWriter {
	return &responseWriter{w: w, r: r, start: time.Now()}
}

func (rw *responseWriter) meta() *Meta {
	return &Meta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now(),
		DurationMs: time.Since(rw.start).Milliseconds(),
	}
}

// Success writes a 200 with data.
func (rw *responseWriter) Success(data any) {
	rw.writeJSON(http.StatusOK, Response{Success: true, Data: data, Meta: rw.meta()})
}

// Accepted writes a 202 for work handed to the async runner.
func (rw *responseWriter) Accepted(data any) {
	rw.writeJSON(http.StatusAccepted, Response{Success: true, Data: data, Meta: rw.meta()})
}

// ErrorResponse writes an error envelope with the given status.
func (rw *responseWriter) ErrorResponse(statusCode int, code, message string) {
	rw.writeJSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:      code,
			Message:   message,
			RequestID: logging.RequestIDFromContext(rw.r.Context()),
		},
		Meta: rw.meta(),
	})
}

func (rw *responseWriter) BadRequest(message string) {
	rw.ErrorResponse(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func (rw *responseWriter) ValidationFailed(message string) {
	rw.ErrorResponse(http.StatusUnprocessableEntity, ErrCodeValidationFailed, message)
}

func (rw *responseWriter) NotFound(message string) {
	rw.ErrorResponse(http.StatusNotFound, ErrCodeNotFound, message)
}

func (rw *responseWriter) Conflict(message string) {
	rw.ErrorResponse(http.StatusConflict, ErrCodeConflict, message)
}

func (rw *responseWriter) InternalError(message string) {
	rw.ErrorResponse(http.StatusInternalServerError, ErrCodeInternalError, message)
}

func (rw *responseWriter) ServiceUnavailable(message string) {
	rw.ErrorResponse(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

func (rw *responseWriter) writeJSON(statusCode int, response Response) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(response); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
