// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"WARN", zerolog.WarnLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("component", "forecast").Msg("engine selected")

	out := buf.String()
	if !strings.Contains(out, `"component":"forecast"`) {
		t.Errorf("expected component field in output, got %s", out)
	}
	if !strings.Contains(out, "engine selected") {
		t.Errorf("expected message in output, got %s", out)
	}
}

func TestContextRunID(t *testing.T) {
	ctx := context.Background()

	if got := RunIDFromContext(ctx); got != "" {
		t.Errorf("expected empty run ID on fresh context, got %q", got)
	}

	ctx = ContextWithRunID(ctx, "run-123")
	if got := RunIDFromContext(ctx); got != "run-123" {
		t.Errorf("RunIDFromContext = %q, want run-123", got)
	}
}

func TestCtxEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(zerolog.Nop())

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithRunID(ctx, "run-9")

	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id in %s", out)
	}
	if !strings.Contains(out, `"run_id":"run-9"`) {
		t.Errorf("missing run_id in %s", out)
	}
}

func TestSlogHandlerRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	slogger := slog.New(handler)

	slogger.Warn("service restarting", slog.String("service", "worker"))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level, got %s", out)
	}
	if !strings.Contains(out, `"service":"worker"`) {
		t.Errorf("expected service attribute, got %s", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	slogger := slog.New(handler).WithGroup("supervisor").With(slog.String("name", "api"))

	slogger.Info("started")

	if !strings.Contains(buf.String(), `"supervisor.name":"api"`) {
		t.Errorf("expected group-prefixed attribute, got %s", buf.String())
	}
}
