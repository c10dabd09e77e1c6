// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package worker runs forecast recalculations asynchronously. API requests
// enqueue a recalculation message and return immediately; a Watermill
// router consumes the queue with retry, panic recovery, and a poison topic
// for requests that keep failing.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/forecast"
	"github.com/skillcast/skillcast/internal/logging"
)

// TopicRecalculate carries recalculation requests.
const TopicRecalculate = "forecast.recalculate"

// Config holds the runner's queue and retry settings.
type Config struct {
	// PoisonTopic receives messages that exhaust all retries.
	PoisonTopic string `koanf:"poison_topic"`

	// CloseTimeout is how long to wait for in-flight handlers on shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// BufferSize is the in-memory queue depth per subscriber.
	BufferSize int64 `koanf:"buffer_size"`

	// Retry backoff for transient failures.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`
}

// DefaultConfig returns production defaults for the runner.
func DefaultConfig() Config {
	return Config{
		PoisonTopic:          "forecast.recalculate.poison",
		CloseTimeout:         30 * time.Second,
		BufferSize:           64,
		RetryMaxRetries:      3,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     30 * time.Second,
		RetryMultiplier:      2.0,
	}
}

// RecalculateRequest is the queued message payload.
type RecalculateRequest struct {
	RequestID    string `json:"request_id"`
	HorizonYears int    `json:"horizon_years"`
	TriggeredBy  string `json:"triggered_by"`
}

// Runner owns the in-process pub/sub and the router consuming it.
// Serve blocks until the context is canceled, so a Runner slots directly
// into a suture supervision tree.
type Runner struct {
	cfg    Config
	engine *forecast.Engine
	pubsub *gochannel.GoChannel
	router *message.Router
	logger zerolog.Logger
}

// NewRunner wires the queue, middleware chain, and recalculation handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRunner(cfg Config, engine *forecast.Engine, logger zerolog.Logger) (*Runner, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	wmLogger := NewWatermillLogger(logger)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Runner{
		cfg:    cfg,
		engine: engine,
		pubsub: pubsub,
		router: router,
		logger: logger.With().Str("component", "worker").Logger(),
	}

	// Middleware order, outer to inner: panic recovery, retry with
	// backoff, then poison-queue routing for messages that still fail.
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)
	if cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(pubsub, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		router.AddMiddleware(poison)
	}

	router.AddConsumerHandler(
		"forecast-recalculate",
		TopicRecalculate,
		pubsub,
		r.handleRecalculate,
	)

	return r, nil
}

// Enqueue publishes a recalculation request and returns its request ID.
func (r *Runner) Enqueue(ctx context.Context, horizonYears int, triggeredBy string) (string, error) {
	req := RecalculateRequest{
		RequestID:    logging.GenerateRequestID(),
		HorizonYears: horizonYears,
		TriggeredBy:  triggeredBy,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal recalculate request: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)
	if err := r.pubsub.Publish(TopicRecalculate, msg); err != nil {
		return "", fmt.Errorf("enqueue recalculation: %w", err)
	}

	r.logger.Info().
		Str("request_id", req.RequestID).
		Int("horizon_years", horizonYears).
		Str("triggered_by", triggeredBy).
		Msg("recalculation enqueued")
	return req.RequestID, nil
}

// handleRecalculate consumes one queued request. Fatal engine errors and
// bad payloads still return an error so the poison topic records them;
// the retry middleware retries them first, which is harmless because a
// failed recalculation writes nothing.
func (r *Runner) handleRecalculate(msg *message.Message) error {
	var req RecalculateRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("malformed recalculate request %s: %w", msg.UUID, err)
	}

	ctx := logging.ContextWithRequestID(context.Background(), req.RequestID)
	logger := r.logger.With().Str("request_id", req.RequestID).Logger()

	start := time.Now()
	summary, err := r.engine.Recalculate(ctx, req.HorizonYears, req.TriggeredBy)
	if err != nil {
		logger.Error().Err(err).
			Int("horizon_years", req.HorizonYears).
			Bool("fatal", forecast.IsFatal(err)).
			Msg("queued recalculation failed")
		return err
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Str("engine", summary.EngineUsed).
		Int("predictions", summary.TotalPredictions).
		Int("recommendations", summary.TotalRecommendations).
		Int("skipped", summary.SkippedContexts).
		Dur("duration", time.Since(start)).
		Msg("queued recalculation complete")
	return nil
}

// PoisonSubscriber exposes a subscription to the poison topic, used by
// tests and ops tooling to observe permanently failed requests.
func (r *Runner) PoisonSubscriber(ctx context.Context) (<-chan *message.Message, error) {
	if r.cfg.PoisonTopic == "" {
		return nil, fmt.Errorf("poison topic disabled")
	}
	return r.pubsub.Subscribe(ctx, r.cfg.PoisonTopic)
}

// Serve runs the router until ctx is canceled. Implements suture.Service.
func (r *Runner) Serve(ctx context.Context) error {
	r.logger.Info().Str("topic", TopicRecalculate).Msg("worker starting")
	err := r.router.Run(ctx)
	if cerr := r.pubsub.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Running returns a channel closed once the router is consuming.
func (r *Runner) Running() <-chan struct{} {
	return r.router.Running()
}

// String names the service in supervisor logs.
func (r *Runner) String() string { return "forecast-worker" }
