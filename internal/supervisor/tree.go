// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package supervisor builds the suture service tree that runs the
// long-lived parts of the process: the HTTP API and the async
// recalculation worker. Failure isolation between the two layers means
// a crashing worker never takes down read traffic.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds restart and shutdown tuning for the tree. Zero
// values fall back to suture's documented defaults.
type TreeConfig struct {
	// FailureThreshold is the failure count before entering backoff.
	FailureThreshold float64

	// FailureDecay is the failure decay rate in seconds.
	FailureDecay float64

	// FailureBackoff is how long to pause restarts once the threshold
	// is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds graceful shutdown of each service.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production defaults matching suture's own.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the two-layer supervisor: an api layer for the HTTP server
// and a worker layer for queue consumers.
type Tree struct {
	root   *suture.Supervisor
	api    *suture.Supervisor
	worker *suture.Supervisor
	config TreeConfig
}

// NewTree creates the supervisor tree. Supervisor events are logged
// through the given slog.Logger (bridged from zerolog).
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("skillcast", rootSpec)
	apiLayer := suture.New("api-layer", childSpec)
	workerLayer := suture.New("worker-layer", childSpec)
	root.Add(apiLayer)
	root.Add(workerLayer)

	return &Tree{
		root:   root,
		api:    apiLayer,
		worker: workerLayer,
		config: config,
	}
}

// AddAPIService supervises a service in the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// AddWorkerService supervises a service in the worker layer.
func (t *Tree) AddWorkerService(svc suture.Service) suture.ServiceToken {
	return t.worker.Add(svc)
}

// Serve runs the tree until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine and reports its exit
// on the returned channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// RemoveAPIService stops and removes a service from the api layer.
func (t *Tree) RemoveAPIService(token suture.ServiceToken) error {
	return t.api.Remove(token)
}

// RemoveWorkerService stops and removes a service from the worker layer.
func (t *Tree) RemoveWorkerService(token suture.ServiceToken) error {
	return t.worker.Remove(token)
}

// UnstoppedServiceReport lists services that missed the shutdown
// timeout. Useful when diagnosing a hung shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
