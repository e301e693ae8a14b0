// Package agentswarm provides a high-level façade over the swarm
// orchestration core, enabling multi-agent execution against a single
// settings snapshot. Most applications interact with this package by:
//  1. Building a settings.Snapshot (Default(), FromFile, or by hand)
//  2. Creating an AgentSwarm via New() with a model.Invoker
//  3. Running swarm requests with Run()
//
// The façade delegates orchestration to swarm.Executor while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a structured logger
// and a synthesis-capable aggregator.
package agentswarm

import (
	"context"

	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/settings"
	"github.com/hupe1980/agentswarm/swarm"
)

// Options configures the AgentSwarm instance.
type Options struct {
	// Aggregator combines multi-agent outputs into one answer. Defaults to
	// plain concatenation; wrap the invoker in swarm.Synthesis for a
	// model-driven summary.
	Aggregator swarm.Aggregator

	// Selector drives role reassignment in the dynamic topology. Defaults
	// to capability keyword matching.
	Selector swarm.Selector

	// Tracker accumulates token usage across runs. Defaults to a fresh
	// tracker owned by this instance.
	Tracker *swarm.Tracker

	// TurnsPerRound caps turns per group chat round. Zero means every
	// active agent speaks once per round.
	TurnsPerRound int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentSwarm is the high-level façade aggregating the executor and the
// settings snapshot it runs against.
type AgentSwarm struct {
	opts     Options
	snapshot settings.Snapshot
	executor *swarm.Executor
}

// New creates a new AgentSwarm instance over a settings snapshot and a model
// invoker, with optional overrides. Any unset collaborator is initialized
// with its default implementation.
func New(snapshot settings.Snapshot, invoker model.Invoker, optFns ...func(o *Options)) *AgentSwarm {
	opts := Options{
		Aggregator: swarm.Concat{},
		Selector:   swarm.KeywordSelector{},
		Tracker:    swarm.NewTracker(),
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := swarm.NewExecutor(invoker, func(o *swarm.ExecutorOptions) {
		o.Aggregator = opts.Aggregator
		o.Selector = opts.Selector
		o.Tracker = opts.Tracker
		o.Logger = opts.Logger
		o.TurnsPerRound = opts.TurnsPerRound
	})

	return &AgentSwarm{opts: opts, snapshot: snapshot, executor: e}
}

// Run executes one swarm request against the instance's snapshot and blocks
// until the run reaches a terminal state or admission rejects the request.
func (s *AgentSwarm) Run(ctx context.Context, req swarm.Request) (*swarm.Result, error) {
	return s.executor.Run(ctx, req, s.snapshot)
}

// Settings returns the snapshot this instance runs against.
func (s *AgentSwarm) Settings() settings.Snapshot { return s.snapshot }

// Usage returns the cumulative token usage across all completed runs.
func (s *AgentSwarm) Usage() swarm.RunUsage {
	total, _ := s.executor.Tracker().Cumulative()
	return total
}
