package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentswarm/settings"
)

// Admission errors. All are detected before any model call; the caller gets
// them synchronously and no partial run state is created.
var (
	// ErrSwarmDisabled is returned when the snapshot's master switch is off.
	ErrSwarmDisabled = errors.New("swarm orchestration is disabled in settings")
	// ErrEmptyTask is returned for an empty or whitespace-only task.
	ErrEmptyTask = errors.New("no task provided")
	// ErrNoAgents is returned for an empty roster.
	ErrNoAgents = errors.New("no agents defined")
	// ErrTooManyAgents is returned when the roster exceeds the snapshot limit.
	ErrTooManyAgents = errors.New("too many agents")
	// ErrInvalidTopology is returned for an unknown swarm type.
	ErrInvalidTopology = errors.New("unknown swarm type")
)

// Admission is the guard's accept decision: the effective topology (request
// value or snapshot default) and the run deadline. The context derived from
// it is the sole cancellation source for every agent invocation in the run.
type Admission struct {
	SwarmType Type
	Deadline  time.Time
	Timeout   time.Duration
}

// Context derives the run context carrying the admission deadline.
func (a *Admission) Context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(parent, a.Deadline)
}

// Admit validates a request against the snapshot's limits before any
// execution starts. It never mutates the snapshot and has no side effects
// beyond producing the decision.
func Admit(req Request, snap settings.Snapshot) (*Admission, error) {
	if !snap.Enabled {
		return nil, ErrSwarmDisabled
	}

	if strings.TrimSpace(req.Task) == "" {
		return nil, ErrEmptyTask
	}

	if len(req.Agents) == 0 {
		return nil, ErrNoAgents
	}

	if len(req.Agents) > snap.MaxAgents {
		return nil, fmt.Errorf("%w: %d agents exceed the limit of %d", ErrTooManyAgents, len(req.Agents), snap.MaxAgents)
	}

	// Topology names are matched case-insensitively, whether they come from
	// the request or the snapshot default.
	swarmType := Type(strings.ToLower(strings.TrimSpace(string(req.SwarmType))))
	if swarmType == "" {
		swarmType = Type(strings.ToLower(strings.TrimSpace(snap.DefaultSwarmType)))
	}
	if !swarmType.Valid() {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrInvalidTopology, swarmType, Types())
	}

	return &Admission{
		SwarmType: swarmType,
		Deadline:  time.Now().Add(snap.ExecutionTimeout),
		Timeout:   snap.ExecutionTimeout,
	}, nil
}
