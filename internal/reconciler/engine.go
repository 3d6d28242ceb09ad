package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offersync/internal/member"
	"offersync/internal/remote"
	"offersync/internal/store"
	"offersync/pkg/logging"
)

// Engine reconciles one resource at a time.
type Engine struct {
	desired DesiredReader
	api     RemoteAPI
	cfg     Config
	pacer   *Pacer
	sleep   Sleeper
	metrics *Metrics
	mutator *Mutator
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithPacer shares p with other engines. By default each engine builds its own.
func WithPacer(p *Pacer) EngineOption {
	return func(e *Engine) { e.pacer = p }
}

// WithSleeper replaces the sleep used for backoff and lock waits.
func WithSleeper(s Sleeper) EngineOption {
	return func(e *Engine) { e.sleep = s }
}

// WithMetrics records calls and results into m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine reading desired state from desired and remote
// state from api.
func NewEngine(desired DesiredReader, api RemoteAPI, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		desired: desired,
		api:     api,
		cfg:     cfg.WithDefaults(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pacer == nil {
		e.pacer = NewPacer(e.cfg)
	}
	e.mutator = NewMutator(api, e.cfg, e.pacer, e.metrics, e.sleep)
	return e
}

// Config returns the settings the engine runs with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Metrics returns the metrics sink, or nil.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Plan reads both sides and returns the difference without mutating.
func (e *Engine) Plan(ctx context.Context, res store.Resource) Plan {
	plan := Plan{Resource: res, ToAdd: []member.Member{}, ToRemove: []member.Member{}}

	desiredRaw, err := e.desired.ListDesiredMembers(ctx, res.LocalID)
	if err != nil {
		plan.Err = fmt.Errorf("read desired members of %s: %w", res.LocalID, err)
		return plan
	}
	desired, malformed := member.ParseAll(desiredRaw)
	plan.Malformed = malformed
	plan.DesiredCount = desired.Len()
	if len(malformed) > 0 {
		logging.Warn("Reconciler", "%s: %d desired values are not valid member ids and will be skipped", res, len(malformed))
	}

	remoteRaw, err := e.listRemote(ctx, res.RemoteID)
	if err != nil {
		plan.Err = fmt.Errorf("read remote members of %s: %w", res.RemoteID, err)
		return plan
	}
	current, remoteMalformed := member.ParseAll(remoteRaw)
	plan.RemoteMalformed = remoteMalformed
	plan.RemoteCount = current.Len()
	if len(remoteMalformed) > 0 {
		logging.Warn("Reconciler", "%s: remote listed %d values that are not valid member ids", res, len(remoteMalformed))
	}

	plan.ToAdd, plan.ToRemove = member.Diff(desired, current)
	return plan
}

// ReconcileResource brings the remote membership of res in line with its
// desired membership. Both sides are read once; removals run before additions.
// The returned Result carries every failure; nothing is returned as an error.
func (e *Engine) ReconcileResource(ctx context.Context, res store.Resource) Result {
	start := time.Now()
	result := Result{
		Resource:  res,
		StartedAt: start,
		Add:       OperationResult{Operation: OperationAdd, Requested: []member.Member{}, Applied: []member.Member{}},
		Remove:    OperationResult{Operation: OperationRemove, Requested: []member.Member{}, Applied: []member.Member{}},
	}
	e.metrics.RecordReconcileAttempt(res.RemoteID)

	plan := e.Plan(ctx, res)
	result.Malformed = plan.Malformed
	result.RemoteMalformed = plan.RemoteMalformed
	if plan.Err != nil {
		result.Err = plan.Err
		result.Duration = time.Since(start)
		logging.Error("Reconciler", plan.Err, "%s: skipping resource", res)
		e.metrics.RecordReconcileFailure(res.RemoteID, plan.Err.Error())
		return result
	}

	logging.Info("Reconciler", "%s: desired=%d remote=%d add=%d remove=%d",
		res, plan.DesiredCount, plan.RemoteCount, len(plan.ToAdd), len(plan.ToRemove))

	for _, op := range e.cfg.orderedOperations() {
		members := plan.ToAdd
		if op == OperationRemove {
			members = plan.ToRemove
		}
		if len(members) == 0 {
			continue
		}
		*result.Operation(op) = e.mutator.Apply(ctx, res.RemoteID, op, members)
	}

	result.Duration = time.Since(start)
	if result.Success() {
		e.metrics.RecordReconcileSuccess(res.RemoteID)
	} else {
		e.metrics.RecordReconcileFailure(res.RemoteID, fmt.Sprintf("%d members failed", len(result.Failures())))
	}
	logging.Info("Reconciler", "%s: applied=%d skipped=%d failed=%d malformed=%d in %s",
		res, len(result.AppliedOK()), len(result.SkippedInvalid()), len(result.Failures()), len(result.Malformed), logging.Since(start))
	return result
}

// listRemote lists the remote members, retrying transient errors with the
// same schedule as mutation calls.
func (e *Engine) listRemote(ctx context.Context, remoteID string) ([]any, error) {
	schedule := transientSchedule(e.cfg.BackoffBase)

	for attempt := 0; ; attempt++ {
		if err := e.pacer.Wait(ctx, operationList); err != nil {
			return nil, err
		}
		values, err := e.api.ListMembers(ctx, remoteID)
		if err == nil {
			return values, nil
		}
		if ctx.Err() != nil || !remote.IsTransient(err) || attempt >= e.cfg.MaxRetries {
			return nil, err
		}

		wait := schedule.NextBackOff()
		var se *remote.StatusError
		if errors.As(err, &se) && se.RetryAfter > 0 {
			wait = se.RetryAfter
		}
		logging.Debug("Reconciler", "Listing %s failed (%v), retry %d/%d in %s", remoteID, err, attempt+1, e.cfg.MaxRetries, wait)
		if err := e.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}
