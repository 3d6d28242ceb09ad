package reconciler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"offersync/internal/member"
	"offersync/internal/remote"
	"offersync/pkg/logging"
)

// Mutator submits batches for one resource and operation at a time.
type Mutator struct {
	api     RemoteAPI
	cfg     Config
	pacer   *Pacer
	sleep   Sleeper
	metrics *Metrics
}

// NewMutator creates a mutator. pacer and metrics may be nil.
func NewMutator(api RemoteAPI, cfg Config, pacer *Pacer, metrics *Metrics, sleep Sleeper) *Mutator {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Mutator{
		api:     api,
		cfg:     cfg.WithDefaults(),
		pacer:   pacer,
		sleep:   sleep,
		metrics: metrics,
	}
}

// Submit sends batch until it reaches a terminal outcome: success,
// validation failure or hard failure. Transient failures are retried up to
// MaxRetries times; lock rejections are retried with the lock schedule until
// LockWaitBudget is spent. calls reports how many requests were made.
func (m *Mutator) Submit(ctx context.Context, remoteID string, op Operation, batch []member.Member) (out Outcome, calls int) {
	transient := transientSchedule(m.cfg.BackoffBase)
	lock := &backoff.ExponentialBackOff{
		InitialInterval:     m.cfg.LockBackoffStart,
		RandomizationFactor: 0,
		Multiplier:          m.cfg.LockBackoffFactor,
		MaxInterval:         m.cfg.LockBackoffCap,
	}
	lock.Reset()

	var (
		retries    int
		lockWaited time.Duration
	)
	for {
		if err := ctx.Err(); err != nil {
			return canceledOutcome(err), calls
		}
		if err := m.pacer.Wait(ctx, op); err != nil {
			return canceledOutcome(err), calls
		}

		resp := m.call(ctx, remoteID, op, batch)
		calls++
		if err := ctx.Err(); err != nil {
			return canceledOutcome(err), calls
		}

		out = Classify(resp)
		m.metrics.RecordCall(op, out.Kind)

		var wait time.Duration
		switch out.Kind {
		case OutcomeTransient:
			if retries >= m.cfg.MaxRetries {
				logging.Warn("Mutator", "%s %s: giving up after %d retries: %s", op, remoteID, retries, out.Reason)
				return Outcome{
					Kind:     OutcomeHard,
					Response: resp,
					Reason:   fmt.Sprintf("retries exhausted after %d attempts: %s", retries+1, out.Reason),
				}, calls
			}
			wait = transient.NextBackOff()
			if resp.HasRetryAfter {
				wait = resp.RetryAfter
			}
			retries++
			m.metrics.RecordRetry(op)
			logging.Debug("Mutator", "%s %s: transient failure (%s), retry %d/%d in %s",
				op, remoteID, out.Reason, retries, m.cfg.MaxRetries, wait)

		case OutcomeLocked:
			remaining := m.cfg.LockWaitBudget - lockWaited
			if remaining <= 0 {
				logging.Warn("Mutator", "%s %s: still locked after waiting %s", op, remoteID, lockWaited)
				return Outcome{
					Kind:     OutcomeHard,
					Response: resp,
					Reason:   fmt.Sprintf("resource locked, wait budget of %s exhausted: %s", m.cfg.LockWaitBudget, out.Reason),
				}, calls
			}
			wait = lock.NextBackOff()
			if wait > remaining {
				wait = remaining
			}
			lockWaited += wait
			m.metrics.RecordLockWait(op, wait)
			logging.Info("Mutator", "%s %s: resource locked by another job, waiting %s (%s of %s used)",
				op, remoteID, wait, lockWaited, m.cfg.LockWaitBudget)

		default:
			return out, calls
		}

		if err := m.sleep(ctx, wait); err != nil {
			return canceledOutcome(err), calls
		}
	}
}

func (m *Mutator) call(ctx context.Context, remoteID string, op Operation, batch []member.Member) remote.Response {
	if op == OperationRemove {
		return m.api.RemoveMembers(ctx, remoteID, batch)
	}
	return m.api.AddMembers(ctx, remoteID, batch)
}

// transientSchedule yields base, 2*base, 4*base, ...
func transientSchedule(base time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
	}
	b.Reset()
	return b
}

func canceledOutcome(err error) Outcome {
	return Outcome{
		Kind:     OutcomeHard,
		Response: remote.Response{Err: err},
		Reason:   "canceled: " + err.Error(),
	}
}
