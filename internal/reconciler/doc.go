// Package reconciler makes the remote membership of each resource match the
// desired membership held in the local store.
//
// # Overview
//
// For every resource the Engine reads the desired members and the remote
// members exactly once, normalizes both sides, computes the difference and
// applies it with batched mutation calls: removals first, then additions, so
// the remote set is never wider than the desired set at any point.
//
// # Architecture
//
//   - Engine: per-resource flow (read, diff, remove, add) and dry-run plans
//   - Mutator: submits one batch, retrying transient failures and waiting out
//     resource locks
//   - Resolver: isolates the members responsible for a validation rejection
//     by stripping explicitly reported members and bisecting the rest
//   - Pacer: rate limiting shared by every flow in the process
//   - Runner: reconciles a list of resources sequentially or with bounded
//     concurrency
//   - Metrics: per-resource counters and Prometheus collectors
//
// # Outcomes
//
// Every call is classified by Classify:
//
//   - Success: HTTP 2xx
//   - Locked: the body says another job is in progress on the resource
//   - Transient: network errors, HTTP 429 and 5xx
//   - Validation: HTTP 409 and 422
//   - Hard: any other status
//
// Transient failures are retried with exponential backoff up to MaxRetries.
// Locked batches are resubmitted unchanged until LockWaitBudget is spent.
// Validation failures never cause a plain retry; they are resolved member by
// member so valid members are still applied. Members that cannot be applied
// end up either skipped (rejected by the remote as invalid or duplicate) or
// failed (hard errors, exhausted retries or cancellation).
//
// # Usage
//
//	engine := reconciler.NewEngine(desired, client, reconciler.NewConfig(cfg.Reconcile))
//	runner := reconciler.NewRunner(engine)
//	results := runner.Run(ctx, resources)
//
// No error escapes a single resource: read failures are stored on the
// resource's Result and the run continues with the next resource.
package reconciler
