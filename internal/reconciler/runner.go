package reconciler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"offersync/internal/store"
	"offersync/pkg/logging"
)

// ProgressFunc is called after each resource finishes.
type ProgressFunc func(done, total int, r Result)

// Runner reconciles a list of resources.
type Runner struct {
	engine      *Engine
	concurrency int
	progress    ProgressFunc
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithProgress registers fn to be called as resources finish.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) { r.progress = fn }
}

// WithConcurrency overrides the configured number of concurrent resources.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRunner creates a runner using the engine's configured concurrency.
func NewRunner(engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{engine: engine, concurrency: engine.Config().Concurrency}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	return r
}

// Run reconciles resources and returns one Result per resource, in input
// order. Each resource's flow is serialized; with concurrency above one,
// several resources run at once while sharing the engine's pacer. Once ctx is
// done, resources not yet started are reported with the context error.
func (r *Runner) Run(ctx context.Context, resources []store.Resource) []Result {
	results := make([]Result, len(resources))
	if len(resources) == 0 {
		return results
	}
	logging.Info("Reconciler", "Reconciling %d resources (concurrency %d)", len(resources), r.concurrency)

	var (
		mu   sync.Mutex
		done int
	)
	finish := func(i int, res Result) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = res
		done++
		if r.progress != nil {
			r.progress(done, len(resources), res)
		}
	}

	reconcile := func(i int) {
		res := resources[i]
		if err := ctx.Err(); err != nil {
			finish(i, Result{Resource: res, Err: err})
			return
		}
		finish(i, r.engine.ReconcileResource(ctx, res))
	}

	if r.concurrency == 1 {
		for i := range resources {
			reconcile(i)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range resources {
		g.Go(func() error {
			reconcile(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Plan computes the difference for every resource without mutating.
func (r *Runner) Plan(ctx context.Context, resources []store.Resource) []Plan {
	plans := make([]Plan, len(resources))
	for i, res := range resources {
		if err := ctx.Err(); err != nil {
			plans[i] = Plan{Resource: res, Err: err}
			continue
		}
		plans[i] = r.engine.Plan(ctx, res)
	}
	return plans
}
