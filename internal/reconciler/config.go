package reconciler

import (
	"time"

	"offersync/internal/config"
)

// Config holds batching, retry, lock-wait and pacing settings. It is passed
// to the engine at construction and never mutated afterwards.
type Config struct {
	BatchSize       int
	RemoveBatchSize int

	MaxRetries  int
	BackoffBase time.Duration

	LockWaitBudget    time.Duration
	LockBackoffStart  time.Duration
	LockBackoffFactor float64
	LockBackoffCap    time.Duration

	RateLimitDelay       time.Duration
	RemoveRateLimitDelay time.Duration

	Concurrency int
	Operations  []Operation
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return NewConfig(config.GetDefaultConfig().Reconcile)
}

// NewConfig converts the reconcile configuration section.
func NewConfig(rc config.ReconcileConfig) Config {
	cfg := Config{
		BatchSize:            rc.BatchSize,
		RemoveBatchSize:      rc.RemoveBatchSize,
		MaxRetries:           rc.MaxRetries,
		BackoffBase:          rc.BackoffBase,
		LockWaitBudget:       rc.LockWaitBudget,
		LockBackoffStart:     rc.LockBackoffStart,
		LockBackoffFactor:    rc.LockBackoffFactor,
		LockBackoffCap:       rc.LockBackoffCap,
		RateLimitDelay:       rc.RateLimitDelay,
		RemoveRateLimitDelay: rc.RemoveRateLimitDelay,
		Concurrency:          rc.Concurrency,
	}
	for _, op := range rc.Operations {
		cfg.Operations = append(cfg.Operations, Operation(op))
	}
	return cfg.WithDefaults()
}

// WithDefaults fills settings whose zero value is not meaningful. Zero
// retries, zero backoff and zero pacing delays are kept as given.
func (c Config) WithDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 75
	}
	if c.RemoveBatchSize <= 0 {
		c.RemoveBatchSize = 10
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.LockWaitBudget <= 0 {
		c.LockWaitBudget = 180 * time.Second
	}
	if c.LockBackoffStart <= 0 {
		c.LockBackoffStart = time.Second
	}
	if c.LockBackoffFactor < 1 {
		c.LockBackoffFactor = 1.8
	}
	if c.LockBackoffCap < c.LockBackoffStart {
		c.LockBackoffCap = c.LockBackoffStart
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if len(c.Operations) == 0 {
		c.Operations = []Operation{OperationRemove, OperationAdd}
	}
	return c
}

// batchSize returns the batch size for op.
func (c Config) batchSize(op Operation) int {
	if op == OperationRemove {
		return c.RemoveBatchSize
	}
	return c.BatchSize
}

// orderedOperations returns the configured operations with removals first.
func (c Config) orderedOperations() []Operation {
	var remove, add bool
	for _, op := range c.Operations {
		switch op {
		case OperationRemove:
			remove = true
		case OperationAdd:
			add = true
		}
	}
	var out []Operation
	if remove {
		out = append(out, OperationRemove)
	}
	if add {
		out = append(out, OperationAdd)
	}
	return out
}
