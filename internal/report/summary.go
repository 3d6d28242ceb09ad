// Package report aggregates reconciliation results into a run summary and
// renders it as a table, JSON or YAML.
//
// Aggregation is pure: it never changes the results it reads and can be
// called any number of times. Summaries carry counts and short samples only;
// full member lists go to the audit artifacts.
package report

import (
	"fmt"
	"time"

	"offersync/internal/member"
	"offersync/internal/reconciler"
	pkgstrings "offersync/pkg/strings"
)

// Summary is the end-of-run view over all resources.
type Summary struct {
	RunID       string    `json:"runId,omitempty" yaml:"runId,omitempty"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`

	Resources  int `json:"resources" yaml:"resources"`
	Succeeded  int `json:"succeeded" yaml:"succeeded"`
	Unfinished int `json:"unfinished" yaml:"unfinished"`

	Requested int `json:"requested" yaml:"requested"`
	Added     int `json:"added" yaml:"added"`
	Removed   int `json:"removed" yaml:"removed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
	Malformed int `json:"malformed" yaml:"malformed"`

	Activity *Activity `json:"activity,omitempty" yaml:"activity,omitempty"`

	Rows []ResourceSummary `json:"rows" yaml:"rows"`
}

// Activity is the remote traffic behind a run.
type Activity struct {
	Calls       int64         `json:"calls" yaml:"calls"`
	Retries     int64         `json:"retries" yaml:"retries"`
	LockWait    time.Duration `json:"lockWait" yaml:"lockWait"`
	FailureRate float64       `json:"failureRate" yaml:"failureRate"`
}

// ResourceSummary is one resource's counts plus truncated samples.
type ResourceSummary struct {
	RemoteID    string `json:"remoteId" yaml:"remoteId"`
	LocalID     string `json:"localId" yaml:"localId"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`

	Success   bool `json:"success" yaml:"success"`
	Requested int  `json:"requested" yaml:"requested"`
	Added     int  `json:"added" yaml:"added"`
	Removed   int  `json:"removed" yaml:"removed"`
	Skipped   int  `json:"skipped" yaml:"skipped"`
	Failed    int  `json:"failed" yaml:"failed"`
	Malformed int  `json:"malformed" yaml:"malformed"`
	Calls     int  `json:"calls" yaml:"calls"`

	SkippedSample []string `json:"skippedSample,omitempty" yaml:"skippedSample,omitempty"`
	FailedSample  []string `json:"failedSample,omitempty" yaml:"failedSample,omitempty"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Success reports whether every resource reached its desired state.
func (s Summary) Success() bool {
	return s.Unfinished == 0
}

// Aggregate builds a Summary stamped with generatedAt. sampleSize bounds
// each per-resource sample.
func Aggregate(results []reconciler.Result, sampleSize int, generatedAt time.Time) Summary {
	s := Summary{
		GeneratedAt: generatedAt,
		Resources:   len(results),
		Rows:        make([]ResourceSummary, 0, len(results)),
	}
	for _, r := range results {
		row := summarize(r, sampleSize)
		if row.Success {
			s.Succeeded++
		} else {
			s.Unfinished++
		}
		s.Requested += row.Requested
		s.Added += row.Added
		s.Removed += row.Removed
		s.Skipped += row.Skipped
		s.Failed += row.Failed
		s.Malformed += row.Malformed
		s.Rows = append(s.Rows, row)
	}
	return s
}

// WithActivity returns a copy of s carrying the run's metric totals.
func (s Summary) WithActivity(m reconciler.MetricsSummary) Summary {
	s.Activity = &Activity{
		Calls:       m.TotalCalls,
		Retries:     m.TotalRetries,
		LockWait:    m.TotalLockWait,
		FailureRate: m.ReconcileFailureRate,
	}
	return s
}

func summarize(r reconciler.Result, sampleSize int) ResourceSummary {
	skipped := r.SkippedInvalid()
	failures := r.Failures()

	row := ResourceSummary{
		RemoteID:    r.Resource.RemoteID,
		LocalID:     r.Resource.LocalID,
		DisplayName: r.Resource.DisplayName,
		Success:     r.Success(),
		Requested:   r.Requested(),
		Added:       len(r.Add.Applied),
		Removed:     len(r.Remove.Applied),
		Skipped:     len(skipped),
		Failed:      len(failures),
		Malformed:   len(r.Malformed),
		Calls:       r.Add.Calls + r.Remove.Calls,
		Duration:    r.Duration,
	}
	if r.Err != nil {
		row.Error = pkgstrings.Truncate(r.Err.Error(), pkgstrings.DefaultErrorMaxLen)
	}

	skippedLabels := make([]string, 0, len(skipped)+len(r.Malformed))
	for _, sk := range skipped {
		skippedLabels = append(skippedLabels, sk.Member.String())
	}
	for _, m := range r.Malformed {
		skippedLabels = append(skippedLabels, fmt.Sprintf("%q", m.Value))
	}
	row.SkippedSample = sample(skippedLabels, sampleSize)

	failedLabels := make([]string, 0, len(failures))
	for _, f := range failures {
		failedLabels = append(failedLabels, fmt.Sprintf("%s: %s", f.Member, pkgstrings.Truncate(f.Error, 60)))
	}
	row.FailedSample = sample(failedLabels, sampleSize)
	return row
}

func sample(labels []string, n int) []string {
	if len(labels) == 0 {
		return nil
	}
	head, truncated := pkgstrings.Sample(labels, n)
	out := append([]string{}, head...)
	if truncated {
		out = append(out, fmt.Sprintf("(+%d more)", len(labels)-len(head)))
	}
	return out
}

// PlanSummary is the dry-run view over all resources.
type PlanSummary struct {
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	Resources   int       `json:"resources" yaml:"resources"`
	ToAdd       int       `json:"toAdd" yaml:"toAdd"`
	ToRemove    int       `json:"toRemove" yaml:"toRemove"`
	Malformed   int       `json:"malformed" yaml:"malformed"`
	Errors      int       `json:"errors" yaml:"errors"`
	Rows        []PlanRow `json:"rows" yaml:"rows"`
}

// PlanRow is one resource's pending changes.
type PlanRow struct {
	RemoteID       string   `json:"remoteId" yaml:"remoteId"`
	LocalID        string   `json:"localId" yaml:"localId"`
	DisplayName    string   `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	DesiredCount   int      `json:"desiredCount" yaml:"desiredCount"`
	RemoteCount    int      `json:"remoteCount" yaml:"remoteCount"`
	ToAdd          int      `json:"toAdd" yaml:"toAdd"`
	ToRemove       int      `json:"toRemove" yaml:"toRemove"`
	Malformed      int      `json:"malformed" yaml:"malformed"`
	ToAddSample    []string `json:"toAddSample,omitempty" yaml:"toAddSample,omitempty"`
	ToRemoveSample []string `json:"toRemoveSample,omitempty" yaml:"toRemoveSample,omitempty"`
	Error          string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// AggregatePlans builds a PlanSummary stamped with generatedAt.
func AggregatePlans(plans []reconciler.Plan, sampleSize int, generatedAt time.Time) PlanSummary {
	s := PlanSummary{
		GeneratedAt: generatedAt,
		Resources:   len(plans),
		Rows:        make([]PlanRow, 0, len(plans)),
	}
	for _, p := range plans {
		row := PlanRow{
			RemoteID:       p.Resource.RemoteID,
			LocalID:        p.Resource.LocalID,
			DisplayName:    p.Resource.DisplayName,
			DesiredCount:   p.DesiredCount,
			RemoteCount:    p.RemoteCount,
			ToAdd:          len(p.ToAdd),
			ToRemove:       len(p.ToRemove),
			Malformed:      len(p.Malformed),
			ToAddSample:    sample(memberLabels(p.ToAdd), sampleSize),
			ToRemoveSample: sample(memberLabels(p.ToRemove), sampleSize),
		}
		if p.Err != nil {
			row.Error = pkgstrings.Truncate(p.Err.Error(), pkgstrings.DefaultErrorMaxLen)
			s.Errors++
		}
		s.ToAdd += row.ToAdd
		s.ToRemove += row.ToRemove
		s.Malformed += row.Malformed
		s.Rows = append(s.Rows, row)
	}
	return s
}

func memberLabels(members []member.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.String()
	}
	return out
}
