package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"offersync/internal/member"
	"offersync/internal/reconciler"
	"offersync/internal/store"
)

var generatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ids(values ...int64) []member.Member {
	out := make([]member.Member, len(values))
	for i, v := range values {
		out[i] = member.Member(v)
	}
	return out
}

func sampleResults() []reconciler.Result {
	ok := reconciler.Result{
		Resource: store.Resource{RemoteID: "offer-42", LocalID: "42", DisplayName: "Preorder-20wks-40"},
		Remove:   reconciler.OperationResult{Operation: reconciler.OperationRemove, Requested: ids(103), Applied: ids(103), Calls: 1},
		Add: reconciler.OperationResult{
			Operation: reconciler.OperationAdd,
			Requested: ids(5, 6, 7, 8),
			Applied:   ids(5, 7, 8),
			Skipped:   []reconciler.SkippedMember{{Member: 6, Reason: "existing_variants"}},
			Calls:     2,
		},
		Malformed: []member.Malformed{{Value: "abc", Reason: "not an integer member id"}},
	}
	failed := reconciler.Result{
		Resource: store.Resource{RemoteID: "offer-43", LocalID: "43"},
		Add: reconciler.OperationResult{
			Operation: reconciler.OperationAdd,
			Requested: ids(1, 2, 3),
			Applied:   ids(1),
			Failed: []reconciler.FailedMember{
				{Member: 2, Error: "HTTP 400: unknown offer"},
				{Member: 3, Error: "HTTP 400: unknown offer"},
			},
			Calls: 3,
		},
	}
	unreadable := reconciler.Result{
		Resource: store.Resource{RemoteID: "offer-44", LocalID: "44"},
		Err:      errors.New("read remote members of offer-44: HTTP 404: not found"),
	}
	return []reconciler.Result{ok, failed, unreadable}
}

func TestAggregate(t *testing.T) {
	s := Aggregate(sampleResults(), 10, generatedAt)

	assert.Equal(t, 3, s.Resources)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.Unfinished)
	assert.False(t, s.Success())
	assert.Equal(t, 8, s.Requested)
	assert.Equal(t, 4, s.Added)
	assert.Equal(t, 1, s.Removed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Malformed)

	require.Len(t, s.Rows, 3)
	first := s.Rows[0]
	assert.True(t, first.Success)
	assert.Equal(t, 3, first.Calls)
	assert.Equal(t, []string{"6", `"abc"`}, first.SkippedSample)

	assert.Equal(t, []string{"2: HTTP 400: unknown offer", "3: HTTP 400: unknown offer"}, s.Rows[1].FailedSample)
	assert.Contains(t, s.Rows[2].Error, "HTTP 404")
}

func TestAggregate_IsPure(t *testing.T) {
	results := sampleResults()
	a := Aggregate(results, 10, generatedAt)
	b := Aggregate(results, 10, generatedAt)

	assert.Equal(t, a, b)
	assert.Equal(t, generatedAt, a.GeneratedAt)
	assert.Equal(t, ids(5, 7, 8), results[0].Add.Applied)
	assert.Len(t, results[0].Add.Skipped, 1)
}

func TestAggregate_TruncatesSamples(t *testing.T) {
	var skipped []reconciler.SkippedMember
	for i := int64(1); i <= 25; i++ {
		skipped = append(skipped, reconciler.SkippedMember{Member: member.Member(i), Reason: "rejected"})
	}
	r := reconciler.Result{
		Resource: store.Resource{RemoteID: "offer-1"},
		Add:      reconciler.OperationResult{Skipped: skipped},
	}

	s := Aggregate([]reconciler.Result{r}, 3, generatedAt)
	assert.Equal(t, []string{"1", "2", "3", "(+22 more)"}, s.Rows[0].SkippedSample)
	assert.Equal(t, 25, s.Rows[0].Skipped)
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, 10, generatedAt)
	assert.True(t, s.Success())
	assert.Empty(t, s.Rows)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "table", s))
	assert.Contains(t, buf.String(), "No resources")
}

func TestRender_Formats(t *testing.T) {
	s := Aggregate(sampleResults(), 10, generatedAt)
	s.RunID = "run-123"

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "json", s))
	var decoded Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-123", decoded.RunID)
	assert.Equal(t, s.Failed, decoded.Failed)

	buf.Reset()
	require.NoError(t, Render(&buf, "yaml", s))
	var generic map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &generic))
	assert.Equal(t, "run-123", generic["runId"])

	buf.Reset()
	require.NoError(t, Render(&buf, "table", s))
	out := buf.String()
	assert.Contains(t, out, "offer-42")
	assert.Contains(t, out, "offer-43")
	assert.Contains(t, out, "run-123")

	assert.Error(t, Render(&buf, "xml", s))
}

func TestSummary_WithActivity(t *testing.T) {
	s := Aggregate(sampleResults(), 10, generatedAt)
	withActivity := s.WithActivity(reconciler.MetricsSummary{
		TotalCalls:           7,
		TotalRetries:         2,
		TotalLockWait:        2500 * time.Millisecond,
		ReconcileFailureRate: 0.5,
	})

	assert.Nil(t, s.Activity)
	require.NotNil(t, withActivity.Activity)
	assert.Equal(t, Activity{Calls: 7, Retries: 2, LockWait: 2500 * time.Millisecond, FailureRate: 0.5}, *withActivity.Activity)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "table", withActivity))
	assert.Contains(t, buf.String(), "7 calls, 2 retries, 2.5s lock wait, 50% failure rate")

	buf.Reset()
	require.NoError(t, Render(&buf, "json", withActivity))
	var decoded Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.NotNil(t, decoded.Activity)
	assert.Equal(t, int64(2), decoded.Activity.Retries)

	buf.Reset()
	require.NoError(t, Render(&buf, "table", s))
	assert.NotContains(t, buf.String(), "Activity:")
}

func TestAggregatePlans(t *testing.T) {
	plans := []reconciler.Plan{
		{
			Resource:     store.Resource{RemoteID: "offer-42", LocalID: "42"},
			DesiredCount: 3,
			RemoteCount:  2,
			ToAdd:        ids(100, 102),
			ToRemove:     ids(103),
		},
		{Resource: store.Resource{RemoteID: "offer-43"}, Err: errors.New("boom")},
	}

	p := AggregatePlans(plans, 1, generatedAt)
	assert.Equal(t, 2, p.ToAdd)
	assert.Equal(t, 1, p.ToRemove)
	assert.Equal(t, 1, p.Errors)
	assert.Equal(t, []string{"100", "(+1 more)"}, p.Rows[0].ToAddSample)

	var buf bytes.Buffer
	require.NoError(t, RenderPlan(&buf, "table", p))
	assert.Contains(t, buf.String(), "offer-42")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	require.NoError(t, RenderPlan(&buf, "json", p))
	assert.Contains(t, buf.String(), `"toRemove": 1`)
}
