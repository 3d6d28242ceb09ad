package reconciler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"offersync/internal/member"
	"offersync/internal/remote"
)

// =============================================================================
// MockRemoteAPI - in-memory remote membership API shared by the tests
// =============================================================================

type mockCall struct {
	Operation Operation
	RemoteID  string
	Batch     []member.Member
	At        time.Time
}

// MockRemoteAPI keeps remote membership per resource and answers mutation
// calls the way the real API does.
type MockRemoteAPI struct {
	mu sync.Mutex

	Members map[string]member.Set

	// Invalid members are rejected with an opaque 422 whenever a batch holds one.
	Invalid member.Set

	// ReportExisting makes add calls that contain already-present members fail
	// with 422 and an existing_variants list.
	ReportExisting bool

	// Script is consumed before the default behavior. A scripted 2xx response
	// still applies the batch.
	Script []remote.Response

	// ListErrors are returned by ListMembers before listing succeeds.
	ListErrors []error

	Calls     []mockCall
	ListCalls int
}

// NewMockRemoteAPI creates a mock holding the given members per resource.
func NewMockRemoteAPI(state map[string][]member.Member) *MockRemoteAPI {
	m := &MockRemoteAPI{Members: make(map[string]member.Set), Invalid: member.NewSet()}
	for id, members := range state {
		m.Members[id] = member.NewSet(members...)
	}
	return m
}

func (m *MockRemoteAPI) ListMembers(ctx context.Context, remoteID string) ([]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if len(m.ListErrors) > 0 {
		err := m.ListErrors[0]
		m.ListErrors = m.ListErrors[1:]
		return nil, err
	}
	set := m.Members[remoteID]
	out := make([]any, 0, set.Len())
	for _, id := range set.Sorted() {
		// Mixed representations, as the real listing returns them.
		if id%2 == 0 {
			out = append(out, fmt.Sprintf("%d", id))
		} else {
			out = append(out, int64(id))
		}
	}
	return out, nil
}

func (m *MockRemoteAPI) AddMembers(ctx context.Context, remoteID string, batch []member.Member) remote.Response {
	return m.mutate(OperationAdd, remoteID, batch)
}

func (m *MockRemoteAPI) RemoveMembers(ctx context.Context, remoteID string, batch []member.Member) remote.Response {
	return m.mutate(OperationRemove, remoteID, batch)
}

func (m *MockRemoteAPI) mutate(op Operation, remoteID string, batch []member.Member) remote.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, mockCall{Operation: op, RemoteID: remoteID, Batch: append([]member.Member{}, batch...), At: time.Now()})

	if len(m.Script) > 0 {
		resp := m.Script[0]
		m.Script = m.Script[1:]
		if resp.OK() {
			m.apply(op, remoteID, batch)
		}
		return resp
	}

	for _, id := range batch {
		if m.Invalid.Has(id) {
			return jsonResponse(http.StatusUnprocessableEntity, `{"error":"Variant is not valid"}`)
		}
	}
	if op == OperationAdd && m.ReportExisting {
		set := m.Members[remoteID]
		var existing []string
		for _, id := range batch {
			if set.Has(id) {
				existing = append(existing, id.String())
			}
		}
		if len(existing) > 0 {
			return jsonResponse(http.StatusUnprocessableEntity,
				fmt.Sprintf(`{"error":"Variants already added","existing_variants":[%s]}`, strings.Join(existing, ",")))
		}
	}
	m.apply(op, remoteID, batch)
	return jsonResponse(http.StatusOK, `{"ok":true}`)
}

func (m *MockRemoteAPI) apply(op Operation, remoteID string, batch []member.Member) {
	set := m.Members[remoteID]
	next := member.NewSet()
	for _, id := range set.Sorted() {
		next.Add(id)
	}
	if op == OperationAdd {
		for _, id := range batch {
			next.Add(id)
		}
	} else {
		drop := member.NewSet(batch...)
		next = member.NewSet(next.Minus(drop)...)
	}
	m.Members[remoteID] = next
}

// CallCount returns the number of mutation calls so far.
func (m *MockRemoteAPI) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// State returns the current remote membership of remoteID.
func (m *MockRemoteAPI) State(remoteID string) []member.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Members[remoteID].Sorted()
}

func jsonResponse(status int, body string) remote.Response {
	return remote.Response{StatusCode: status, Body: []byte(body)}
}

func lockedResponse() remote.Response {
	return jsonResponse(http.StatusUnprocessableEntity, `{"error":"Another job is in progress for this offer"}`)
}

// =============================================================================
// Desired state and sleeping
// =============================================================================

// mockDesired serves raw desired values per local id.
type mockDesired struct {
	values map[string][]any
	err    map[string]error
}

func (d *mockDesired) ListDesiredMembers(ctx context.Context, localID string) ([]any, error) {
	if err := d.err[localID]; err != nil {
		return nil, err
	}
	return d.values[localID], nil
}

// recordingSleeper records requested sleeps and returns immediately.
type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
	// onSleep runs before each sleep returns; tests use it to cancel.
	onSleep func(n int)
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	n := len(s.sleeps)
	hook := s.onSleep
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (s *recordingSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration{}, s.sleeps...)
}

// testConfig returns a configuration without pacing delays.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitDelay = 0
	cfg.RemoveRateLimitDelay = 0
	return cfg
}

func newTestMutator(api RemoteAPI, cfg Config, sleeper *recordingSleeper) *Mutator {
	return NewMutator(api, cfg, NewPacer(cfg), NewMetrics(), sleeper.Sleep)
}

func members(ids ...int64) []member.Member {
	out := make([]member.Member, len(ids))
	for i, id := range ids {
		out[i] = member.Member(id)
	}
	return out
}

func memberRange(from, to int64) []member.Member {
	var out []member.Member
	for id := from; id <= to; id++ {
		out = append(out, member.Member(id))
	}
	return out
}
