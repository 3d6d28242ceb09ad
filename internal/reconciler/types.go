package reconciler

import (
	"context"
	"time"

	"offersync/internal/member"
	"offersync/internal/remote"
	"offersync/internal/store"
)

// Operation is the kind of membership mutation.
type Operation string

const (
	// OperationAdd associates members with a resource.
	OperationAdd Operation = "add"

	// OperationRemove dissociates members from a resource.
	OperationRemove Operation = "remove"

	// operationList paces listing calls.
	operationList Operation = "list"
)

// RemoteAPI is the remote side of a reconciliation.
type RemoteAPI interface {
	ListMembers(ctx context.Context, remoteID string) ([]any, error)
	AddMembers(ctx context.Context, remoteID string, members []member.Member) remote.Response
	RemoveMembers(ctx context.Context, remoteID string, members []member.Member) remote.Response
}

// DesiredReader is the desired-state side of a reconciliation.
type DesiredReader interface {
	ListDesiredMembers(ctx context.Context, localID string) ([]any, error)
}

// OutcomeKind classifies the result of one mutation call.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransient
	OutcomeLocked
	OutcomeValidation
	OutcomeHard
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeLocked:
		return "locked"
	case OutcomeValidation:
		return "validation"
	case OutcomeHard:
		return "hard"
	default:
		return "unknown"
	}
}

// Outcome is a classified response.
type Outcome struct {
	Kind     OutcomeKind
	Response remote.Response
	// Reason describes non-success outcomes for results and logs.
	Reason string
}

// SkippedMember is a member the remote rejected as invalid or duplicate.
type SkippedMember struct {
	Member member.Member `json:"member" yaml:"member"`
	Reason string        `json:"reason" yaml:"reason"`
}

// FailedMember is a member that could not be applied.
type FailedMember struct {
	Member member.Member `json:"member" yaml:"member"`
	Error  string        `json:"error" yaml:"error"`
}

// OperationResult is the outcome of one operation on one resource.
type OperationResult struct {
	Operation Operation       `json:"operation" yaml:"operation"`
	Requested []member.Member `json:"requested" yaml:"requested"`
	Applied   []member.Member `json:"applied" yaml:"applied"`
	Skipped   []SkippedMember `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failed    []FailedMember  `json:"failed,omitempty" yaml:"failed,omitempty"`
	// Calls counts remote mutation calls, retries and lock waits included.
	Calls int `json:"calls" yaml:"calls"`
}

// SkippedIDs returns the skipped members in ascending order.
func (o OperationResult) SkippedIDs() []member.Member {
	out := make([]member.Member, 0, len(o.Skipped))
	for _, s := range o.Skipped {
		out = append(out, s.Member)
	}
	return member.Sort(out)
}

// Result is the reconciliation result of one resource.
type Result struct {
	Resource store.Resource `json:"resource" yaml:"resource"`

	Add    OperationResult `json:"add" yaml:"add"`
	Remove OperationResult `json:"remove" yaml:"remove"`

	// Malformed holds desired values that could not be coerced to a member.
	Malformed []member.Malformed `json:"malformed,omitempty" yaml:"malformed,omitempty"`
	// RemoteMalformed holds listed remote values that could not be coerced.
	RemoteMalformed []member.Malformed `json:"remoteMalformed,omitempty" yaml:"remoteMalformed,omitempty"`

	// Err is a resource-level failure, such as an unreadable desired or remote state.
	Err error `json:"-" yaml:"-"`

	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Requested returns the number of members the diff asked to change.
func (r Result) Requested() int {
	return len(r.Add.Requested) + len(r.Remove.Requested)
}

// AppliedOK returns every applied member across both operations.
func (r Result) AppliedOK() []member.Member {
	out := append(append([]member.Member{}, r.Remove.Applied...), r.Add.Applied...)
	return out
}

// SkippedInvalid returns every skipped member across both operations.
func (r Result) SkippedInvalid() []SkippedMember {
	return append(append([]SkippedMember{}, r.Remove.Skipped...), r.Add.Skipped...)
}

// Failures returns every failed member across both operations.
func (r Result) Failures() []FailedMember {
	return append(append([]FailedMember{}, r.Remove.Failed...), r.Add.Failed...)
}

// Success reports whether the resource reached its desired state, apart from
// members the remote rejected as invalid.
func (r Result) Success() bool {
	return r.Err == nil && len(r.Add.Failed) == 0 && len(r.Remove.Failed) == 0
}

// Operation returns the result of op.
func (r *Result) Operation(op Operation) *OperationResult {
	if op == OperationRemove {
		return &r.Remove
	}
	return &r.Add
}

// Plan is the difference computed for one resource without mutating anything.
type Plan struct {
	Resource        store.Resource     `json:"resource" yaml:"resource"`
	DesiredCount    int                `json:"desiredCount" yaml:"desiredCount"`
	RemoteCount     int                `json:"remoteCount" yaml:"remoteCount"`
	ToAdd           []member.Member    `json:"toAdd" yaml:"toAdd"`
	ToRemove        []member.Member    `json:"toRemove" yaml:"toRemove"`
	Malformed       []member.Malformed `json:"malformed,omitempty" yaml:"malformed,omitempty"`
	RemoteMalformed []member.Malformed `json:"remoteMalformed,omitempty" yaml:"remoteMalformed,omitempty"`
	Err             error              `json:"-" yaml:"-"`
}
