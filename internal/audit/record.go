// Package audit persists the members a run skipped or failed, one artifact
// per resource per operation, so rejected members can be reviewed after the
// run without replaying it.
package audit

import (
	"context"
	"time"

	"offersync/internal/member"
	"offersync/internal/reconciler"
)

// Record is the audit artifact of one operation on one resource.
type Record struct {
	RunID            string                     `json:"runId"`
	ResourceID       string                     `json:"resourceId"`
	LocalID          string                     `json:"localId"`
	DisplayName      string                     `json:"displayName,omitempty"`
	Operation        string                     `json:"operation"`
	RequestedCount   int                        `json:"requestedCount"`
	SkippedMemberIDs []member.Member            `json:"skippedMemberIds"`
	Skipped          []reconciler.SkippedMember `json:"skipped,omitempty"`
	Failed           []reconciler.FailedMember  `json:"failed,omitempty"`
	Malformed        []member.Malformed         `json:"malformed,omitempty"`
	GeneratedAt      time.Time                  `json:"generatedAt"`
}

// Empty reports whether the record has nothing worth persisting.
func (r Record) Empty() bool {
	return len(r.Skipped) == 0 && len(r.Failed) == 0 && len(r.Malformed) == 0
}

// Sink persists audit records.
type Sink interface {
	Write(ctx context.Context, records []Record) error
}

// Records builds the audit records of a run. Malformed desired values are
// attached to the add record since they were never sent. Operations with
// nothing skipped, failed or malformed produce no record.
func Records(runID string, results []reconciler.Result, generatedAt time.Time) []Record {
	var out []Record
	for _, res := range results {
		for _, op := range []reconciler.Operation{reconciler.OperationRemove, reconciler.OperationAdd} {
			opResult := res.Operation(op)
			rec := Record{
				RunID:            runID,
				ResourceID:       res.Resource.RemoteID,
				LocalID:          res.Resource.LocalID,
				DisplayName:      res.Resource.DisplayName,
				Operation:        string(op),
				RequestedCount:   len(opResult.Requested),
				SkippedMemberIDs: opResult.SkippedIDs(),
				Skipped:          opResult.Skipped,
				Failed:           opResult.Failed,
				GeneratedAt:      generatedAt,
			}
			if op == reconciler.OperationAdd {
				rec.Malformed = res.Malformed
			}
			if rec.Empty() {
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}

// MultiSink writes to every sink in order and returns the first error.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, records []Record) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
