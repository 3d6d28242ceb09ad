package audit

import (
	"context"
	"fmt"

	"offersync/internal/store"
	"offersync/pkg/logging"
)

// StoreSink records audit entries as rows of a store.
type StoreSink struct {
	recorder store.AuditRecorder
}

// NewStoreSink wraps recorder.
func NewStoreSink(recorder store.AuditRecorder) *StoreSink {
	return &StoreSink{recorder: recorder}
}

// Write converts records to one row per member and records them in a single call.
func (s *StoreSink) Write(ctx context.Context, records []Record) error {
	rows := Rows(records)
	if len(rows) == 0 {
		return nil
	}
	if err := s.recorder.RecordAudit(ctx, rows); err != nil {
		return fmt.Errorf("record audit rows: %w", err)
	}
	logging.Info("Audit", "Recorded %d audit rows", len(rows))
	return nil
}

// Rows flattens records into member-level audit rows.
func Rows(records []Record) []store.AuditRow {
	var rows []store.AuditRow
	for _, rec := range records {
		row := store.AuditRow{
			RunID:      rec.RunID,
			ResourceID: rec.ResourceID,
			LocalID:    rec.LocalID,
			Operation:  rec.Operation,
		}
		for _, sk := range rec.Skipped {
			row.MemberID = sk.Member.String()
			row.Reason = sk.Reason
			rows = append(rows, row)
		}
		for _, f := range rec.Failed {
			row.MemberID = f.Member.String()
			row.Reason = "failed: " + f.Error
			rows = append(rows, row)
		}
		for _, m := range rec.Malformed {
			row.MemberID = m.Value
			row.Reason = "malformed: " + m.Reason
			rows = append(rows, row)
		}
	}
	return rows
}
