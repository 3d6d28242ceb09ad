package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"offersync/pkg/logging"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps resources, desired members and audit rows in SQLite.
type SQLiteStore struct {
	db           *sql.DB
	statusFilter string
}

// OpenSQLite creates or opens the database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func OpenSQLite(path, statusFilter string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Debug("Store", "Opened sqlite store at %s", path)
	return &SQLiteStore{db: db, statusFilter: statusFilter}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ListResources returns resources ordered by local id, filtered by status
// when the store was opened with one.
func (s *SQLiteStore) ListResources(ctx context.Context) ([]Resource, error) {
	query := `SELECT id, remote_id, display_name, status FROM offers`
	var args []any
	if s.statusFilter != "" {
		query += ` WHERE status = ?`
		args = append(args, s.statusFilter)
	}
	query += ` ORDER BY id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	resources := []Resource{}
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.LocalID, &r.RemoteID, &r.DisplayName, &r.Status); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return resources, nil
}

// ListDesiredMembers returns the raw stored values for localID. Values keep
// the storage type SQLite reports (integer, real, text or blob).
func (s *SQLiteStore) ListDesiredMembers(ctx context.Context, localID string) ([]any, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM offers WHERE id = ?`, localID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup resource %s: %w", localID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%s: %w", localID, ErrResourceNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT variant_id FROM offer_variants WHERE offer_id = ? ORDER BY rowid ASC`, localID)
	if err != nil {
		return nil, fmt.Errorf("query desired members for %s: %w", localID, err)
	}
	defer rows.Close()

	values := []any{}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan desired member: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate desired members: %w", err)
	}
	return values, nil
}

// MarkResourceStatus updates the status of a resource.
func (s *SQLiteStore) MarkResourceStatus(ctx context.Context, localID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET status = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		status, localID)
	if err != nil {
		return fmt.Errorf("mark resource %s: %w", localID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark resource %s: %w", localID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", localID, ErrResourceNotFound)
	}
	logging.Debug("Store", "Marked resource %s as %q", localID, status)
	return nil
}

// RecordAudit inserts rows in a single transaction.
func (s *SQLiteStore) RecordAudit(ctx context.Context, rows []AuditRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO skipped_audit (run_id, resource_id, local_id, operation, member_id, reason)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.ResourceID, r.LocalID, r.Operation, r.MemberID, r.Reason); err != nil {
			return fmt.Errorf("insert audit row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit rows: %w", err)
	}
	return nil
}

// countAudit returns the number of audit rows recorded for runID.
func (s *SQLiteStore) countAudit(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM skipped_audit WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit rows: %w", err)
	}
	return n, nil
}

// PutResource inserts or replaces a resource and its desired members.
func (s *SQLiteStore) PutResource(ctx context.Context, r Resource, members []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO offers (id, remote_id, display_name, status) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			display_name = excluded.display_name,
			status = excluded.status,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		r.LocalID, r.RemoteID, r.DisplayName, r.Status)
	if err != nil {
		return fmt.Errorf("upsert resource %s: %w", r.LocalID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM offer_variants WHERE offer_id = ?`, r.LocalID); err != nil {
		return fmt.Errorf("clear members of %s: %w", r.LocalID, err)
	}
	for _, m := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO offer_variants (offer_id, variant_id) VALUES (?, ?)`, r.LocalID, m); err != nil {
			return fmt.Errorf("insert member of %s: %w", r.LocalID, err)
		}
	}
	return tx.Commit()
}
