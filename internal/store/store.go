package store

import (
	"context"
	"errors"
	"fmt"

	"offersync/internal/config"
)

// ErrResourceNotFound is returned when a local id has no resource row.
var ErrResourceNotFound = errors.New("resource not found")

// Resource is a container on the remote system whose membership is managed.
type Resource struct {
	RemoteID    string `json:"remoteId" yaml:"remoteId"`
	LocalID     string `json:"localId" yaml:"localId"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
}

// String returns a label for logs.
func (r Resource) String() string {
	if r.DisplayName != "" {
		return fmt.Sprintf("%s (%s)", r.RemoteID, r.DisplayName)
	}
	return r.RemoteID
}

// DesiredStore is the desired-state side of a reconciliation.
type DesiredStore interface {
	// ListResources returns the resources selected for reconciliation.
	ListResources(ctx context.Context) ([]Resource, error)
	// ListDesiredMembers returns raw member values for a resource.
	ListDesiredMembers(ctx context.Context, localID string) ([]any, error)
	Close() error
}

// StatusMarker is implemented by stores that can record reconcile progress.
type StatusMarker interface {
	MarkResourceStatus(ctx context.Context, localID, status string) error
}

// AuditRow is one member-level audit entry.
type AuditRow struct {
	RunID      string
	ResourceID string
	LocalID    string
	Operation  string
	MemberID   string
	Reason     string
}

// AuditRecorder is implemented by stores that can persist audit rows.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, rows []AuditRow) error
}

// Open returns the store selected by cfg. ResourceStatus limits
// ListResources to resources in that status; empty selects every resource.
func Open(cfg config.StoreConfig) (DesiredStore, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite, "":
		s, err := OpenSQLite(cfg.DSN, cfg.ResourceStatus)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreDriverFile:
		s, err := OpenFile(cfg.DSN, cfg.ResourceStatus)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
