package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"offersync/pkg/logging"
)

// fileDocument is the YAML layout read by FileStore.
type fileDocument struct {
	Resources []fileResource `yaml:"resources"`
}

type fileResource struct {
	Resource `yaml:",inline"`
	Members  []any `yaml:"members"`
}

// FileStore serves resources from a YAML document loaded once at open.
type FileStore struct {
	path      string
	resources []Resource
	members   map[string][]any
}

// OpenFile reads the YAML document at path.
func OpenFile(path, statusFilter string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store file %s: %w", path, err)
	}
	return parseFile(path, data, statusFilter)
}

func parseFile(path string, data []byte, statusFilter string) (*FileStore, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}

	fs := &FileStore{path: path, members: make(map[string][]any, len(doc.Resources))}
	for i, r := range doc.Resources {
		if strings.TrimSpace(r.RemoteID) == "" {
			return nil, fmt.Errorf("store file %s: resource %d has no remoteId", path, i)
		}
		if r.LocalID == "" {
			r.LocalID = r.RemoteID
		}
		if _, dup := fs.members[r.LocalID]; dup {
			return nil, fmt.Errorf("store file %s: duplicate localId %q", path, r.LocalID)
		}
		members := r.Members
		if members == nil {
			members = []any{}
		}
		fs.members[r.LocalID] = members
		if statusFilter != "" && r.Status != statusFilter {
			continue
		}
		fs.resources = append(fs.resources, r.Resource)
	}

	logging.Debug("Store", "Loaded %d resources from %s", len(doc.Resources), path)
	return fs, nil
}

// ListResources returns the selected resources in document order.
func (f *FileStore) ListResources(ctx context.Context) ([]Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Resource, len(f.resources))
	copy(out, f.resources)
	return out, nil
}

// ListDesiredMembers returns the raw member values listed for localID.
func (f *FileStore) ListDesiredMembers(ctx context.Context, localID string) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	members, ok := f.members[localID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", localID, ErrResourceNotFound)
	}
	out := make([]any, len(members))
	copy(out, members)
	return out, nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
