package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offersync/internal/config"
	"offersync/internal/member"
)

func createTestStore(t *testing.T, statusFilter string) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path, statusFilter)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_ListResourcesFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "update")

	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "b", RemoteID: "offer-2", Status: "update"}, nil))
	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "a", RemoteID: "offer-1", DisplayName: "Preorder 16wks", Status: "update"}, nil))
	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "c", RemoteID: "offer-3", Status: "done"}, nil))

	resources, err := s.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "a", resources[0].LocalID)
	assert.Equal(t, "offer-1", resources[0].RemoteID)
	assert.Equal(t, "Preorder 16wks", resources[0].DisplayName)
	assert.Equal(t, "b", resources[1].LocalID)
}

func TestSQLiteStore_DesiredMembersKeepRawValues(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "")

	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "a", RemoteID: "offer-1"},
		[]any{int64(100), "101", "102.0", 103.0, "abc"}))

	values, err := s.ListDesiredMembers(ctx, "a")
	require.NoError(t, err)
	require.Len(t, values, 5)

	set, malformed := member.ParseAll(values)
	assert.Equal(t, []member.Member{100, 101, 102, 103}, set.Sorted())
	require.Len(t, malformed, 1)
	assert.Equal(t, "abc", malformed[0].Value)
}

func TestSQLiteStore_PutResourceReplacesMembers(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "")

	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "a", RemoteID: "offer-1"}, []any{1, 2, 3}))
	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "a", RemoteID: "offer-1"}, []any{4}))

	values, err := s.ListDesiredMembers(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4)}, values)
}

func TestSQLiteStore_UnknownResource(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "")

	_, err := s.ListDesiredMembers(ctx, "missing")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	err = s.MarkResourceStatus(ctx, "missing", "done")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestSQLiteStore_MarkResourceStatus(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "update")

	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "a", RemoteID: "offer-1", Status: "update"}, nil))
	require.NoError(t, s.MarkResourceStatus(ctx, "a", "update-completed"))

	resources, err := s.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestSQLiteStore_RecordAudit(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "")

	require.NoError(t, s.RecordAudit(ctx, nil))
	require.NoError(t, s.RecordAudit(ctx, []AuditRow{
		{RunID: "run-1", ResourceID: "offer-1", LocalID: "a", Operation: "add", MemberID: "6", Reason: "skipped_invalid"},
		{RunID: "run-1", ResourceID: "offer-1", LocalID: "a", Operation: "add", MemberID: "7", Reason: "HTTP 500"},
		{RunID: "run-2", ResourceID: "offer-2", LocalID: "b", Operation: "remove", MemberID: "8", Reason: "skipped_invalid"},
	}))

	n, err := s.countAudit(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(path, "")
	require.NoError(t, err)
	require.NoError(t, s.PutResource(ctx, Resource{LocalID: "a", RemoteID: "offer-1"}, []any{1}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, "")
	require.NoError(t, err)
	defer s.Close()

	resources, err := s.ListResources(ctx)
	require.NoError(t, err)
	assert.Len(t, resources, 1)
}

const testDocument = `
resources:
  - remoteId: offer-42
    localId: "42"
    displayName: Preorder-20wks-40
    status: update
    members: [100, "101", 102.0, "x"]
  - remoteId: offer-43
    status: done
    members: []
  - remoteId: offer-44
    status: update
`

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "desired.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDocument), 0o600))

	fs, err := OpenFile(path, "update")
	require.NoError(t, err)
	defer fs.Close()

	resources, err := fs.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, Resource{RemoteID: "offer-42", LocalID: "42", DisplayName: "Preorder-20wks-40", Status: "update"}, resources[0])
	assert.Equal(t, "offer-44", resources[1].LocalID, "localId defaults to remoteId")

	values, err := fs.ListDesiredMembers(ctx, "42")
	require.NoError(t, err)
	set, malformed := member.ParseAll(values)
	assert.Equal(t, []member.Member{100, 101, 102}, set.Sorted())
	assert.Len(t, malformed, 1)

	values, err = fs.ListDesiredMembers(ctx, "offer-44")
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = fs.ListDesiredMembers(ctx, "nope")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestFileStore_Rejects(t *testing.T) {
	_, err := parseFile("x.yaml", []byte("resources:\n  - localId: a\n"), "")
	assert.Error(t, err)

	_, err = parseFile("x.yaml", []byte("resources:\n  - remoteId: a\n  - remoteId: a\n"), "")
	assert.Error(t, err)

	_, err = parseFile("x.yaml", []byte("resources: [\n"), "")
	assert.Error(t, err)

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestOpen_SelectsDriver(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.StoreConfig{Driver: config.StoreDriverSQLite, DSN: filepath.Join(dir, "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	path := filepath.Join(dir, "x.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resources: []\n"), 0o600))
	s, err = Open(config.StoreConfig{Driver: config.StoreDriverFile, DSN: path})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}
