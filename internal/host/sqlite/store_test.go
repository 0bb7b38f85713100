package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/internal/host"
)

const schema = `
tables:
  - name: projects
    label_field: title
    fields:
      - {name: id, type: Integer, primary_key: true}
      - {name: title, type: String}
      - {name: color, type: Color}
  - name: tasks
    min_role_write: 4
    ownership_field: owner
    fields:
      - {name: id, type: Integer, primary_key: true}
      - {name: name, type: String, required: true}
      - {name: parent, type: Key, reftable: tasks}
      - {name: project, type: Key, reftable: projects, on_delete: set null}
      - {name: done, type: Bool}
  - name: notes
    fields:
      - {name: id, type: String, primary_key: true}
      - {name: body, type: String}
`

func newTestStore(t *testing.T) (*Store, host.Catalog) {
	t.Helper()
	cat, err := host.ParseCatalog([]byte(schema))
	require.NoError(t, err)
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, cat, nil)
	require.NoError(t, s.Migrate(context.Background()))
	return s, cat
}

func table(t *testing.T, cat host.Catalog, name string) *host.Table {
	t.Helper()
	tbl, err := cat.FindTable(name)
	require.NoError(t, err)
	return tbl
}

var admin = &host.User{ID: "admin", RoleID: 1}

func TestStore_InsertSelectUpdate(t *testing.T) {
	ctx := context.Background()
	s, cat := newTestStore(t)
	tasks := table(t, cat, "tasks")

	rootID, err := s.InsertRow(ctx, tasks, host.Row{"name": "Root", "parent": nil}, admin)
	require.NoError(t, err)
	childID, err := s.InsertRow(ctx, tasks, host.Row{"name": "Child", "parent": rootID, "done": true}, admin)
	require.NoError(t, err)

	row, err := s.GetRow(ctx, tasks, host.Where{"id": childID})
	require.NoError(t, err)
	assert.Equal(t, "Child", row["name"])
	assert.Equal(t, rootID, row["parent"])
	assert.Equal(t, true, row["done"])
	assert.Equal(t, "admin", row["owner"])

	require.NoError(t, s.UpdateRow(ctx, tasks, host.Row{"parent": nil}, childID, admin))
	row, err = s.GetRow(ctx, tasks, host.Where{"id": childID})
	require.NoError(t, err)
	assert.Nil(t, row["parent"])

	roots, err := s.SelectRows(ctx, tasks, host.Where{"parent": nil})
	require.NoError(t, err)
	assert.Len(t, roots, 2)

	_, err = s.GetRow(ctx, tasks, host.Where{"id": int64(99)})
	assert.ErrorIs(t, err, host.ErrRowNotFound)

	err = s.UpdateRow(ctx, tasks, host.Row{"name": "x"}, int64(99), admin)
	assert.ErrorIs(t, err, host.ErrRowNotFound)

	err = s.UpdateRow(ctx, tasks, host.Row{"bogus": "x"}, childID, admin)
	assert.ErrorIs(t, err, host.ErrUnknownField)
}

func TestStore_StringKeysGetUUIDs(t *testing.T) {
	ctx := context.Background()
	s, cat := newTestStore(t)
	notes := table(t, cat, "notes")

	id, err := s.InsertRow(ctx, notes, host.Row{"body": "hello"}, admin)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	row, err := s.GetRow(ctx, notes, host.Where{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "hello", row["body"])
}

func TestStore_Ownership(t *testing.T) {
	ctx := context.Background()
	s, cat := newTestStore(t)
	tasks := table(t, cat, "tasks")

	alice := &host.User{ID: "alice", RoleID: 8}
	bob := &host.User{ID: "bob", RoleID: 8}

	id, err := s.InsertRow(ctx, tasks, host.Row{"name": "mine"}, alice)
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateRow(ctx, tasks, host.Row{"name": "stolen"}, id, bob), host.ErrNotOwner)
	assert.ErrorIs(t, s.DeleteRows(ctx, tasks, host.Where{"id": id}, bob), host.ErrNotOwner)
	assert.NoError(t, s.UpdateRow(ctx, tasks, host.Row{"name": "renamed"}, id, alice))
	assert.NoError(t, s.DeleteRows(ctx, tasks, host.Where{"id": id}, alice))

	_, err = s.GetRow(ctx, tasks, host.Where{"id": id})
	assert.ErrorIs(t, err, host.ErrRowNotFound)
}

func TestStore_DeleteParentWithChildrenFails(t *testing.T) {
	ctx := context.Background()
	s, cat := newTestStore(t)
	tasks := table(t, cat, "tasks")

	parent, err := s.InsertRow(ctx, tasks, host.Row{"name": "p"}, admin)
	require.NoError(t, err)
	_, err = s.InsertRow(ctx, tasks, host.Row{"name": "c", "parent": parent}, admin)
	require.NoError(t, err)

	err = s.DeleteRows(ctx, tasks, host.Where{"id": parent}, admin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY")

	assert.Error(t, s.DeleteRows(ctx, tasks, host.Where{}, admin))
}

func TestStore_GetJoinedRows(t *testing.T) {
	ctx := context.Background()
	s, cat := newTestStore(t)
	tasks := table(t, cat, "tasks")
	projects := table(t, cat, "projects")

	pid, err := s.InsertRow(ctx, projects, host.Row{"title": "Launch", "color": "#0a0"}, admin)
	require.NoError(t, err)
	root, err := s.InsertRow(ctx, tasks, host.Row{"name": "Root", "project": pid}, admin)
	require.NoError(t, err)
	_, err = s.InsertRow(ctx, tasks, host.Row{"name": "B", "parent": root}, admin)
	require.NoError(t, err)
	_, err = s.InsertRow(ctx, tasks, host.Row{"name": "A", "parent": root}, admin)
	require.NoError(t, err)

	rows, err := s.GetJoinedRows(ctx, tasks, host.Query{
		Joins:        []host.Join{{As: "_color", Ref: "project", Target: "color"}},
		Aggregations: []host.Aggregation{{As: "kids", Table: "tasks", RefField: "parent", Field: "name", Stat: host.StatArrayAgg}},
		OrderBy:      "name",
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0]["name"])
	assert.Equal(t, "Root", rows[2]["name"])
	assert.Equal(t, "#0a0", rows[2]["_color"])
	assert.Equal(t, []any{"B", "A"}, rows[2]["kids"])

	require.NoError(t, s.Ping(ctx))
}
