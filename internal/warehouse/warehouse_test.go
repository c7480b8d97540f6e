package warehouse

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/elonfeng/hnpipe/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestWarehouse(t *testing.T) *SQLWarehouse {
	t.Helper()
	w, err := Open(context.Background(), Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "warehouse.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("items", []table.Column{
		{Name: "id", Type: table.TypeInt},
		{Name: "type", Type: table.TypeString},
		{Name: "user_id", Type: table.TypeString},
	})
	require.NoError(t, tbl.Append(table.Row{int64(2), "story", "user2"}))
	require.NoError(t, tbl.Append(table.Row{int64(1), "comment", nil}))
	require.NoError(t, tbl.Append(table.Row{nil, nil, nil}))
	return tbl
}

func TestWriteAndReadTable(t *testing.T) {
	w := setupTestWarehouse(t)
	ctx := context.Background()
	want := sampleTable(t)

	require.NoError(t, w.WriteTable(ctx, want))

	got, err := w.ReadTable(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteTableReplaces(t *testing.T) {
	w := setupTestWarehouse(t)
	ctx := context.Background()

	require.NoError(t, w.WriteTable(ctx, sampleTable(t)))

	smaller := table.New("items", []table.Column{{Name: "id", Type: table.TypeInt}})
	require.NoError(t, smaller.Append(table.Row{int64(9)}))
	require.NoError(t, w.WriteTable(ctx, smaller))

	got, err := w.ReadTable(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, smaller, got)

	infos, err := w.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TableInfo{{Name: "items", Rows: 1}}, infos)
}

func TestWriteEmptyTable(t *testing.T) {
	w := setupTestWarehouse(t)
	ctx := context.Background()

	empty := table.New("comments", []table.Column{{Name: "id", Type: table.TypeInt}})
	require.NoError(t, w.WriteTable(ctx, empty))

	got, err := w.ReadTable(ctx, "comments")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, empty.Columns, got.Columns)
}

func TestReadTableNotFound(t *testing.T) {
	w := setupTestWarehouse(t)

	_, err := w.ReadTable(context.Background(), "stories")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestWriteTableRejectsReservedNames(t *testing.T) {
	w := setupTestWarehouse(t)
	ctx := context.Background()

	assert.Error(t, w.WriteTable(ctx, table.New("", nil)))
	assert.Error(t, w.WriteTable(ctx, table.New(catalogTable, nil)))
}

func TestListTables(t *testing.T) {
	w := setupTestWarehouse(t)
	ctx := context.Background()

	infos, err := w.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	require.NoError(t, w.WriteTable(ctx, sampleTable(t)))
	stories := table.New("stories", []table.Column{{Name: "id", Type: table.TypeInt}})
	require.NoError(t, w.WriteTable(ctx, stories))

	infos, err = w.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TableInfo{{Name: "items", Rows: 3}, {Name: "stories", Rows: 0}}, infos)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "snowflake"})
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/wh", redact("postgres://app:secret@db:5432/wh"))
	assert.Equal(t, "./local.db", redact("./local.db"))
}
