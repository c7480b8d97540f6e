package warehouse

import (
	"testing"

	"github.com/elonfeng/hnpipe/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDialect(t *testing.T) {
	for _, driver := range []string{"postgres", "postgresql"} {
		t.Run(driver, func(t *testing.T) {
			d, err := dialectFor(driver)
			require.NoError(t, err)

			assert.Equal(t, "postgres", d.driver)
			assert.Equal(t, "BIGINT", d.intType)
			assert.Equal(t, "TEXT", d.textType)
			assert.True(t, d.schemas)
			assert.False(t, d.singleWriter)

			dsn := "postgres://etl@db:5432/wh?sslmode=disable"
			assert.Equal(t, dsn, d.dsn(dsn), "postgres DSNs pass through untouched")
		})
	}
}

func TestSQLiteDialect(t *testing.T) {
	d, err := dialectFor("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", d.driver)
	assert.True(t, d.singleWriter)
	assert.False(t, d.schemas)
	assert.Equal(t, "./wh.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", d.dsn("./wh.db"))
	assert.Equal(t, ":memory:", d.dsn(":memory:"))
	assert.Equal(t, "./wh.db?mode=ro", d.dsn("./wh.db?mode=ro"))
}

func TestColumnTypes(t *testing.T) {
	d, err := dialectFor("postgres")
	require.NoError(t, err)

	tests := []struct {
		dbType string
		want   table.Type
	}{
		{dbType: "INT8", want: table.TypeInt},
		{dbType: "int4", want: table.TypeInt},
		{dbType: "BIGINT", want: table.TypeInt},
		{dbType: "INTEGER", want: table.TypeInt},
		{dbType: "TEXT", want: table.TypeString},
		{dbType: "VARCHAR", want: table.TypeString},
		{dbType: "", want: table.TypeString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.tableType(tt.dbType), tt.dbType)
	}

	typ, err := d.columnType(table.TypeInt)
	require.NoError(t, err)
	assert.Equal(t, "BIGINT", typ)

	typ, err = d.columnType(table.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", typ)

	_, err = d.columnType(table.Type("float"))
	assert.Error(t, err)
}

func TestQualify(t *testing.T) {
	w := &SQLWarehouse{schema: "hackernews"}
	assert.Equal(t, `"hackernews"."items"`, w.qualify("items"))
	assert.Equal(t, `"hackernews"."_hnpipe_tables"`, w.qualify(catalogTable))

	w = &SQLWarehouse{schema: `odd"name`}
	assert.Equal(t, `"odd""name"."items"`, w.qualify("items"))

	w = &SQLWarehouse{}
	assert.Equal(t, `"items"`, w.qualify("items"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
