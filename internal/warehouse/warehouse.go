package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/elonfeng/hnpipe/pkg/table"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrTableNotFound is returned when reading a table that was never written.
var ErrTableNotFound = errors.New("table not found")

// Writer persists a named table, replacing any previous version.
type Writer interface {
	WriteTable(ctx context.Context, t *table.Table) error
}

// Reader loads a previously written table.
type Reader interface {
	ReadTable(ctx context.Context, name string) (*table.Table, error)
}

// Warehouse is the full sink used by the CLI and server.
type Warehouse interface {
	Writer
	Reader
	ListTables(ctx context.Context) ([]TableInfo, error)
	Close() error
}

// TableInfo summarises a materialized table.
type TableInfo struct {
	Name string `json:"name" db:"name"`
	Rows int    `json:"rows" db:"row_count"`
}

// Options selects and addresses the backing database.
type Options struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
	Schema string // postgres only
}

// SQLWarehouse implements Warehouse on SQLite or PostgreSQL.
type SQLWarehouse struct {
	db      *sqlx.DB
	dialect dialect
	schema  string
}

var _ Warehouse = (*SQLWarehouse)(nil)

// Open connects to the database and prepares the catalog table.
func Open(ctx context.Context, opts Options) (*SQLWarehouse, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.driver, d.dsn(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", opts.Driver, redact(opts.DSN), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	if d.singleWriter {
		db.SetMaxOpenConns(1)
	}

	w := &SQLWarehouse{db: db, dialect: d}
	if d.schemas {
		w.schema = opts.Schema
	}

	if err := w.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return w, nil
}

func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

func (w *SQLWarehouse) migrate(ctx context.Context) error {
	if w.schema != "" {
		if _, err := w.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quote(w.schema)); err != nil {
			return fmt.Errorf("create schema %s: %w", w.schema, err)
		}
	}
	_, err := w.db.ExecContext(ctx, fmt.Sprintf(catalogSchema, w.qualify(catalogTable)))
	return err
}

// WriteTable replaces the named table with t inside one transaction.
func (w *SQLWarehouse) WriteTable(ctx context.Context, t *table.Table) error {
	if t.Name == "" || strings.HasPrefix(t.Name, "_") {
		return fmt.Errorf("write table: invalid name %q", t.Name)
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write %s: %w", t.Name, err)
	}
	defer tx.Rollback()

	name := w.qualify(t.Name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("drop %s: %w", t.Name, err)
	}

	cols := []string{quote(ordinalColumn) + " " + w.dialect.intType + " NOT NULL"}
	names := []string{quote(ordinalColumn)}
	for _, c := range t.Columns {
		typ, err := w.dialect.columnType(c.Type)
		if err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
		cols = append(cols, quote(c.Name)+" "+typ)
		names = append(names, quote(c.Name))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", "))); err != nil {
		return fmt.Errorf("create %s: %w", t.Name, err)
	}

	insert := tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(names, ", "), placeholders(len(names))))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", t.Name, err)
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		args := make([]any, 0, len(row)+1)
		args = append(args, int64(i))
		args = append(args, row...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", t.Name, i, err)
		}
	}

	upsert := tx.Rebind(fmt.Sprintf(catalogUpsert, w.qualify(catalogTable)))
	if _, err := tx.ExecContext(ctx, upsert, t.Name, len(t.Rows)); err != nil {
		return fmt.Errorf("record %s in catalog: %w", t.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", t.Name, err)
	}
	return nil
}

// ReadTable loads a table in the order it was written.
func (w *SQLWarehouse) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	var count int
	err := w.db.GetContext(ctx, &count,
		w.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", w.qualify(catalogTable))), name)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", name, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("read %s: %w", name, ErrTableNotFound)
	}

	rows, err := w.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY %s", w.qualify(name), quote(ordinalColumn)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read %s columns: %w", name, err)
	}

	var columns []table.Column
	for _, ct := range types {
		if ct.Name() == ordinalColumn {
			continue
		}
		columns = append(columns, table.Column{Name: ct.Name(), Type: w.dialect.tableType(ct.DatabaseTypeName())})
	}
	out := table.New(name, columns)

	for rows.Next() {
		dest := make([]any, len(types))
		for i, ct := range types {
			switch {
			case ct.Name() == ordinalColumn:
				dest[i] = new(int64)
			case w.dialect.tableType(ct.DatabaseTypeName()) == table.TypeInt:
				dest[i] = new(sql.NullInt64)
			default:
				dest[i] = new(sql.NullString)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}

		row := make(table.Row, 0, len(columns))
		for _, d := range dest {
			switch v := d.(type) {
			case *sql.NullInt64:
				if v.Valid {
					row = append(row, v.Int64)
				} else {
					row = append(row, nil)
				}
			case *sql.NullString:
				if v.Valid {
					row = append(row, v.String)
				} else {
					row = append(row, nil)
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}

// ListTables returns the catalog of materialized tables by name.
func (w *SQLWarehouse) ListTables(ctx context.Context) ([]TableInfo, error) {
	var infos []TableInfo
	err := w.db.SelectContext(ctx, &infos,
		fmt.Sprintf("SELECT name, row_count FROM %s ORDER BY name", w.qualify(catalogTable)))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return infos, nil
}

func (w *SQLWarehouse) qualify(name string) string {
	if w.schema == "" {
		return quote(name)
	}
	return quote(w.schema) + "." + quote(name)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
