package table

import (
	"fmt"
)

// Type is the storage type of a column.
type Type string

const (
	TypeInt    Type = "int"
	TypeString Type = "string"
)

// Column describes one named, typed column.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Row holds one value per column. A nil cell is null; otherwise int
// columns hold int64 and string columns hold string.
type Row []any

// Table is an ordered, named collection of rows sharing one column layout.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New creates an empty table with a copy of the given columns.
func New(name string, columns []Column) *Table {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols, Rows: []Row{}}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Append adds a row after checking its width and cell types.
func (t *Table) Append(row Row) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("append to %s: row has %d cells, want %d", t.Name, len(row), len(t.Columns))
	}
	for i, v := range row {
		if v == nil {
			continue
		}
		switch t.Columns[i].Type {
		case TypeInt:
			if _, ok := v.(int64); !ok {
				return fmt.Errorf("append to %s: column %s wants int64, got %T", t.Name, t.Columns[i].Name, v)
			}
		case TypeString:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("append to %s: column %s wants string, got %T", t.Name, t.Columns[i].Name, v)
			}
		}
	}
	cp := make(Row, len(row))
	copy(cp, row)
	t.Rows = append(t.Rows, cp)
	return nil
}

// Value returns the cell of row i in the named column.
func (t *Table) Value(i int, column string) (any, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("table %s has no column %q", t.Name, column)
	}
	if i < 0 || i >= len(t.Rows) {
		return nil, fmt.Errorf("table %s has no row %d", t.Name, i)
	}
	return t.Rows[i][idx], nil
}

// Rename renames a column in place.
func (t *Table) Rename(from, to string) error {
	idx := t.ColumnIndex(from)
	if idx < 0 {
		return fmt.Errorf("rename %s.%s: no such column", t.Name, from)
	}
	if from != to && t.ColumnIndex(to) >= 0 {
		return fmt.Errorf("rename %s.%s: column %s already exists", t.Name, from, to)
	}
	t.Columns[idx].Name = to
	return nil
}

// DedupeBy returns a copy keeping the first row for each value of column.
// Null is a key like any other, so at most one null-keyed row survives.
func (t *Table) DedupeBy(column string) (*Table, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("dedupe %s by %s: no such column", t.Name, column)
	}

	out := New(t.Name, t.Columns)
	seen := make(map[any]bool, len(t.Rows))
	for _, row := range t.Rows {
		key := row[idx]
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Where returns a new table named name holding the rows whose column equals
// value, in their original order.
func (t *Table) Where(name, column string, value any) (*Table, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("filter %s by %s: no such column", t.Name, column)
	}

	out := New(name, t.Columns)
	for _, row := range t.Rows {
		if row[idx] != nil && row[idx] == value {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
