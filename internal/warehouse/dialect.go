package warehouse

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/elonfeng/hnpipe/pkg/table"
)

const (
	catalogTable  = "_hnpipe_tables"
	ordinalColumn = "_row"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS %s (
    name      TEXT PRIMARY KEY,
    row_count INTEGER NOT NULL DEFAULT 0
)`

const catalogUpsert = `
INSERT INTO %s (name, row_count) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET row_count = excluded.row_count`

type dialect struct {
	driver       string
	intType      string
	textType     string
	schemas      bool
	singleWriter bool
	dsn          func(string) string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		return dialect{
			driver:       "sqlite",
			intType:      "INTEGER",
			textType:     "TEXT",
			singleWriter: true,
			dsn:          sqliteDSN,
		}, nil
	case "postgres", "postgresql":
		return dialect{
			driver:   "postgres",
			intType:  "BIGINT",
			textType: "TEXT",
			schemas:  true,
			dsn:      func(s string) string { return s },
		}, nil
	}
	return dialect{}, fmt.Errorf("unsupported warehouse driver %q", driver)
}

func (d dialect) columnType(t table.Type) (string, error) {
	switch t {
	case table.TypeInt:
		return d.intType, nil
	case table.TypeString:
		return d.textType, nil
	}
	return "", fmt.Errorf("unsupported column type %q", t)
}

// tableType maps a database type name back onto a column type.
func (d dialect) tableType(dbType string) table.Type {
	if strings.Contains(strings.ToUpper(dbType), "INT") {
		return table.TypeInt
	}
	return table.TypeString
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// redact hides the password of a URL-style DSN for error messages.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
