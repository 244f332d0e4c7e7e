package annotation

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"flakecast/internal/config"
	"flakecast/pkg/errors"
)

// Dialect holds the SQL that differs between backends.
type Dialect struct {
	Name        string
	createTable string
}

var (
	Snowflake = Dialect{
		Name: "snowflake",
		createTable: `CREATE TABLE IF NOT EXISTS %s (
    ID NUMBER AUTOINCREMENT,
    ANNOTATION_KEY STRING NOT NULL,
    ANNOTATION_DATE DATE NOT NULL,
    STORE NUMBER NOT NULL,
    ITEM NUMBER NOT NULL,
    COMMENT_TEXT STRING NOT NULL,
    CREATED_AT TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP()
)`,
	}

	SQLite = Dialect{
		Name: "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS %s (
    ID INTEGER PRIMARY KEY AUTOINCREMENT,
    ANNOTATION_KEY TEXT NOT NULL,
    ANNOTATION_DATE DATE NOT NULL,
    STORE INTEGER NOT NULL,
    ITEM INTEGER NOT NULL,
    COMMENT_TEXT TEXT NOT NULL,
    CREATED_AT TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	}
)

// DialectFor resolves the annotations.backend setting.
func DialectFor(backend string) (Dialect, error) {
	switch strings.ToLower(backend) {
	case "", Snowflake.Name:
		return Snowflake, nil
	case SQLite.Name:
		return SQLite, nil
	}
	return Dialect{}, errors.ConfigError(
		fmt.Sprintf("unknown annotation backend %q", backend), "annotations.backend")
}

// OpenSQLite opens the local annotation database. ":memory:" is accepted and
// kept on a single connection so every query sees the same database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to open annotation database").
			WithContext("path", path)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// scanDate accepts what either driver hands back for a DATE column.
func scanDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		return parseDate(d)
	case []byte:
		return parseDate(string(d))
	}
	return time.Time{}, fmt.Errorf("unsupported date value %T", v)
}

func parseDate(s string) (time.Time, error) {
	if len(s) > len(config.DateLayout) {
		s = s[:len(config.DateLayout)]
	}
	return config.ParseDate(s)
}
