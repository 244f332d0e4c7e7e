package snowflake

import (
	"context"
	"database/sql"
	"time"
)

// Query runs query under timeout and hands every row to scan. Rows are closed
// and rows.Err is checked before returning.
func Query(ctx context.Context, q Querier, timeout time.Duration, query string, args []interface{}, scan func(*sql.Rows) error) error {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec runs a statement under timeout.
func Exec(ctx context.Context, q Querier, timeout time.Duration, query string, args ...interface{}) (sql.Result, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return q.ExecContext(ctx, query, args...)
}
