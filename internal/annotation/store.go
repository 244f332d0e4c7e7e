package annotation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/internal/snowflake"
	"flakecast/pkg/errors"
)

const columns = "ANNOTATION_KEY, ANNOTATION_DATE, STORE, ITEM, COMMENT_TEXT"

// Store appends annotations to a table and reads them back per selection.
// Rows are never updated or deleted.
type Store struct {
	q       snowflake.Querier
	dialect Dialect
	table   string
	unique  bool
	timeout time.Duration
	logger  *zap.Logger
}

type Option func(*Store)

// WithUnique makes Append refuse a second annotation with the same key.
func WithUnique(unique bool) Option {
	return func(s *Store) { s.unique = unique }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store over table. The table name is spliced into SQL
// and must be a valid identifier.
func NewStore(q snowflake.Querier, dialect Dialect, table string, opts ...Option) (*Store, error) {
	if !config.IsIdentifier(table) {
		return nil, errors.ValidationError("annotations.table", table, "not a valid identifier")
	}
	s := &Store{
		q:       q,
		dialect: dialect,
		table:   table,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Unique reports whether duplicate keys are rejected.
func (s *Store) Unique() bool {
	return s.unique
}

// EnsureTable creates the annotation table when it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(s.dialect.createTable, s.table)
	if _, err := snowflake.Exec(ctx, s.q, s.timeout, query); err != nil {
		return errors.QueryError("Failed to create annotation table", query, err).
			WithContext("backend", s.dialect.Name)
	}
	return nil
}

// Append stores one annotation. The key is rebuilt from date, store and item.
// Without unique mode two identical appends store two rows; with it the
// second one returns an error matching errors.ErrDuplicate.
func (s *Store) Append(ctx context.Context, a Annotation) error {
	a = New(a.Date, a.Store, a.Item, a.Comment)
	if err := a.Validate(); err != nil {
		return err
	}

	args := []interface{}{a.Key, a.Date.Format(config.DateLayout), a.Store, a.Item, a.Comment}
	var query string
	if s.unique {
		query = fmt.Sprintf("INSERT INTO %[1]s (%[2]s) SELECT ?, ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE ANNOTATION_KEY = ?)",
			s.table, columns)
		args = append(args, a.Key)
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)", s.table, columns)
	}

	res, err := snowflake.Exec(ctx, s.q, s.timeout, query, args...)
	if err != nil {
		return errors.QueryError("Failed to save comment", query, err).
			WithContext("key", a.Key)
	}

	if s.unique {
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to confirm comment was saved")
		}
		if n == 0 {
			return errors.DuplicateError(a.Key)
		}
	}

	s.logger.Info("annotation saved",
		zap.String("key", a.Key),
		zap.String("backend", s.dialect.Name))
	return nil
}

// ListFor returns every annotation for a store and item across all dates,
// ordered by date and then insertion.
func (s *Store) ListFor(ctx context.Context, store, item int64) ([]Annotation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE STORE = ? AND ITEM = ? ORDER BY ANNOTATION_DATE, ID",
		columns, s.table)

	out := make([]Annotation, 0)
	err := snowflake.Query(ctx, s.q, s.timeout, query, []interface{}{store, item}, func(rows *sql.Rows) error {
		var (
			a    Annotation
			date interface{}
		)
		if err := rows.Scan(&a.Key, &date, &a.Store, &a.Item, &a.Comment); err != nil {
			return err
		}
		d, err := scanDate(date)
		if err != nil {
			return err
		}
		a.Date = forecast.NormalizeDate(d)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, errors.QueryError("Failed to load comments", query, err).
			WithContext("store", store).
			WithContext("item", item)
	}
	return out, nil
}
