package catalog

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
	"flakecast/pkg/models"
)

const (
	DefaultMaxEntries   = 500
	DefaultPreviewLimit = 100
)

// Dimension names a selectable column of the sales table.
type Dimension string

const (
	Stores Dimension = "stores"
	Items  Dimension = "items"
)

// ParseDimension accepts "stores"/"items" and their singular forms.
func ParseDimension(s string) (Dimension, error) {
	switch s {
	case "stores", "store":
		return Stores, nil
	case "items", "item":
		return Items, nil
	}
	return "", errors.ValidationError("dimension", s, "must be stores or items")
}

// SalesRow is one raw row of the sales table.
type SalesRow struct {
	Date  time.Time `json:"date"`
	Store int64     `json:"store"`
	Item  int64     `json:"item"`
	Sales float64   `json:"sales"`
}

// Catalog lists the values a user may pick from.
type Catalog struct {
	q            snowflake.Querier
	table        string
	columns      models.Forecast
	maxEntries   int
	previewLimit int
	timeout      time.Duration
	logger       *zap.Logger
}

type Option func(*Catalog)

func WithTimeout(d time.Duration) Option {
	return func(c *Catalog) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// New creates a catalog over the configured sales table.
func New(q snowflake.Querier, f models.Forecast, cc models.Catalog, opts ...Option) *Catalog {
	c := &Catalog{
		q:            q,
		table:        f.SalesTable,
		columns:      f,
		maxEntries:   cc.MaxEntries,
		previewLimit: cc.PreviewLimit,
		logger:       zap.NewNop(),
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.previewLimit <= 0 {
		c.previewLimit = DefaultPreviewLimit
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxEntries is the largest catalog a selector is expected to show.
func (c *Catalog) MaxEntries() int {
	return c.maxEntries
}

// ListDistinct returns the distinct non-null values of column in ascending
// order. More than MaxEntries values is an error rather than a truncated list.
func (c *Catalog) ListDistinct(ctx context.Context, table, column string) ([]string, error) {
	if !config.IsIdentifier(table) {
		return nil, errors.ValidationError("table", table, "not a valid identifier")
	}
	if !config.IsIdentifier(column) {
		return nil, errors.ValidationError("column", column, "not a valid identifier")
	}

	query := fmt.Sprintf("SELECT DISTINCT %[2]s FROM %[1]s ORDER BY %[2]s ASC LIMIT %[3]d",
		table, column, c.maxEntries+1)

	values := make([]string, 0, 64)
	err := snowflake.Query(ctx, c.q, c.timeout, query, nil, func(rows *sql.Rows) error {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return err
		}
		if v.Valid {
			values = append(values, v.String)
		}
		return nil
	})
	if err != nil {
		return nil, errors.QueryError(fmt.Sprintf("Failed to list %s values", column), query, err)
	}

	if len(values) > c.maxEntries {
		return nil, errors.New(errors.ErrCodeResourceExhausted,
			fmt.Sprintf("%s has more than %d distinct values", column, c.maxEntries)).
			WithContext("table", table).
			WithContext("limit", c.maxEntries).
			WithSuggestions("Raise catalog.max_entries", "Pick the value directly with a flag instead of a selector")
	}

	c.logger.Debug("catalog listed",
		zap.String("table", table),
		zap.String("column", column),
		zap.Int("values", len(values)))
	return values, nil
}

// List resolves a dimension to its configured column.
func (c *Catalog) List(ctx context.Context, d Dimension) ([]string, error) {
	switch d {
	case Stores:
		return c.Stores(ctx)
	case Items:
		return c.Items(ctx)
	}
	return nil, errors.ValidationError("dimension", string(d), "must be stores or items")
}

func (c *Catalog) Stores(ctx context.Context) ([]string, error) {
	return c.ListDistinct(ctx, c.table, c.columns.StoreColumn)
}

func (c *Catalog) Items(ctx context.Context) ([]string, error) {
	return c.ListDistinct(ctx, c.table, c.columns.ItemColumn)
}

// Preview returns up to limit raw sales rows for one store, oldest first. A
// non-positive limit uses the configured preview limit.
func (c *Catalog) Preview(ctx context.Context, store int64, limit int) ([]SalesRow, error) {
	if limit <= 0 {
		limit = c.previewLimit
	}
	f := c.columns
	query := fmt.Sprintf("SELECT %[2]s, %[3]s, %[4]s, %[5]s FROM %[1]s WHERE %[3]s = ? ORDER BY %[2]s LIMIT %[6]d",
		c.table, f.DateColumn, f.StoreColumn, f.ItemColumn, f.ValueColumn, limit)

	rows := make([]SalesRow, 0, limit)
	err := snowflake.Query(ctx, c.q, c.timeout, query, []interface{}{store}, func(r *sql.Rows) error {
		var (
			row   SalesRow
			sales sql.NullFloat64
		)
		if err := r.Scan(&row.Date, &row.Store, &row.Item, &sales); err != nil {
			return err
		}
		row.Date = forecast.NormalizeDate(row.Date)
		row.Sales = sales.Float64
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, errors.QueryError("Failed to preview sales data", query, err).
			WithContext("store", store)
	}
	return rows, nil
}
