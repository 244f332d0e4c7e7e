package forecast

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flakecast/internal/config"
	"flakecast/internal/snowflake"
	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

// Settings are the fixed parts of every forecast query.
type Settings struct {
	SalesTable  string
	Function    string
	DateColumn  string
	StoreColumn string
	ItemColumn  string
	ValueColumn string

	// TrainingCutoff is exclusive: history strictly before it trains the model.
	TrainingCutoff time.Time
	// DisplayStart trims early output; rows on or after it are returned.
	DisplayStart time.Time
	Bounds       Bounds
}

// SettingsFrom converts validated file config into builder settings.
func SettingsFrom(f models.Forecast) (Settings, error) {
	cutoff, err := config.ParseDate(f.TrainingCutoff)
	if err != nil {
		return Settings{}, errors.ConfigError("training cutoff must be a YYYY-MM-DD date", "forecast.training_cutoff")
	}
	start, err := config.ParseDate(f.DisplayStart)
	if err != nil {
		return Settings{}, errors.ConfigError("display start must be a YYYY-MM-DD date", "forecast.display_start")
	}
	return Settings{
		SalesTable:     f.SalesTable,
		Function:       f.Function,
		DateColumn:     f.DateColumn,
		StoreColumn:    f.StoreColumn,
		ItemColumn:     f.ItemColumn,
		ValueColumn:    f.ValueColumn,
		TrainingCutoff: cutoff,
		DisplayStart:   start,
		Bounds:         Bounds{Min: f.MinHorizon, Max: f.MaxHorizon},
	}, nil
}

// queryTemplate trains on one store/item series and runs the warehouse table
// function over it. PARTITION BY 1 feeds the whole training set as a single
// series; the partition is intentionally not configurable.
const queryTemplate = `WITH train AS (
    SELECT %[3]s AS ds, %[4]s AS store, %[5]s AS item, %[6]s AS y
    FROM %[1]s
    WHERE %[4]s = ? AND %[5]s = ? AND %[3]s < ?
)
SELECT train.store, train.item, res.ts, res.y, res.forecast
FROM train, TABLE(%[2]s(train.ds, train.y, ?) OVER (PARTITION BY 1)) res
WHERE res.ts >= ?
ORDER BY res.ts`

// Builder builds and runs forecast queries against a warehouse session.
type Builder struct {
	q        snowflake.Querier
	settings Settings
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// BuilderOption customizes a Builder
type BuilderOption func(*Builder)

// WithTimeout bounds each forecast query.
func WithTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) { b.timeout = d }
}

// WithLogger sets the builder logger.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a forecast builder. Identifiers in settings must already
// be validated; they are spliced into the SQL text.
func NewBuilder(q snowflake.Querier, settings Settings, opts ...BuilderOption) *Builder {
	if settings.Bounds == (Bounds{}) {
		settings.Bounds = DefaultBounds
	}
	b := &Builder{
		q:        q,
		settings: settings,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bounds returns the accepted horizon range.
func (b *Builder) Bounds() Bounds {
	return b.settings.Bounds
}

// Settings returns the builder settings.
func (b *Builder) Settings() Settings {
	return b.settings
}

// Query returns the SQL text and bind arguments for req.
func (b *Builder) Query(req Request) (string, []interface{}) {
	s := b.settings
	query := fmt.Sprintf(queryTemplate,
		s.SalesTable, s.Function, s.DateColumn, s.StoreColumn, s.ItemColumn, s.ValueColumn)
	args := []interface{}{
		req.Store,
		req.Item,
		s.TrainingCutoff.Format(config.DateLayout),
		req.Horizon,
		s.DisplayStart.Format(config.DateLayout),
	}
	return query, args
}

// BuildAndRun validates req, runs the forecast and returns the series with
// dates normalized. A selection with no training history yields an empty
// result, not an error.
func (b *Builder) BuildAndRun(ctx context.Context, req Request) (*Result, error) {
	if err := b.settings.Bounds.Check(req.Horizon); err != nil {
		return nil, err
	}

	query, args := b.Query(req)
	start := time.Now()

	result := &Result{Request: req, Points: make([]SeriesPoint, 0, req.Horizon)}
	err := snowflake.Query(ctx, b.q, b.timeout, query, args, func(rows *sql.Rows) error {
		var (
			store, item int64
			ts          time.Time
			actual      sql.NullFloat64
			predicted   sql.NullFloat64
		)
		if err := rows.Scan(&store, &item, &ts, &actual, &predicted); err != nil {
			return errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read forecast row")
		}
		p := SeriesPoint{Date: NormalizeDate(ts)}
		if actual.Valid {
			v := actual.Float64
			p.Actual = &v
		}
		if predicted.Valid {
			v := predicted.Float64
			p.Forecast = &v
		}
		result.Points = append(result.Points, p)
		return nil
	})
	if err != nil {
		if errors.GetErrorCode(err) == errors.ErrCodeResultParsing {
			return nil, err
		}
		qerr := errors.QueryError(NoDataMessage, query, err)
		qerr.Message = failureMessage(qerr.Code)
		return nil, qerr.
			WithContext("store", req.Store).
			WithContext("item", req.Item).
			WithContext("horizon", req.Horizon)
	}
	result.ComputedAt = b.now()

	b.logger.Debug("forecast query finished",
		zap.Int64("store", req.Store),
		zap.Int64("item", req.Item),
		zap.Int("horizon", req.Horizon),
		zap.Int("rows", len(result.Points)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// NoDataMessage is shown when the warehouse rejects the selection itself,
// usually because the store and item have no training history.
const NoDataMessage = "No data for this selection"

func failureMessage(code errors.ErrorCode) string {
	switch code {
	case errors.ErrCodeSQLTimeout:
		return "The forecast query timed out"
	case errors.ErrCodeQueryCanceled:
		return "The forecast was canceled"
	case errors.ErrCodeSQLPermission:
		return "Not permitted to run the forecast"
	case errors.ErrCodeSQLObjectNotFound:
		return "Forecast function or sales table not found"
	case errors.ErrCodeConnectionFailed:
		return "Lost the connection to Snowflake"
	case errors.ErrCodeSQLSyntax:
		return "The warehouse could not compile the forecast query"
	}
	return NoDataMessage
}
