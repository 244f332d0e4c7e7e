// Package report renders forecast results for people: terminal charts and
// tables, an SVG chart for the dashboard, and CSV/XLSX downloads.
package report

import (
	"fmt"
	"time"

	"flakecast/internal/forecast"
)

// EmptyState is shown in place of a chart or table when a selection produced
// no forecast rows.
const EmptyState = "No forecast rows for this selection"

// Header names of the exported columns.
const (
	ColumnDate     = "TS"
	ColumnForecast = "FORECAST"
)

// Row is one exported (date, forecast) pair.
type Row struct {
	Date     time.Time
	Forecast float64
}

// Positive returns the rows whose forecast is strictly greater than zero, in
// series order. Training days have no forecast and are never included.
func Positive(res *forecast.Result) []Row {
	if res.Empty() {
		return nil
	}
	rows := make([]Row, 0, res.Request.Horizon)
	for _, p := range res.Points {
		if p.Forecast != nil && *p.Forecast > 0 {
			rows = append(rows, Row{Date: p.Date, Forecast: *p.Forecast})
		}
	}
	return rows
}

// Filename is the download name for a request, e.g.
// item12_store5_30_periods.csv.
func Filename(req forecast.Request, ext string) string {
	return fmt.Sprintf("item%d_store%d_%d_periods.%s", req.Item, req.Store, req.Horizon, ext)
}

// Title is the chart heading for a request.
func Title(req forecast.Request) string {
	return fmt.Sprintf("%d day forecast for item %d at store %d", req.Horizon, req.Item, req.Store)
}
