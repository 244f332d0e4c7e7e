package forecast

import (
	"fmt"
	"time"

	"flakecast/pkg/errors"
)

// Request fully determines a forecast query.
type Request struct {
	Store   int64 `json:"store"`
	Item    int64 `json:"item"`
	Horizon int   `json:"horizon"`
}

func (r Request) String() string {
	return fmt.Sprintf("store=%d item=%d horizon=%d", r.Store, r.Item, r.Horizon)
}

// SeriesPoint is one day of the series. Actual is set for training days and
// Forecast for predicted days; either may be nil.
type SeriesPoint struct {
	Date     time.Time `json:"date"`
	Actual   *float64  `json:"actual,omitempty"`
	Forecast *float64  `json:"forecast,omitempty"`
}

// Result is the ordered series for one request. It is shared through the
// cache and must not be modified after it is returned.
type Result struct {
	Request    Request       `json:"request"`
	Points     []SeriesPoint `json:"points"`
	ComputedAt time.Time     `json:"computed_at"`
}

// Empty reports whether the warehouse returned no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Points) == 0
}

// Stats summarizes a result for headers and logs.
type Stats struct {
	Rows          int
	ActualRows    int
	ForecastRows  int
	First, Last   time.Time
	LastActual    time.Time
	FirstForecast time.Time
}

// Stats walks the series once.
func (r *Result) Stats() Stats {
	var s Stats
	if r.Empty() {
		return s
	}
	s.Rows = len(r.Points)
	s.First = r.Points[0].Date
	s.Last = r.Points[len(r.Points)-1].Date
	for _, p := range r.Points {
		if p.Actual != nil {
			s.ActualRows++
			s.LastActual = p.Date
		}
		if p.Forecast != nil {
			if s.ForecastRows == 0 {
				s.FirstForecast = p.Date
			}
			s.ForecastRows++
		}
	}
	return s
}

// Bounds is the accepted horizon range, inclusive.
type Bounds struct {
	Min int
	Max int
}

// DefaultBounds matches the dashboard slider.
var DefaultBounds = Bounds{Min: 1, Max: 80}

// Check rejects horizons outside the range before any query is built.
func (b Bounds) Check(horizon int) error {
	if horizon < b.Min || horizon > b.Max {
		return errors.ValidationError("horizon", horizon,
			fmt.Sprintf("must be between %d and %d", b.Min, b.Max))
	}
	return nil
}

// NormalizeDate drops the time of day, keeping the wall-clock date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
