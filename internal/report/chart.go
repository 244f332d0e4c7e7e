package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"flakecast/internal/config"
	"flakecast/internal/forecast"
)

const (
	actualMark   = '.'
	forecastMark = '*'
	labelWidth   = 10
)

// ChartOptions sizes the terminal chart.
type ChartOptions struct {
	Width  int
	Height int
	Color  bool
}

// DefaultChartOptions fits an 80 column terminal.
var DefaultChartOptions = ChartOptions{Width: 64, Height: 16, Color: true}

// extent is the value range across both series.
type extent struct {
	min, max float64
}

func seriesExtent(points []forecast.SeriesPoint) (extent, bool) {
	e := extent{min: math.Inf(1), max: math.Inf(-1)}
	seen := false
	for _, p := range points {
		for _, v := range []*float64{p.Actual, p.Forecast} {
			if !plottable(v) {
				continue
			}
			seen = true
			e.min = math.Min(e.min, *v)
			e.max = math.Max(e.max, *v)
		}
	}
	if !seen {
		return extent{}, false
	}
	if e.max == e.min {
		e.min--
		e.max++
	}
	return e, true
}

// plottable reports whether v can be placed on an axis. Warehouse FLOAT
// columns may carry NaN or infinities.
func plottable(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// scale maps v into [0, steps].
func (e extent) scale(v float64, steps int) int {
	return int(math.Round((v - e.min) / (e.max - e.min) * float64(steps)))
}

// column maps the i-th of n points onto width columns.
func column(i, n, width int) int {
	if n <= 1 {
		return 0
	}
	return i * (width - 1) / (n - 1)
}

// Chart draws actual and forecast values as a two-series line chart. Actual
// values are plotted with '.' and forecasts with '*'; where both land on the
// same cell the forecast wins.
func Chart(w io.Writer, res *forecast.Result, opts ChartOptions) {
	if opts.Width < 10 {
		opts.Width = DefaultChartOptions.Width
	}
	if opts.Height < 4 {
		opts.Height = DefaultChartOptions.Height
	}

	ext, ok := seriesExtent(pointsOf(res))
	if !ok {
		fmt.Fprintln(w, EmptyState)
		return
	}

	grid := make([][]rune, opts.Height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", opts.Width))
	}
	n := len(res.Points)
	for i, p := range res.Points {
		col := column(i, n, opts.Width)
		if plottable(p.Actual) {
			row := opts.Height - 1 - ext.scale(*p.Actual, opts.Height-1)
			if grid[row][col] != forecastMark {
				grid[row][col] = actualMark
			}
		}
		if plottable(p.Forecast) {
			row := opts.Height - 1 - ext.scale(*p.Forecast, opts.Height-1)
			grid[row][col] = forecastMark
		}
	}

	paint := func(r rune) string { return string(r) }
	if opts.Color {
		actual := color.New(color.FgCyan).SprintFunc()
		predicted := color.New(color.FgYellow, color.Bold).SprintFunc()
		paint = func(r rune) string {
			switch r {
			case actualMark:
				return actual(string(r))
			case forecastMark:
				return predicted(string(r))
			}
			return string(r)
		}
	}

	fmt.Fprintln(w, Title(res.Request))
	for r, line := range grid {
		label := ""
		switch r {
		case 0:
			label = formatValue(ext.max)
		case opts.Height / 2:
			label = formatValue((ext.max + ext.min) / 2)
		case opts.Height - 1:
			label = formatValue(ext.min)
		}

		var b strings.Builder
		for _, c := range line {
			b.WriteString(paint(c))
		}
		fmt.Fprintf(w, "%*s |%s\n", labelWidth, label, strings.TrimRight(b.String(), " "))
	}

	fmt.Fprintf(w, "%*s +%s\n", labelWidth, "", strings.Repeat("-", opts.Width))

	first := res.Points[0].Date.Format(config.DateLayout)
	last := res.Points[n-1].Date.Format(config.DateLayout)
	gap := opts.Width - len(first) - len(last)
	if gap < 1 {
		gap = 1
	}
	fmt.Fprintf(w, "%*s  %s%s%s\n", labelWidth, "", first, strings.Repeat(" ", gap), last)
	fmt.Fprintf(w, "%*s  %s actual   %s forecast\n", labelWidth, "", paint(actualMark), paint(forecastMark))
}

func pointsOf(res *forecast.Result) []forecast.SeriesPoint {
	if res.Empty() {
		return nil
	}
	return res.Points
}

func formatValue(v float64) string {
	if math.Abs(v) >= 1000 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
